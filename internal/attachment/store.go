// Package attachment keeps uploaded parcel images and the revocable preview
// handles derived from them.
package attachment

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"task-wizard/internal/taskform"
)

var (
	ErrNotFound = errors.New("attachment not found")
	ErrNotImage = errors.New("attachment is not an image")
	ErrEmpty    = errors.New("attachment is empty")
	ErrTooLarge = errors.New("attachment too large")
)

// File is one uploaded image.
type File struct {
	ID          string
	Name        string
	ContentType string
	Size        int
	UploadedAt  time.Time
	data        []byte
}

// Bytes returns the file content. The slice must not be modified.
func (f File) Bytes() []byte { return f.data }

// Store is an in-memory attachment store. Previews stay valid until revoked
// or until their file is discarded.
type Store struct {
	mu       sync.RWMutex
	files    map[string]File
	previews map[string]string // preview id -> file id
	maxSize  int
}

// NewStore creates a store accepting files up to maxSize bytes (0 = no limit).
func NewStore(maxSize int) *Store {
	return &Store{
		files:    make(map[string]File),
		previews: make(map[string]string),
		maxSize:  maxSize,
	}
}

// Put stores an image. The declared content type is ignored in favour of
// sniffing the content.
func (s *Store) Put(name string, data []byte) (File, error) {
	if len(data) == 0 {
		return File{}, ErrEmpty
	}
	if s.maxSize > 0 && len(data) > s.maxSize {
		return File{}, fmt.Errorf("%w: %q is %d bytes, limit is %d", ErrTooLarge, name, len(data), s.maxSize)
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return File{}, fmt.Errorf("%w: %s", ErrNotImage, ct)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	f := File{
		ID:          uuid.NewString(),
		Name:        name,
		ContentType: ct,
		Size:        len(buf),
		UploadedAt:  time.Now(),
		data:        buf,
	}

	s.mu.Lock()
	s.files[f.ID] = f
	s.mu.Unlock()
	return f, nil
}

// CreatePreview derives a new preview handle for a stored file.
func (s *Store) CreatePreview(fileID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[fileID]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	id := uuid.NewString()
	s.previews[id] = fileID
	return id, nil
}

// Revoke releases a preview handle. Revoking an unknown handle is a no-op.
func (s *Store) Revoke(previewID string) {
	s.mu.Lock()
	delete(s.previews, previewID)
	s.mu.Unlock()
}

// Open resolves a live preview handle to its file.
func (s *Store) Open(previewID string) (File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fileID, ok := s.previews[previewID]
	if !ok {
		return File{}, fmt.Errorf("%w: preview %s", ErrNotFound, previewID)
	}
	f, ok := s.files[fileID]
	if !ok {
		return File{}, fmt.Errorf("%w: file %s", ErrNotFound, fileID)
	}
	return f, nil
}

// Discard drops a file and every preview derived from it.
func (s *Store) Discard(fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, fileID)
	for pid, fid := range s.previews {
		if fid == fileID {
			delete(s.previews, pid)
		}
	}
}

// Live returns the number of unrevoked previews.
func (s *Store) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.previews)
}

// Files returns the number of stored files.
func (s *Store) Files() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// ReleaseFormData frees every attachment a discarded form references.
func (s *Store) ReleaseFormData(d taskform.TaskFormData) {
	for _, drop := range d.DropOffs {
		if drop.Parcel.ImagePreview != "" {
			s.Revoke(drop.Parcel.ImagePreview)
		}
		if drop.Parcel.ImageFile != "" {
			s.Discard(drop.Parcel.ImageFile)
		}
	}
}
