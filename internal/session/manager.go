// Package session keeps the in-progress wizards of every operator in
// memory. Each session owns one wizard and the map pickers currently open
// on its locations. Nothing outlives the process.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"task-wizard/internal/mappicker"
	"task-wizard/internal/wizard"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// PickupTarget names the pick-up location as a picker target. Drop-off
// locations use the drop-off id.
const PickupTarget = "pickup"

// Manager manages multiple wizard sessions.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	releaser wizard.Releaser
	metrics  *Metrics
	now      func() time.Time
}

// Session is one operator's wizard and its open pickers.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	lastUsed time.Time
	wizard   *wizard.Wizard
	pickers  map[string]*mappicker.Picker
}

// Option configures a Manager.
type Option func(*Manager)

// WithReleaser frees attachments of discarded and edited forms.
func WithReleaser(r wizard.Releaser) Option {
	return func(m *Manager) { m.releaser = r }
}

// WithMetrics records session counts.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a new session manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session with a fresh wizard.
func (m *Manager) Create() *Session {
	var wopts []wizard.Option
	if m.releaser != nil {
		wopts = append(wopts, wizard.WithReleaser(m.releaser))
	}
	now := m.now()
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		lastUsed:  now,
		wizard:    wizard.New(wopts...),
		pickers:   make(map[string]*mappicker.Picker),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.onCreate(n)
	return s
}

// Get retrieves an existing session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, exists := m.sessions[id]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.touch(m.now())
	return s, nil
}

// Delete cancels a session: its pickers are closed and its attachments
// released.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, exists := m.sessions[id]
	if exists {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.discard()
	m.metrics.onRemove(n, false)
	return nil
}

// List returns all session IDs.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupExpired removes sessions idle for longer than maxAge and releases
// what they hold. It returns the number removed.
func (m *Manager) CleanupExpired(maxAge time.Duration) int {
	now := m.now()

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if now.Sub(s.LastUsed()) > maxAge {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.discard()
		m.metrics.onRemove(n, true)
	}
	return len(expired)
}

// LastUsed is the time of the last access through the manager.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

// Do runs fn with exclusive access to the session's wizard.
func (s *Session) Do(fn func(w *wizard.Wizard) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.wizard)
}

// Snapshot returns the wizard state.
func (s *Session) Snapshot() wizard.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wizard.Snapshot()
}

// OpenPicker installs p as the picker for target, closing any picker that
// was already open there.
func (s *Session) OpenPicker(target string, p *mappicker.Picker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.pickers[target]; ok {
		old.Close()
	}
	s.pickers[target] = p
}

// Picker returns the open picker for target.
func (s *Session) Picker(target string) (*mappicker.Picker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pickers[target]
	return p, ok
}

// ClosePicker closes and forgets the picker for target.
func (s *Session) ClosePicker(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closePickerLocked(target)
}

func (s *Session) closePickerLocked(target string) {
	if p, ok := s.pickers[target]; ok {
		p.Close()
		delete(s.pickers, target)
	}
}

// ClosePickers closes every open picker, e.g. when the wizard is reset.
func (s *Session) ClosePickers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for target := range s.pickers {
		s.closePickerLocked(target)
	}
}

func (s *Session) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for target := range s.pickers {
		s.closePickerLocked(target)
	}
	s.wizard.Discard()
}

// RunCleanup calls CleanupExpired every interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval, maxAge time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.CleanupExpired(maxAge); n > 0 {
				logger.Info("expired wizard sessions removed", slog.Int("count", n))
			}
		}
	}
}
