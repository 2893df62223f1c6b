package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"task-wizard/internal/taskform"
	"task-wizard/internal/wizard"
)

// maxUploadBytes caps how much of a multipart file is read before the
// attachment store applies its own limit.
const maxUploadBytes = 32 << 20

// handleUploadImage stores the "file" form field and attaches it to the
// drop-off's parcel, replacing and releasing any previous image.
func (s *Server) handleUploadImage(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	src, err := header.Open()
	if err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	file, err := s.attachments.Put(header.Filename, data)
	if err != nil {
		s.writeError(c, err)
		return
	}

	dropID := c.Param("dropID")
	err = sess.Do(func(w *wizard.Wizard) error {
		if w.Submitted() {
			return wizard.ErrSubmitted
		}
		drop, ok := w.Data().DropOff(dropID)
		if !ok {
			return fmt.Errorf("%w: %s", taskform.ErrDropOffNotFound, dropID)
		}
		parcel, err := drop.Parcel.WithImage(s.attachments, file.ID)
		if err != nil {
			return err
		}
		_, err = w.UpdateDropOff(dropID, func(d taskform.DropOff) taskform.DropOff {
			d.Parcel = parcel
			return d
		})
		return err
	})
	if err != nil {
		s.attachments.Discard(file.ID)
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.wizardResponse(sess))
}

func (s *Server) handleRemoveImage(c *gin.Context) {
	s.updateDropOff(c, func(d taskform.DropOff) taskform.DropOff {
		d.Parcel = d.Parcel.WithoutImage(s.attachments)
		return d
	})
}

// handlePreviewImage serves the image behind a live preview handle.
func (s *Server) handlePreviewImage(c *gin.Context) {
	f, err := s.attachments.Open(c.Param("previewID"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, f.ContentType, f.Bytes())
}
