package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"task-wizard/internal/refdata"
	"task-wizard/internal/review"
	"task-wizard/internal/session"
	"task-wizard/internal/taskform"
	"task-wizard/internal/wizard"
)

// WizardResponse is the state returned by every wizard endpoint.
type WizardResponse struct {
	ID string `json:"id"`
	wizard.Snapshot
	Cards []taskform.DropOffCard `json:"cards"`
}

func (s *Server) wizardResponse(sess *session.Session) WizardResponse {
	snap := sess.Snapshot()
	return WizardResponse{
		ID:       sess.ID,
		Snapshot: snap,
		Cards:    taskform.Cards(s.catalog, snap.Data),
	}
}

// lookup resolves the :id parameter, answering 404 itself on failure.
func (s *Server) lookup(c *gin.Context) (*session.Session, bool) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	return sess, true
}

// apply runs fn on the session's wizard and answers with the new state.
func (s *Server) apply(c *gin.Context, fn func(w *wizard.Wizard) error) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	if err := sess.Do(fn); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.wizardResponse(sess))
}

func bind(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// ============================================================================
// Reference data
// ============================================================================

func (s *Server) handleRefData(c *gin.Context) {
	out := make(map[refdata.Kind][]refdata.Option, len(refdata.Kinds))
	for _, k := range refdata.Kinds {
		out[k] = s.catalog.Options(k)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleRefDataKind(c *gin.Context) {
	kind, err := refdata.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.catalog.Options(kind))
}

// ============================================================================
// Lifecycle and navigation
// ============================================================================

func (s *Server) handleCreate(c *gin.Context) {
	sess := s.sessions.Create()
	s.logger.Debug("wizard created", "session", sess.ID)
	c.JSON(http.StatusCreated, s.wizardResponse(sess))
}

func (s *Server) handleGet(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.wizardResponse(sess))
}

func (s *Server) handleCancel(c *gin.Context) {
	if err := s.sessions.Delete(c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleNext(c *gin.Context) {
	s.apply(c, func(w *wizard.Wizard) error { return w.GoNext() })
}

func (s *Server) handleBack(c *gin.Context) {
	s.apply(c, func(w *wizard.Wizard) error { return w.GoBack() })
}

type jumpRequest struct {
	Step int `json:"step"`
}

func (s *Server) handleJump(c *gin.Context) {
	var req jumpRequest
	if err := bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	s.apply(c, func(w *wizard.Wizard) error { return w.JumpTo(wizard.Step(req.Step)) })
}

func (s *Server) handleSubmit(c *gin.Context) {
	s.apply(c, func(w *wizard.Wizard) error {
		if err := w.Submit(); err != nil {
			return err
		}
		s.metrics.taskSubmitted()
		s.logger.Info("task submitted",
			"task", w.Data().TaskName,
			"dropOffs", len(w.Data().DropOffs))
		return nil
	})
}

func (s *Server) handleReset(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	sess.ClosePickers()
	_ = sess.Do(func(w *wizard.Wizard) error {
		w.Reset()
		return nil
	})
	c.JSON(http.StatusOK, s.wizardResponse(sess))
}

// ============================================================================
// Task and pick-up edits
// ============================================================================

func (s *Server) handlePatch(c *gin.Context) {
	var p taskform.Patch
	if err := bind(c, &p); err != nil {
		s.writeError(c, err)
		return
	}
	if p.TaskMode != nil && !p.TaskMode.Valid() {
		s.writeError(c, &taskform.ValidationError{Fields: map[string]string{"taskMode": "unknown task mode"}})
		return
	}
	s.apply(c, func(w *wizard.Wizard) error { return w.UpdateField(p) })
}

func (s *Server) handlePickupLocation(c *gin.Context) {
	var loc taskform.LocationInfo
	if err := bind(c, &loc); err != nil {
		s.writeError(c, err)
		return
	}
	s.apply(c, func(w *wizard.Wizard) error { return w.UpdatePickupLocation(loc) })
}

func (s *Server) handlePickupContact(c *gin.Context) {
	var contact taskform.ContactInfo
	if err := bind(c, &contact); err != nil {
		s.writeError(c, err)
		return
	}
	s.apply(c, func(w *wizard.Wizard) error { return w.UpdatePickupContact(contact) })
}

type selectContactRequest struct {
	// Target is "pickup" or a drop-off id.
	Target    string `json:"target" binding:"required"`
	ContactID string `json:"contactId"`
}

// handleSelectContact picks a reference contact and auto-fills its phone
// number and email.
func (s *Server) handleSelectContact(c *gin.Context) {
	var req selectContactRequest
	if err := bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	s.apply(c, func(w *wizard.Wizard) error {
		if req.Target == session.PickupTarget {
			return w.UpdatePickupContact(w.Data().PickupContact.SelectContact(s.catalog, req.ContactID))
		}
		_, err := w.UpdateDropOff(req.Target, func(d taskform.DropOff) taskform.DropOff {
			d.Contact = d.Contact.SelectContact(s.catalog, req.ContactID)
			return d
		})
		return err
	})
}

// ============================================================================
// Drop-offs
// ============================================================================

func (s *Server) handleAddDropOff(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	var drop taskform.DropOff
	err := sess.Do(func(w *wizard.Wizard) error {
		var err error
		drop, err = w.AddDropOff()
		return err
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"dropOff": drop, "wizard": s.wizardResponse(sess)})
}

func (s *Server) handleExpand(c *gin.Context) {
	id := c.Param("dropID")
	s.apply(c, func(w *wizard.Wizard) error { return w.ExpandDropOff(id) })
}

func (s *Server) handleCollapse(c *gin.Context) {
	s.apply(c, func(w *wizard.Wizard) error { return w.CollapseDropOffs() })
}

func (s *Server) updateDropOff(c *gin.Context, fn func(taskform.DropOff) taskform.DropOff) {
	id := c.Param("dropID")
	s.apply(c, func(w *wizard.Wizard) error {
		_, err := w.UpdateDropOff(id, fn)
		return err
	})
}

func (s *Server) handleDropOffLocation(c *gin.Context) {
	var loc taskform.LocationInfo
	if err := bind(c, &loc); err != nil {
		s.writeError(c, err)
		return
	}
	s.updateDropOff(c, func(d taskform.DropOff) taskform.DropOff {
		d.Location = loc
		return d
	})
}

func (s *Server) handleDropOffContact(c *gin.Context) {
	var contact taskform.ContactInfo
	if err := bind(c, &contact); err != nil {
		s.writeError(c, err)
		return
	}
	s.updateDropOff(c, func(d taskform.DropOff) taskform.DropOff {
		d.Contact = contact
		return d
	})
}

// parcelRequest carries the editable parcel fields. The image handles are
// managed by the image endpoints only.
type parcelRequest struct {
	ParcelType string `json:"parcelType"`
	Remark     string `json:"remark"`
}

func (s *Server) handleDropOffParcel(c *gin.Context) {
	var req parcelRequest
	if err := bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	s.updateDropOff(c, func(d taskform.DropOff) taskform.DropOff {
		d.Parcel = d.Parcel.WithParcelType(req.ParcelType).WithRemark(req.Remark)
		return d
	})
}

// ============================================================================
// Review
// ============================================================================

func (s *Server) handleReview(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, review.Build(sess.Snapshot().Data, s.catalog))
}

func (s *Server) handleReviewHTML(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := review.Render(c.Writer, review.Build(sess.Snapshot().Data, s.catalog), "/api/previews/"); err != nil {
		s.writeError(c, err)
	}
}
