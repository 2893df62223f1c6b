package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"task-wizard/internal/mappicker"
	"task-wizard/internal/session"
	"task-wizard/internal/taskform"
	"task-wizard/internal/wizard"
)

var errNoPicker = errors.New("no picker open for target")

// committedLocation returns the location a picker target edits.
func committedLocation(d taskform.TaskFormData, target string) (taskform.LocationInfo, string, error) {
	if target == session.PickupTarget {
		return d.PickupLocation, mappicker.PickupPrompt, nil
	}
	drop, ok := d.DropOff(target)
	if !ok {
		return taskform.LocationInfo{}, "", taskform.ErrDropOffNotFound
	}
	return drop.Location, mappicker.DropOffPrompt, nil
}

// commit writes a confirmed selection into the target location.
func commit(w *wizard.Wizard, target string, sel mappicker.Selection) error {
	if target == session.PickupTarget {
		return w.UpdatePickupLocation(sel.Apply(w.Data().PickupLocation))
	}
	_, err := w.UpdateDropOff(target, func(d taskform.DropOff) taskform.DropOff {
		d.Location = sel.Apply(d.Location)
		return d
	})
	return err
}

// picker resolves the session and its open picker for :target.
func (s *Server) picker(c *gin.Context) (*session.Session, *mappicker.Picker, bool) {
	sess, ok := s.lookup(c)
	if !ok {
		return nil, nil, false
	}
	p, ok := sess.Picker(c.Param("target"))
	if !ok {
		s.writeError(c, errNoPicker)
		return nil, nil, false
	}
	return sess, p, true
}

func (s *Server) pickerState(c *gin.Context, p *mappicker.Picker) {
	if c.Query("wait") != "" {
		p.Wait()
	}
	c.JSON(http.StatusOK, p.Snapshot())
}

func (s *Server) handleLocationPreview(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	loc, prompt, err := committedLocation(sess.Snapshot().Data, c.Param("target"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mappicker.PreviewOf(loc, prompt))
}

func (s *Server) handlePickerOpen(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	target := c.Param("target")
	snap := sess.Snapshot()
	if snap.Submitted {
		s.writeError(c, wizard.ErrSubmitted)
		return
	}
	loc, _, err := committedLocation(snap.Data, target)
	if err != nil {
		s.writeError(c, err)
		return
	}
	p := mappicker.OpenFor(loc, s.resolver,
		mappicker.WithLogger(s.logger.With("session", sess.ID, "target", target)),
		mappicker.WithContext(s.ctx))
	sess.OpenPicker(target, p)
	c.JSON(http.StatusOK, p.Snapshot())
}

func (s *Server) handlePickerState(c *gin.Context) {
	_, p, ok := s.picker(c)
	if !ok {
		return
	}
	s.pickerState(c, p)
}

type pointRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

func (s *Server) movePicker(c *gin.Context, move func(p *mappicker.Picker, lat, lng float64) error) {
	var req pointRequest
	if err := bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	_, p, ok := s.picker(c)
	if !ok {
		return
	}
	if err := move(p, *req.Lat, *req.Lng); err != nil {
		s.writeError(c, err)
		return
	}
	s.pickerState(c, p)
}

func (s *Server) handlePickerDrag(c *gin.Context) {
	s.movePicker(c, (*mappicker.Picker).Drag)
}

func (s *Server) handlePickerClick(c *gin.Context) {
	s.movePicker(c, (*mappicker.Picker).Click)
}

type searchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handlePickerSearch(c *gin.Context) {
	var req searchRequest
	if err := bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	_, p, ok := s.picker(c)
	if !ok {
		return
	}
	if err := p.Search(c.Request.Context(), req.Query); err != nil {
		s.writeError(c, err)
		return
	}
	s.pickerState(c, p)
}

func (s *Server) handlePickerLocate(c *gin.Context) {
	var pos mappicker.ReportedPosition
	if err := bind(c, &pos); err != nil {
		s.writeError(c, err)
		return
	}
	_, p, ok := s.picker(c)
	if !ok {
		return
	}
	if err := p.LocateMe(c.Request.Context(), pos); err != nil {
		s.writeError(c, err)
		return
	}
	s.pickerState(c, p)
}

func (s *Server) handlePickerResize(c *gin.Context) {
	_, p, ok := s.picker(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"measureEpoch": p.Resized()})
}

func (s *Server) handlePickerConfirm(c *gin.Context) {
	sess, p, ok := s.picker(c)
	if !ok {
		return
	}
	target := c.Param("target")
	sel, err := p.Confirm()
	sess.ClosePicker(target)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := sess.Do(func(w *wizard.Wizard) error { return commit(w, target, sel) }); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.wizardResponse(sess))
}

func (s *Server) handlePickerCancel(c *gin.Context) {
	sess, p, ok := s.picker(c)
	if !ok {
		return
	}
	err := p.Cancel()
	sess.ClosePicker(c.Param("target"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
