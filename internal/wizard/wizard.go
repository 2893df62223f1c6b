// Package wizard drives the four-step task authoring flow. A Wizard owns
// the TaskFormData aggregate; every edit replaces the aggregate wholesale
// and the wizard releases attachments the new aggregate no longer
// references.
//
// A Wizard is not safe for concurrent use. Callers that share one across
// goroutines serialise access themselves (see internal/session).
package wizard

import (
	"errors"
	"fmt"
	"strings"

	"task-wizard/internal/taskform"
)

// Step is a position in the flow, 1-based.
type Step int

const (
	StepTaskType Step = iota + 1
	StepPickup
	StepDropOff
	StepConfirmation
)

// FirstStep and LastStep bound the flow.
const (
	FirstStep = StepTaskType
	LastStep  = StepConfirmation
)

var stepLabels = map[Step]string{
	StepTaskType:     "Task Type and Name",
	StepPickup:       "Pick-up Location",
	StepDropOff:      "Drop-off Location",
	StepConfirmation: "Confirmation",
}

// Label is the progress indicator caption of s.
func (s Step) Label() string {
	return stepLabels[s]
}

// Valid reports whether s is inside the flow.
func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

var (
	// ErrSubmitted is returned for navigation and edits after Submit; only
	// Reset leaves the submitted state.
	ErrSubmitted = errors.New("task already submitted")
	// ErrInvalidStep is returned by JumpTo for a step outside 1..4.
	ErrInvalidStep = errors.New("invalid step")
	// ErrNotOnConfirmation is returned by Submit before the last step.
	ErrNotOnConfirmation = errors.New("task can only be submitted from the confirmation step")
)

// Releaser frees attachments that a form stops referencing.
type Releaser interface {
	Revoke(previewID string)
	Discard(fileID string)
	ReleaseFormData(d taskform.TaskFormData)
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithReleaser sets the attachment releaser. Without one, superseded
// attachments are simply dropped from the form.
func WithReleaser(r Releaser) Option {
	return func(w *Wizard) { w.releaser = r }
}

// Wizard is one task being authored.
type Wizard struct {
	step      Step
	data      taskform.TaskFormData
	submitted bool
	expanded  string
	releaser  Releaser
}

// New starts a wizard on step 1 with fresh form data. The single initial
// drop-off is expanded.
func New(opts ...Option) *Wizard {
	w := &Wizard{}
	for _, opt := range opts {
		opt(w)
	}
	w.start()
	return w
}

func (w *Wizard) start() {
	w.step = FirstStep
	w.data = taskform.NewTaskFormData()
	w.submitted = false
	w.expanded = w.data.DropOffs[len(w.data.DropOffs)-1].ID
}

// Step returns the current step.
func (w *Wizard) Step() Step { return w.step }

// Submitted reports whether the task has been submitted.
func (w *Wizard) Submitted() bool { return w.submitted }

// Data returns a copy of the aggregate.
func (w *Wizard) Data() taskform.TaskFormData { return w.data.Clone() }

// Expanded returns the id of the expanded drop-off, or "" when all are
// collapsed.
func (w *Wizard) Expanded() string { return w.expanded }

// GoNext advances one step. On the last step it does nothing.
func (w *Wizard) GoNext() error {
	if w.submitted {
		return ErrSubmitted
	}
	if w.step < LastStep {
		w.step++
	}
	return nil
}

// GoBack retreats one step. On the first step it does nothing.
func (w *Wizard) GoBack() error {
	if w.submitted {
		return ErrSubmitted
	}
	if w.step > FirstStep {
		w.step--
	}
	return nil
}

// JumpTo moves straight to n. Any step is reachable from any other and
// the form data is left as it is.
func (w *Wizard) JumpTo(n Step) error {
	if w.submitted {
		return ErrSubmitted
	}
	if !n.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStep, n)
	}
	w.step = n
	return nil
}

// UpdateField merges a partial record into the aggregate. Top-level
// attributes are replaced wholesale.
func (w *Wizard) UpdateField(p taskform.Patch) error {
	if w.submitted {
		return ErrSubmitted
	}
	if p.DropOffs != nil {
		if err := checkDropOffIDs(*p.DropOffs); err != nil {
			return err
		}
	}
	w.swap(p.Apply(w.data))
	if w.data.DropOffIndex(w.expanded) < 0 {
		w.expanded = ""
	}
	return nil
}

// checkDropOffIDs rejects a replacement list that is empty or that would
// break drop-off identity.
func checkDropOffIDs(drops []taskform.DropOff) error {
	if len(drops) == 0 {
		return &taskform.ValidationError{Fields: map[string]string{"dropOffs": "at least one drop-off is required"}}
	}
	seen := make(map[string]bool, len(drops))
	for i, d := range drops {
		field := fmt.Sprintf("dropOffs[%d].id", i)
		switch {
		case strings.TrimSpace(d.ID) == "":
			return &taskform.ValidationError{Fields: map[string]string{field: "drop-off id is required"}}
		case seen[d.ID]:
			return &taskform.ValidationError{Fields: map[string]string{field: "duplicate drop-off id " + d.ID}}
		}
		seen[d.ID] = true
	}
	return nil
}

// UpdatePickupLocation replaces the pick-up location.
func (w *Wizard) UpdatePickupLocation(loc taskform.LocationInfo) error {
	return w.UpdateField(taskform.Patch{PickupLocation: &loc})
}

// UpdatePickupContact replaces the pick-up contact.
func (w *Wizard) UpdatePickupContact(c taskform.ContactInfo) error {
	return w.UpdateField(taskform.Patch{PickupContact: &c})
}

// AddDropOff appends an empty drop-off and expands it.
func (w *Wizard) AddDropOff() (taskform.DropOff, error) {
	if w.submitted {
		return taskform.DropOff{}, ErrSubmitted
	}
	data, drop := w.data.AppendDropOff()
	w.swap(data)
	w.expanded = drop.ID
	return drop, nil
}

// UpdateDropOff replaces the drop-off with the given id by fn's result.
// The id is kept whatever fn returns.
func (w *Wizard) UpdateDropOff(id string, fn func(taskform.DropOff) taskform.DropOff) (taskform.DropOff, error) {
	if w.submitted {
		return taskform.DropOff{}, ErrSubmitted
	}
	cur, ok := w.data.DropOff(id)
	if !ok {
		return taskform.DropOff{}, fmt.Errorf("%w: %s", taskform.ErrDropOffNotFound, id)
	}
	next := fn(cur)
	next.ID = id
	data, err := w.data.ReplaceDropOff(next)
	if err != nil {
		return taskform.DropOff{}, err
	}
	w.swap(data)
	return next, nil
}

// ExpandDropOff shows the full sub-forms of one drop-off and collapses
// the others.
func (w *Wizard) ExpandDropOff(id string) error {
	if w.submitted {
		return ErrSubmitted
	}
	if w.data.DropOffIndex(id) < 0 {
		return fmt.Errorf("%w: %s", taskform.ErrDropOffNotFound, id)
	}
	w.expanded = id
	return nil
}

// CollapseDropOffs collapses every drop-off to its summary card.
func (w *Wizard) CollapseDropOffs() error {
	if w.submitted {
		return ErrSubmitted
	}
	w.expanded = ""
	return nil
}

// Submit moves the wizard from the confirmation step to the submitted
// state. The task name must be set; field errors come back as
// *taskform.ValidationError and leave the state unchanged. Submitting is
// purely local.
func (w *Wizard) Submit() error {
	if w.submitted {
		return ErrSubmitted
	}
	if w.step != LastStep {
		return fmt.Errorf("%w: on step %d", ErrNotOnConfirmation, w.step)
	}
	if err := taskform.Validate(w.data); err != nil {
		return err
	}
	w.submitted = true
	return nil
}

// Reset discards the form and starts over on step 1. It is the only way
// out of the submitted state and is also used for cancel.
func (w *Wizard) Reset() {
	w.Discard()
	w.start()
}

// Discard releases every attachment the current form holds. The wizard
// must be Reset before it is used again.
func (w *Wizard) Discard() {
	if w.releaser != nil {
		w.releaser.ReleaseFormData(w.data)
	}
}

// swap installs next as the aggregate and releases attachments only the
// previous aggregate referenced.
func (w *Wizard) swap(next taskform.TaskFormData) {
	prev := w.data
	w.data = next
	if w.releaser == nil {
		return
	}
	previews, files := attachmentRefs(next)
	for _, drop := range prev.DropOffs {
		if id := drop.Parcel.ImagePreview; id != "" && !previews[id] {
			w.releaser.Revoke(id)
		}
		if id := drop.Parcel.ImageFile; id != "" && !files[id] {
			w.releaser.Discard(id)
		}
	}
}

func attachmentRefs(d taskform.TaskFormData) (previews, files map[string]bool) {
	previews = map[string]bool{}
	files = map[string]bool{}
	for _, drop := range d.DropOffs {
		if drop.Parcel.ImagePreview != "" {
			previews[drop.Parcel.ImagePreview] = true
		}
		if drop.Parcel.ImageFile != "" {
			files[drop.Parcel.ImageFile] = true
		}
	}
	return previews, files
}
