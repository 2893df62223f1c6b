package taskform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrDropOffNotFound is returned when a drop-off id is not in the list.
var ErrDropOffNotFound = errors.New("drop-off not found")

// Patch is a partial TaskFormData. nil fields are left unchanged; set fields
// replace the top-level attribute wholesale (nested records are not merged).
type Patch struct {
	TaskMode       *TaskMode     `json:"taskMode,omitempty"`
	TaskName       *string       `json:"taskName,omitempty"`
	TaskType       *string       `json:"taskType,omitempty"`
	Description    *string       `json:"description,omitempty"`
	PickupLocation *LocationInfo `json:"pickupLocation,omitempty"`
	PickupContact  *ContactInfo  `json:"pickupContact,omitempty"`
	DropOffs       *[]DropOff    `json:"dropOffs,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.TaskMode == nil && p.TaskName == nil && p.TaskType == nil &&
		p.Description == nil && p.PickupLocation == nil &&
		p.PickupContact == nil && p.DropOffs == nil
}

// Apply merges the patch into d and returns the result. Applying the same
// patch twice gives the same result as applying it once.
func (p Patch) Apply(d TaskFormData) TaskFormData {
	out := d.Clone()
	if p.TaskMode != nil {
		out.TaskMode = *p.TaskMode
	}
	if p.TaskName != nil {
		out.TaskName = *p.TaskName
	}
	if p.TaskType != nil {
		out.TaskType = *p.TaskType
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.PickupLocation != nil {
		out.PickupLocation = *p.PickupLocation
	}
	if p.PickupContact != nil {
		out.PickupContact = *p.PickupContact
	}
	if p.DropOffs != nil {
		drops := make([]DropOff, len(*p.DropOffs))
		copy(drops, *p.DropOffs)
		out.DropOffs = drops
	}
	return out
}

// DropOffIndex returns the position of the drop-off with the given id, or -1.
func (d TaskFormData) DropOffIndex(id string) int {
	for i, drop := range d.DropOffs {
		if drop.ID == id {
			return i
		}
	}
	return -1
}

// DropOff returns the drop-off with the given id.
func (d TaskFormData) DropOff(id string) (DropOff, bool) {
	if i := d.DropOffIndex(id); i >= 0 {
		return d.DropOffs[i], true
	}
	return DropOff{}, false
}

// AppendDropOff adds a new empty drop-off at the end of the list. Existing
// entries keep their identity and content.
func (d TaskFormData) AppendDropOff() (TaskFormData, DropOff) {
	drop := NewDropOff()
	out := d.Clone()
	out.DropOffs = append(out.DropOffs, drop)
	return out, drop
}

// ReplaceDropOff swaps in an edited drop-off, matched by id.
func (d TaskFormData) ReplaceDropOff(drop DropOff) (TaskFormData, error) {
	i := d.DropOffIndex(drop.ID)
	if i < 0 {
		return d, fmt.Errorf("%w: %s", ErrDropOffNotFound, drop.ID)
	}
	out := d.Clone()
	out.DropOffs[i] = drop
	return out, nil
}

// ValidationError carries field-level messages keyed by JSON path.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid task: " + strings.Join(parts, "; ")
}

// Validate checks the fields a task needs before it can be submitted.
func Validate(d TaskFormData) error {
	fields := map[string]string{}
	if strings.TrimSpace(d.TaskName) == "" {
		fields["taskName"] = "task name is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
