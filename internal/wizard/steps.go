package wizard

import "task-wizard/internal/taskform"

// StepStatus is how a step is drawn on the progress indicator.
type StepStatus string

const (
	StatusCompleted StepStatus = "completed"
	StatusCurrent   StepStatus = "current"
	StatusFuture    StepStatus = "future"
)

// StepInfo is one entry of the progress indicator.
type StepInfo struct {
	Number int        `json:"number"`
	Label  string     `json:"label"`
	Status StepStatus `json:"status"`
}

// Steps describes the progress indicator for the current step.
func (w *Wizard) Steps() []StepInfo {
	out := make([]StepInfo, 0, int(LastStep))
	for s := FirstStep; s <= LastStep; s++ {
		status := StatusFuture
		switch {
		case s < w.step:
			status = StatusCompleted
		case s == w.step:
			status = StatusCurrent
		}
		out = append(out, StepInfo{Number: int(s), Label: s.Label(), Status: status})
	}
	return out
}

// Snapshot is the serialisable state of a wizard.
type Snapshot struct {
	Step      Step                  `json:"step"`
	Steps     []StepInfo            `json:"steps"`
	Submitted bool                  `json:"submitted"`
	Expanded  string                `json:"expandedDropOff,omitempty"`
	Data      taskform.TaskFormData `json:"data"`
}

// Snapshot captures the wizard for rendering.
func (w *Wizard) Snapshot() Snapshot {
	return Snapshot{
		Step:      w.step,
		Steps:     w.Steps(),
		Submitted: w.submitted,
		Expanded:  w.expanded,
		Data:      w.Data(),
	}
}
