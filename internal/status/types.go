// Package status defines the lifecycle status of a pipeline step.
//
// A step is always in exactly one of three states. Transitions are not
// constrained: any status may be set from any other by an explicit user
// action, and editing a field auto-promotes [NotStarted] to [InProgress].
package status

import "fmt"

// Status represents the progress of a single pipeline step.
type Status string

const (
	// NotStarted is the initial status of every step.
	NotStarted Status = "not-started"

	// InProgress indicates the user has begun answering the step.
	InProgress Status = "in-progress"

	// Complete indicates the user marked the step as done.
	Complete Status = "complete"
)

// All lists the valid statuses in display order.
var All = []Status{NotStarted, InProgress, Complete}

// IsValid returns true if the status is one of the three known values.
func (s Status) IsValid() bool {
	switch s {
	case NotStarted, InProgress, Complete:
		return true
	default:
		return false
	}
}

// Label returns the status as display text, e.g. "in progress".
func (s Status) Label() string {
	switch s {
	case NotStarted:
		return "not started"
	case InProgress:
		return "in progress"
	case Complete:
		return "complete"
	default:
		return string(s)
	}
}

// Parse converts a string to a [Status], returning an error for unknown values.
func Parse(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid status: %q", s)
	}
	return st, nil
}
