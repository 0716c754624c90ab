package engine

import (
	"time"

	"github.com/aadiyog/yogatracker/internal/similarity"
)

// Color classifies a feedback message for display.
type Color string

const (
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorRed    Color = "red"
)

const (
	FormGood   = "Good form! Keep it up!"
	FormAdjust = "Adjust your pose to match the ideal position."

	msgNoPose = "No pose detected"
)

// Feedback is the textual signal shown to the user. Form is advisory and
// never drives state.
type Feedback struct {
	Message string `json:"message"`
	Color   Color  `json:"color"`
	Form    string `json:"form,omitempty"`
}

func formFeedback(v *similarity.Verdict) string {
	if v == nil {
		return ""
	}
	if v.Success {
		return FormGood
	}
	return FormAdjust
}

// EventKind names a notable state change.
type EventKind string

const (
	EventHoldCompleted     EventKind = "hold_completed"
	EventRepCompleted      EventKind = "rep_completed"
	EventExerciseCompleted EventKind = "exercise_completed"
	EventExerciseChanged   EventKind = "exercise_changed"
	EventPlanCompleted     EventKind = "plan_completed"
	EventRelaxationEntered EventKind = "relaxation_entered"
	EventRelaxationExited  EventKind = "relaxation_exited"
	EventTransitionReset   EventKind = "transition_reset"
)

// Event is emitted alongside a frame result when the state changes in a
// way listeners care about.
type Event struct {
	Kind     EventKind `json:"kind"`
	Exercise string    `json:"exercise"`
	Segment  int       `json:"segment"`
	Reps     int       `json:"reps"`
	Target   int       `json:"target"`
	Reason   string    `json:"reason,omitempty"`
	// Timestamp is the domain clock in milliseconds.
	Timestamp int64 `json:"timestamp"`
}

func millis(d time.Duration) int64 {
	return d.Milliseconds()
}
