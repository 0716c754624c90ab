package engine

import (
	"time"

	"github.com/aadiyog/yogatracker/internal/choreography"
	"github.com/aadiyog/yogatracker/internal/pose"
)

// SessionState is the mutable progress of one session. It is owned by the
// Controller and handed to phase handlers by pointer for the duration of
// one frame.
type SessionState struct {
	ExerciseIdx int
	SegmentIdx  int
	Count       int
	Handlers    []Handler

	Relaxing   bool
	RelaxStart time.Duration

	// Buffer holds the frames observed during transition segments since
	// the last completed hold.
	Buffer []pose.Frame

	// Frame is the last normalized frame, nil when no valid pose was seen.
	Frame  pose.Frame
	Hip    pose.Point3D
	Facing pose.Facing

	LastValidPose time.Duration
	clockStarted  bool

	PlanComplete bool
}

func newSessionState(exerciseIdx int, ref *choreography.Reference) SessionState {
	return SessionState{
		ExerciseIdx: exerciseIdx,
		Handlers:    newHandlers(ref),
		Facing:      pose.FacingUndetermined,
	}
}

func newHandlers(ref *choreography.Reference) []Handler {
	segments := ref.Segments()
	handlers := make([]Handler, len(segments))
	for i, seg := range segments {
		handlers[i] = Handler{Kind: seg.Type}
	}
	return handlers
}

// resetHandlers clears every handler's timers.
func (s *SessionState) resetHandlers() {
	for i := range s.Handlers {
		s.Handlers[i].reset()
	}
}

// snapshot copies the state deeply enough to restore it after a failed frame.
func (s *SessionState) snapshot() SessionState {
	cp := *s
	cp.Handlers = make([]Handler, len(s.Handlers))
	copy(cp.Handlers, s.Handlers)
	cp.Buffer = append([]pose.Frame(nil), s.Buffer...)
	return cp
}

// Handler is the per-segment phase state. Kind selects which of the
// embedded states is in use.
type Handler struct {
	Kind choreography.SegmentType

	entered   bool
	enteredAt time.Duration

	match matchState
	hold  holdState
}

// matchState backs starting and ending segments.
type matchState struct {
	matching      bool
	since         time.Duration
	mismatching   bool
	mismatchSince time.Duration
}

// holdState backs holding segments.
type holdState struct {
	succeeding   bool
	successStart time.Duration
	held         time.Duration
	completed    bool
	failingSince time.Duration

	scored          bool
	transitionScore *float64
}

func (h *Handler) reset() {
	*h = Handler{Kind: h.Kind}
}

// enter starts the handler's clocks on its first frame.
func (h *Handler) enter(now time.Duration) {
	if h.entered {
		return
	}
	h.entered = true
	h.enteredAt = now
	h.hold.failingSince = now
}

// CompletedHold reports whether a holding handler reached its minimum hold.
func (h *Handler) CompletedHold() bool {
	return h.hold.completed
}
