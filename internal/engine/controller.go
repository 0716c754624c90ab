package engine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aadiyog/yogatracker/internal/choreography"
	"github.com/aadiyog/yogatracker/internal/pose"
	"github.com/aadiyog/yogatracker/internal/similarity"
	"github.com/aadiyog/yogatracker/internal/transition"
)

// ErrFrameFailed is returned when processing a frame panicked. The session
// progress is left as it was before the frame.
var ErrFrameFailed = errors.New("frame processing failed")

const msgPlanComplete = "All exercises completed"

// Result is the outcome of processing one frame.
type Result struct {
	ExerciseName    string                   `json:"exerciseName"`
	Phase           string                   `json:"currentPhase"`
	PhaseType       choreography.SegmentType `json:"phaseType"`
	SegmentIndex    int                      `json:"segmentIndex"`
	RepCount        int                      `json:"repCount"`
	TargetReps      int                      `json:"totalReps"`
	Score           int                      `json:"score"`
	Feedback        Feedback                 `json:"feedback"`
	Relaxing        bool                     `json:"relaxing"`
	PlanComplete    bool                     `json:"planComplete"`
	TransitionScore *float64                 `json:"transitionScore,omitempty"`
	Verdict         *similarity.Verdict      `json:"verdict,omitempty"`
	Events          []Event                  `json:"events,omitempty"`
}

// Controller drives one session through an exercise plan. It is not safe
// for concurrent use; the host serializes calls.
type Controller struct {
	cfg      Config
	plan     *Plan
	log      *zap.Logger
	checker  poseChecker
	analyzer *transition.Analyzer
	state    SessionState
}

// NewController creates a Controller positioned on the first segment of the
// first exercise.
func NewController(plan *Plan, cfg Config, log *zap.Logger) (*Controller, error) {
	if plan == nil || plan.Len() == 0 {
		return nil, ErrEmptyPlan
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := &Controller{
		cfg:     cfg,
		plan:    plan,
		log:     log,
		checker: similarity.NewChecker(cfg.DTWRadius, cfg.DefaultWholeThreshold),
	}
	c.loadExercise(0)
	return c, nil
}

func (c *Controller) loadExercise(idx int) {
	ex := c.plan.Exercise(idx)
	c.analyzer = transition.NewAnalyzer(ex.Reference)
	c.state = newSessionState(idx, ex.Reference)
}

func (c *Controller) exercise() Exercise {
	return c.plan.Exercise(c.state.ExerciseIdx)
}

// ExerciseName returns the name of the current exercise.
func (c *Controller) ExerciseName() string {
	return c.exercise().Name
}

// TargetReps returns the rep target of the current exercise.
func (c *Controller) TargetReps() int {
	return c.exercise().TargetReps
}

// Count returns the completed reps of the current exercise.
func (c *Controller) Count() int {
	return c.state.Count
}

// Done reports whether every exercise in the plan reached its target.
func (c *Controller) Done() bool {
	return c.state.PlanComplete
}

// Plan returns the plan being driven.
func (c *Controller) Plan() *Plan {
	return c.plan
}

// UpdateFrame normalizes a raw detector frame and classifies its facing.
// Invalid input clears the stored pose so the next step sees no pose.
func (c *Controller) UpdateFrame(raw []pose.Keypoint) {
	st := &c.state
	frame, hip, ok := pose.Normalize(raw)
	if !ok {
		st.Frame = nil
		st.Facing = pose.FacingUndetermined
		return
	}
	st.Frame = frame
	st.Hip = hip
	st.Facing = pose.DetectFacing(frame, c.cfg.Facing)
}

// ProcessExercise advances the state machine to domain time now using the
// frame stored by UpdateFrame. A panic while processing is recovered, the
// progress restored and ErrFrameFailed returned.
func (c *Controller) ProcessExercise(now time.Duration) (res Result, err error) {
	saved := c.state.snapshot()
	savedAnalyzer := c.analyzer

	defer func() {
		if r := recover(); r != nil {
			c.state = saved
			c.analyzer = savedAnalyzer
			c.log.Error("frame processing panicked",
				zap.Any("panic", r),
				zap.Int("exercise", saved.ExerciseIdx),
				zap.Int("segment", saved.SegmentIdx))
			res = c.result(nil)
			err = fmt.Errorf("%w: %v", ErrFrameFailed, r)
		}
	}()

	return c.process(now), nil
}

func (c *Controller) process(now time.Duration) Result {
	st := &c.state

	if !st.clockStarted {
		st.clockStarted = true
		st.LastValidPose = now
	}

	if st.PlanComplete {
		res := c.result(nil)
		res.Feedback = Feedback{Message: msgPlanComplete, Color: ColorGreen}
		return res
	}

	var res Result
	segments := c.exercise().Reference.Segments()
	if st.SegmentIdx < 0 || st.SegmentIdx >= len(segments) {
		c.log.Warn("segment index out of range, resetting",
			zap.String("exercise", c.exercise().Name),
			zap.Int("segment", st.SegmentIdx),
			zap.Int("segments", len(segments)))
		st.SegmentIdx = 0
	}

	if st.Relaxing {
		c.processRelaxation(now, &res)
		return c.finish(res)
	}

	if c.shouldRelax(now) {
		c.enterRelaxation(now, "no valid pose", &res)
		res.Feedback = Feedback{Message: msgRelax, Color: ColorYellow}
		return c.finish(res)
	}
	if st.Frame != nil {
		st.LastValidPose = now
	}

	seg := segments[st.SegmentIdx]
	h := &st.Handlers[st.SegmentIdx]
	pc := &phaseContext{
		cfg:      &c.cfg,
		checker:  c.checker,
		ref:      c.exercise().Reference,
		analyzer: c.analyzer,
		state:    st,
		now:      now,
	}

	out := h.process(pc, seg)
	res.Feedback = out.feedback
	res.Verdict = out.verdict
	res.TransitionScore = h.hold.transitionScore

	if seg.Type == choreography.TypeTransition && st.Frame != nil {
		st.Buffer = append(st.Buffer, st.Frame)
	}

	if out.holdCompleted {
		res.Events = append(res.Events, c.event(EventHoldCompleted, now, seg.Label))
	}

	switch {
	case out.relax != "":
		c.enterRelaxation(now, out.relax, &res)
		res.Feedback = Feedback{Message: msgRelax, Color: ColorYellow}
	case out.reset:
		c.log.Info("transition timed out, restarting repetition",
			zap.String("exercise", c.exercise().Name),
			zap.Int("segment", st.SegmentIdx))
		res.Events = append(res.Events, c.event(EventTransitionReset, now, seg.Label))
		st.Buffer = nil
		c.moveTo(0)
	case out.complete:
		c.advance(seg, now, &res)
	}

	return c.finish(res)
}

// advance applies the completion rule of the finished segment.
func (c *Controller) advance(seg choreography.Segment, now time.Duration, res *Result) {
	st := &c.state

	switch seg.Type {
	case choreography.TypeEnding:
		c.completeRep(now, res)
		return
	case choreography.TypeHolding:
		st.Buffer = nil
	}

	next := st.SegmentIdx + 1
	if next >= len(st.Handlers) {
		c.log.Warn("segment index overflow, resetting",
			zap.String("exercise", c.exercise().Name),
			zap.Int("segment", next))
		next = 0
	}
	c.moveTo(next)
}

// moveTo enters segment idx with a fresh handler.
func (c *Controller) moveTo(idx int) {
	c.state.SegmentIdx = idx
	c.state.Handlers[idx].reset()
}

func (c *Controller) completeRep(now time.Duration, res *Result) {
	st := &c.state
	ex := c.exercise()

	st.Count++
	res.Events = append(res.Events, c.event(EventRepCompleted, now, ""))
	c.log.Info("repetition completed",
		zap.String("exercise", ex.Name),
		zap.Int("count", st.Count),
		zap.Int("target", ex.TargetReps))

	if ex.TargetReps <= 0 || st.Count < ex.TargetReps {
		st.SegmentIdx = 0
		st.Buffer = nil
		st.resetHandlers()
		return
	}

	res.Events = append(res.Events, c.event(EventExerciseCompleted, now, ""))

	if st.ExerciseIdx+1 < c.plan.Len() {
		lastValid := st.LastValidPose
		c.loadExercise(st.ExerciseIdx + 1)
		c.state.clockStarted = true
		c.state.LastValidPose = lastValid
		c.log.Info("switching exercise", zap.String("exercise", c.exercise().Name))
		res.Events = append(res.Events, c.event(EventExerciseChanged, now, ex.Name))
		return
	}

	st.PlanComplete = true
	c.log.Info("plan completed", zap.Strings("exercises", c.plan.Names()))
	res.Events = append(res.Events, c.event(EventPlanCompleted, now, ""))
}

func (c *Controller) event(kind EventKind, now time.Duration, reason string) Event {
	ex := c.exercise()
	return Event{
		Kind:      kind,
		Exercise:  ex.Name,
		Segment:   c.state.SegmentIdx,
		Reps:      c.state.Count,
		Target:    ex.TargetReps,
		Reason:    reason,
		Timestamp: millis(now),
	}
}

// finish fills the progress fields from the state after the frame.
func (c *Controller) finish(res Result) Result {
	full := c.result(res.Events)
	full.Feedback = res.Feedback
	full.Feedback.Form = formFeedback(res.Verdict)
	full.Verdict = res.Verdict
	full.TransitionScore = res.TransitionScore
	if c.state.PlanComplete {
		full.Feedback = Feedback{Message: msgPlanComplete, Color: ColorGreen, Form: full.Feedback.Form}
	}
	return full
}

func (c *Controller) result(events []Event) Result {
	st := &c.state
	ex := c.exercise()

	res := Result{
		ExerciseName: ex.Name,
		SegmentIndex: st.SegmentIdx,
		RepCount:     st.Count,
		TargetReps:   ex.TargetReps,
		Score:        Score(st.Count, ex.TargetReps),
		Relaxing:     st.Relaxing,
		PlanComplete: st.PlanComplete,
		Events:       events,
	}

	if st.Relaxing {
		res.Phase = relaxationPhase
		res.PhaseType = choreography.TypeRelaxation
		return res
	}
	if seg, ok := ex.Reference.Segment(st.SegmentIdx); ok {
		res.Phase = seg.Label
		res.PhaseType = seg.Type
	}
	return res
}
