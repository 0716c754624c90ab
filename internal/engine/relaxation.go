package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/aadiyog/yogatracker/internal/choreography"
	"github.com/aadiyog/yogatracker/internal/pose"
)

const (
	msgRelax  = "Relax, then return to the starting pose to continue"
	msgResume = "Welcome back, resuming exercise"
)

// enterRelaxation switches the session into the recovery state.
func (c *Controller) enterRelaxation(now time.Duration, reason string, res *Result) {
	st := &c.state
	if st.Relaxing {
		return
	}
	st.Relaxing = true
	st.RelaxStart = now

	c.log.Info("entering relaxation",
		zap.String("exercise", c.exercise().Name),
		zap.Int("segment", st.SegmentIdx),
		zap.String("reason", reason))
	res.Events = append(res.Events, c.event(EventRelaxationEntered, now, reason))
}

// shouldRelax reports whether the session has gone without a valid pose for
// longer than the relaxation threshold.
func (c *Controller) shouldRelax(now time.Duration) bool {
	st := &c.state
	return st.Frame == nil && now-st.LastValidPose > c.cfg.RelaxationThreshold
}

// processRelaxation waits until the user is back in the first starting pose
// facing the right way, or until MaxRelaxation forces the session on.
func (c *Controller) processRelaxation(now time.Duration, res *Result) {
	st := &c.state
	ref := c.exercise().Reference

	target, ok := ref.FirstStarting()
	if !ok {
		c.exitRelaxation(now, "no starting segment", res)
		return
	}

	if st.Frame != nil &&
		pose.EuclideanDistance(st.Frame, ref.ReferencePose(target)) < c.cfg.RelaxationExitDistance &&
		pose.FacingMatches(target.Facing, st.Facing) {
		c.exitRelaxation(now, "returned to starting pose", res)
		res.Feedback = Feedback{Message: msgResume, Color: ColorGreen}
		return
	}

	if now-st.RelaxStart >= c.cfg.MaxRelaxation {
		c.exitRelaxation(now, "max relaxation elapsed", res)
		res.Feedback = Feedback{Message: msgResume, Color: ColorYellow}
		return
	}

	res.Feedback = Feedback{Message: msgRelax, Color: ColorYellow}
}

// exitRelaxation restarts the repetition from the first segment.
func (c *Controller) exitRelaxation(now time.Duration, reason string, res *Result) {
	st := &c.state
	st.Relaxing = false
	st.SegmentIdx = 0
	st.Buffer = nil
	st.LastValidPose = now
	st.resetHandlers()

	c.log.Info("exiting relaxation",
		zap.String("exercise", c.exercise().Name),
		zap.String("reason", reason))
	res.Events = append(res.Events, c.event(EventRelaxationExited, now, reason))
}

// relaxationPhase is reported as the phase label while relaxing.
const relaxationPhase = string(choreography.TypeRelaxation)
