package engine

import (
	"fmt"
	"time"

	"github.com/aadiyog/yogatracker/internal/choreography"
	"github.com/aadiyog/yogatracker/internal/pose"
	"github.com/aadiyog/yogatracker/internal/similarity"
	"github.com/aadiyog/yogatracker/internal/transition"
)

// poseChecker runs the composite pose success check.
type poseChecker interface {
	Check(profile similarity.Profile, ref, user pose.Frame, thresholds []float64) similarity.Verdict
}

// phaseContext is everything a handler may consult for one frame.
type phaseContext struct {
	cfg      *Config
	checker  poseChecker
	ref      *choreography.Reference
	analyzer *transition.Analyzer
	state    *SessionState
	now      time.Duration
}

// outcome is a handler's decision for one frame.
type outcome struct {
	complete bool
	// relax is the reason relaxation is requested, empty otherwise.
	relax         string
	reset         bool
	holdCompleted bool
	feedback      Feedback
	verdict       *similarity.Verdict
}

// process runs the handler for the current segment.
func (h *Handler) process(pc *phaseContext, seg choreography.Segment) outcome {
	h.enter(pc.now)

	switch h.Kind {
	case choreography.TypeStarting:
		return h.processMatch(pc, seg, "start")
	case choreography.TypeEnding:
		return h.processMatch(pc, seg, "end")
	case choreography.TypeHolding:
		return h.processHolding(pc, seg)
	case choreography.TypeTransition:
		return h.processTransition(pc, seg)
	case choreography.TypeRelaxation:
		return h.processRest(pc)
	default:
		return outcome{feedback: Feedback{Message: fmt.Sprintf("Unknown phase %q", seg.Label), Color: ColorRed}}
	}
}

// processMatch handles starting and ending segments: the facing must match
// and the pose check must pass continuously for StartHold.
func (h *Handler) processMatch(pc *phaseContext, seg choreography.Segment, verb string) outcome {
	m := &h.match
	st := pc.state

	if st.Frame == nil {
		m.matching = false
		return outcome{feedback: Feedback{Message: msgNoPose, Color: ColorRed}}
	}

	if !pose.FacingMatches(seg.Facing, st.Facing) {
		m.matching = false
		if !m.mismatching {
			m.mismatching = true
			m.mismatchSince = pc.now
		}
		out := outcome{feedback: Feedback{Message: fmt.Sprintf("Face %s to %s", seg.Facing, verb), Color: ColorRed}}
		if pc.now-m.mismatchSince > pc.cfg.FacingMismatchTolerance {
			out.relax = "facing mismatch"
		}
		return out
	}
	m.mismatching = false

	v := pc.checker.Check(pc.cfg.Profiles.StartEnd, pc.ref.ReferencePose(seg), st.Frame, seg.Thresholds)
	out := outcome{verdict: &v}

	if !v.Success {
		m.matching = false
		if seg.Type == choreography.TypeStarting {
			out.feedback = Feedback{Message: fmt.Sprintf("Match the starting pose (%s)", seg.Facing), Color: ColorRed}
		} else {
			out.feedback = Feedback{Message: "Match the ending pose", Color: ColorRed}
		}
		return out
	}

	if !m.matching {
		m.matching = true
		m.since = pc.now
	}

	if pc.now-m.since >= pc.cfg.StartHold {
		out.complete = true
		if seg.Type == choreography.TypeStarting {
			out.feedback = Feedback{Message: fmt.Sprintf("Starting pose (%s) detected", seg.Facing), Color: ColorGreen}
		} else {
			out.feedback = Feedback{Message: "Repetition completed", Color: ColorGreen}
		}
		return out
	}

	if seg.Type == choreography.TypeStarting {
		out.feedback = Feedback{Message: fmt.Sprintf("Hold starting pose (%s)", seg.Facing), Color: ColorYellow}
	} else {
		out.feedback = Feedback{Message: "Hold ending pose", Color: ColorYellow}
	}
	return out
}

// processHolding accumulates continuous success until MinHold. Once the
// hold is completed the segment ends only when the whole body distance
// rises above thresholds[0] scaled by the exit multiplier.
func (h *Handler) processHolding(pc *phaseContext, seg choreography.Segment) outcome {
	hs := &h.hold
	st := pc.state

	if !hs.scored {
		hs.scored = true
		hs.transitionScore = transitionScore(pc, seg)
	}

	if st.Frame == nil {
		hs.succeeding = false
		out := outcome{feedback: Feedback{Message: msgNoPose, Color: ColorRed}}
		if !hs.completed && pc.now-hs.failingSince > pc.cfg.AbandonTimeout {
			out.relax = "hold abandoned"
		}
		return out
	}

	v := pc.checker.Check(pc.cfg.Profiles.Holding, pc.ref.ReferencePose(seg), st.Frame, seg.Thresholds)
	out := outcome{verdict: &v}

	if hs.completed {
		exit := v.WholeThreshold * pc.cfg.ExitThresholdMultiplier
		if v.Whole > exit {
			out.complete = true
			out.feedback = Feedback{Message: fmt.Sprintf("%s completed, exiting hold", seg.Label), Color: ColorGreen}
			return out
		}
		out.feedback = Feedback{
			Message: fmt.Sprintf("Hold completed, stay or adjust to exit (DTW: %.2f)", v.Whole),
			Color:   ColorGreen,
		}
		return out
	}

	if !v.Success {
		hs.succeeding = false
		hs.held = 0
		out.feedback = Feedback{Message: "Adjust pose to hold", Color: ColorRed}
		if pc.now-hs.failingSince > pc.cfg.AbandonTimeout {
			out.relax = "hold abandoned"
		}
		return out
	}

	if !hs.succeeding {
		hs.succeeding = true
		hs.successStart = pc.now
	}
	hs.failingSince = pc.now
	hs.held = pc.now - hs.successStart

	if hs.held >= pc.cfg.MinHold {
		hs.completed = true
		out.holdCompleted = true
		out.feedback = Feedback{
			Message: fmt.Sprintf("Hold completed, stay or adjust to exit (DTW: %.2f)", v.Whole),
			Color:   ColorGreen,
		}
		return out
	}

	out.feedback = Feedback{
		Message: fmt.Sprintf("Holding %s (%.1fs)", seg.Label, hs.held.Seconds()),
		Color:   ColorYellow,
	}
	return out
}

// transitionScore compares the buffered transition frames with the
// reference frames between the preceding anchor and this segment. It is
// advisory and computed once per entry.
func transitionScore(pc *phaseContext, seg choreography.Segment) *float64 {
	if len(pc.state.Buffer) == 0 {
		return nil
	}

	from := -1
	for i := seg.Index - 1; i >= 0; i-- {
		if prev, ok := pc.ref.Segment(i); ok && prev.Type.Anchor() {
			from = prev.End
			break
		}
	}
	if from < 0 {
		return nil
	}

	ideal := pc.ref.IdealKeypoints(from, seg.Start)
	if len(ideal) == 0 {
		return nil
	}

	score := similarity.TransitionScore(pc.state.Buffer, ideal, pc.cfg.DTWRadius)
	return &score
}

// processTransition completes after TransitionMinDuration once the tracked
// wrist is inside the corridor, or as soon as the minimum has elapsed when
// no corridor covers the segment. Exceeding TransitionTimeout requests a
// reset to the first segment.
func (h *Handler) processTransition(pc *phaseContext, seg choreography.Segment) outcome {
	elapsed := pc.now - h.enteredAt

	if elapsed > pc.cfg.TransitionTimeout {
		return outcome{
			reset:    true,
			feedback: Feedback{Message: "Transition timed out, return to the starting pose", Color: ColorRed},
		}
	}

	st := pc.state
	if st.Frame == nil {
		return outcome{feedback: Feedback{Message: msgNoPose, Color: ColorRed}}
	}

	within, applies := pc.analyzer.Analyze(st.Frame[transition.TrackedLandmark], seg.Index)
	onPath := !applies || within

	if elapsed >= pc.cfg.TransitionMinDuration && onPath {
		return outcome{complete: true, feedback: Feedback{Message: "Transition completed", Color: ColorGreen}}
	}

	if !onPath {
		return outcome{feedback: Feedback{Message: "Follow the reference path with your left wrist", Color: ColorYellow}}
	}
	return outcome{feedback: Feedback{Message: "Transitioning...", Color: ColorYellow}}
}

// processRest handles relaxation segments that are part of the choreography.
func (h *Handler) processRest(pc *phaseContext) outcome {
	elapsed := pc.now - h.enteredAt
	if elapsed >= pc.cfg.RelaxationSegmentDuration {
		return outcome{complete: true, feedback: Feedback{Message: "Rest completed", Color: ColorGreen}}
	}
	remaining := pc.cfg.RelaxationSegmentDuration - elapsed
	return outcome{feedback: Feedback{Message: fmt.Sprintf("Relax (%.0fs)", remaining.Seconds()), Color: ColorYellow}}
}
