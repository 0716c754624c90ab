package similarity

import (
	"math"

	"github.com/aadiyog/yogatracker/internal/pose"
)

// TransitionScore compares the frames a user moved through with the
// reference frames of the same span. The user frames are resampled to the
// reference length, both sides are flattened into one keypoint series and
// aligned with FastDTW. Returns infinity if either side is empty.
func TransitionScore(user, ideal []pose.Frame, radius int) float64 {
	if len(user) == 0 || len(ideal) == 0 {
		return math.Inf(1)
	}

	resampled := resampleFrames(user, len(ideal))

	d, _ := FastDTW(flatten(resampled), flatten(ideal), radius, Euclidean)
	return d
}

func flatten(frames []pose.Frame) Series {
	var s Series
	for _, f := range frames {
		for _, p := range f {
			s = append(s, p.Coords())
		}
	}
	return s
}

// resampleFrames linearly interpolates a frame sequence to targetLength frames.
func resampleFrames(frames []pose.Frame, targetLength int) []pose.Frame {
	if len(frames) == 0 || targetLength <= 0 {
		return nil
	}

	if len(frames) == targetLength {
		return frames
	}

	if len(frames) == 1 || targetLength == 1 {
		out := make([]pose.Frame, targetLength)
		for i := range out {
			out[i] = frames[0]
		}
		return out
	}

	out := make([]pose.Frame, targetLength)
	ratio := float64(len(frames)-1) / float64(targetLength-1)

	for i := 0; i < targetLength; i++ {
		pos := float64(i) * ratio
		lower := int(pos)
		upper := lower + 1
		if upper >= len(frames) {
			out[i] = frames[len(frames)-1]
			continue
		}
		out[i] = pose.Lerp(frames[lower], frames[upper], pos-float64(lower))
	}

	return out
}
