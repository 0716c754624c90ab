// Package transition validates free movement between fixed poses against
// the reference trajectory of a tracked landmark.
package transition

import (
	"math"

	"github.com/aadiyog/yogatracker/internal/choreography"
	"github.com/aadiyog/yogatracker/internal/pose"
)

// DefaultThreshold bounds a corridor whose closing segment has no thresholds.
const DefaultThreshold = 0.1

// TrackedLandmark is the keypoint followed through transitions.
const TrackedLandmark = pose.LeftWrist

// Corridor is the reference path of the tracked landmark between two
// consecutive anchor segments.
type Corridor struct {
	From      int            `json:"from"`
	To        int            `json:"to"`
	Path      []pose.Point3D `json:"path"`
	Threshold float64        `json:"threshold"`
}

// Covers reports whether segment index idx lies strictly inside the corridor.
func (c Corridor) Covers(idx int) bool {
	return c.From < idx && idx < c.To
}

// Analyzer holds the corridors precomputed for one reference.
type Analyzer struct {
	corridors []Corridor
}

// NewAnalyzer builds corridors between every pair of consecutive anchor
// (starting, holding, ending) segments. The path runs over the reference
// frames from the end of the first anchor up to the start of the next and
// is bounded by the next anchor's first threshold.
func NewAnalyzer(ref *choreography.Reference) *Analyzer {
	a := &Analyzer{}

	var anchors []choreography.Segment
	for _, seg := range ref.Segments() {
		if seg.Type.Anchor() {
			anchors = append(anchors, seg)
		}
	}

	for i := 0; i+1 < len(anchors); i++ {
		from, to := anchors[i], anchors[i+1]
		if to.Index-from.Index < 2 {
			continue
		}

		frames := ref.IdealKeypoints(from.End, to.Start)
		path := make([]pose.Point3D, 0, len(frames))
		for _, f := range frames {
			if len(f) > TrackedLandmark {
				path = append(path, f[TrackedLandmark])
			}
		}
		if len(path) == 0 {
			continue
		}

		threshold, ok := to.Threshold(0)
		if !ok {
			threshold = DefaultThreshold
		}

		a.corridors = append(a.corridors, Corridor{
			From:      from.Index,
			To:        to.Index,
			Path:      path,
			Threshold: threshold,
		})
	}

	return a
}

// Corridors returns the precomputed corridors.
func (a *Analyzer) Corridors() []Corridor {
	return a.corridors
}

// Analyze checks a user landmark position against the corridor covering
// segment idx. applies is false when no corridor covers the segment, in
// which case within is false as well.
func (a *Analyzer) Analyze(p pose.Point3D, idx int) (within, applies bool) {
	c, ok := a.find(idx)
	if !ok {
		return false, false
	}
	return Nearest(p, c.Path) <= c.Threshold, true
}

// EndTarget returns the last reference position of the corridor covering idx.
func (a *Analyzer) EndTarget(idx int) (pose.Point3D, bool) {
	c, ok := a.find(idx)
	if !ok {
		return pose.Point3D{}, false
	}
	return c.Path[len(c.Path)-1], true
}

func (a *Analyzer) find(idx int) (Corridor, bool) {
	for _, c := range a.corridors {
		if c.Covers(idx) {
			return c, true
		}
	}
	return Corridor{}, false
}

// Nearest returns the smallest planar distance from p to any path sample.
func Nearest(p pose.Point3D, path []pose.Point3D) float64 {
	best := math.Inf(1)
	for _, q := range path {
		if d := p.PlanarDistance(q); d < best {
			best = d
		}
	}
	return best
}
