package choreography

import (
	"encoding/json"
	"strconv"

	"github.com/aadiyog/yogatracker/internal/pose"
)

// Builder assembles reference choreography JSON from poses. It is used to
// author fixtures and synthetic references.
type Builder struct {
	offset   pose.Point3D
	frames   [][]string
	segments []any
}

// NewBuilder creates a Builder whose frames are placed at offset, the way
// a camera reports them before normalization.
func NewBuilder(offset pose.Point3D) *Builder {
	return &Builder{offset: offset}
}

// Hold appends n copies of f as one segment.
func (b *Builder) Hold(label string, f pose.Frame, n int, thresholds ...float64) *Builder {
	start := len(b.frames)
	for i := 0; i < n; i++ {
		b.frames = append(b.frames, b.encode(f))
	}
	return b.segment(start, label, thresholds)
}

// Move appends n frames interpolated from one pose to another as one segment.
func (b *Builder) Move(label string, from, to pose.Frame, n int, thresholds ...float64) *Builder {
	start := len(b.frames)
	for i := 0; i < n; i++ {
		t := 1.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		b.frames = append(b.frames, b.encode(pose.Lerp(from, to, t)))
	}
	return b.segment(start, label, thresholds)
}

// Raw appends a segment entry verbatim.
func (b *Builder) Raw(entry any) *Builder {
	b.segments = append(b.segments, entry)
	return b
}

// JSON returns the encoded reference.
func (b *Builder) JSON() []byte {
	data, _ := json.Marshal(map[string]any{
		"frames":   b.frames,
		"segments": b.segments,
	})
	return data
}

func (b *Builder) segment(start int, label string, thresholds []float64) *Builder {
	end := len(b.frames) - 1
	if thresholds == nil {
		thresholds = []float64{}
	}
	b.segments = append(b.segments, []any{start, end, label, thresholds})
	return b
}

func (b *Builder) encode(f pose.Frame) []string {
	out := make([]string, len(f))
	for i, p := range f {
		out[i] = strconv.FormatFloat(p.X+b.offset.X, 'f', -1, 64) + "," +
			strconv.FormatFloat(p.Y+b.offset.Y, 'f', -1, 64) + "," +
			strconv.FormatFloat(p.Z+b.offset.Z, 'f', -1, 64)
	}
	return out
}

// SampleReference is a complete five segment choreography: stand facing
// front, raise both arms, hold them overhead, lower them and stand again.
func SampleReference() []byte {
	standing := pose.StandingPose()
	raised := pose.ArmsRaisedPose()
	return NewBuilder(pose.Point3D{X: 0.5, Y: 0.6}).
		Hold("starting_front", standing, 10, 0.5, 0.3, 0.3).
		Move("transition_raise", standing, raised, 20).
		Hold("holding_raised", raised, 10, 0.5, 0.5).
		Move("transition_lower", raised, standing, 20).
		Hold("ending_front", standing, 10, 0.5, 0.3, 0.3).
		JSON()
}
