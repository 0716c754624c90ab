// Package choreography parses prerecorded reference motions into typed segments.
package choreography

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/aadiyog/yogatracker/internal/pose"
)

// ErrNoSegments is returned when a reference yields no usable segment.
var ErrNoSegments = errors.New("reference choreography has no valid segments")

// SegmentType is the phase family a segment belongs to.
type SegmentType string

const (
	TypeStarting   SegmentType = "starting"
	TypeTransition SegmentType = "transition"
	TypeHolding    SegmentType = "holding"
	TypeEnding     SegmentType = "ending"
	TypeRelaxation SegmentType = "relaxation"
)

// ParseSegmentType derives the type from the label prefix before the first
// underscore, e.g. "holding_tree" is a holding segment.
func ParseSegmentType(label string) (SegmentType, bool) {
	prefix, _, _ := strings.Cut(label, "_")
	switch t := SegmentType(strings.ToLower(strings.TrimSpace(prefix))); t {
	case TypeStarting, TypeTransition, TypeHolding, TypeEnding, TypeRelaxation:
		return t, true
	default:
		return "", false
	}
}

// Anchor reports whether the segment is a fixed pose (start, hold or end).
func (t SegmentType) Anchor() bool {
	return t == TypeStarting || t == TypeHolding || t == TypeEnding
}

// Segment is a labeled span of reference frames.
type Segment struct {
	Index      int         `json:"index"`
	Start      int         `json:"start"`
	End        int         `json:"end"`
	Label      string      `json:"label"`
	Thresholds []float64   `json:"thresholds"`
	Facing     pose.Facing `json:"facing"`
	Type       SegmentType `json:"type"`
}

// Middle returns the index of the frame representing the segment.
func (s Segment) Middle() int {
	return s.Start + (s.End-s.Start)/2
}

// Threshold returns thresholds[i] when present.
func (s Segment) Threshold(i int) (float64, bool) {
	if i < 0 || i >= len(s.Thresholds) {
		return 0, false
	}
	return s.Thresholds[i], true
}

// Anomaly describes a segment entry that was dropped during extraction.
type Anomaly struct {
	Entry  int    `json:"entry"`
	Reason string `json:"reason"`
}

// Reference is an extracted choreography: hip-normalized frames plus the
// segments that survived validation.
type Reference struct {
	frames    []pose.Frame
	segments  []Segment
	anomalies []Anomaly
}

// Options configures extraction.
type Options struct {
	Facing pose.FacingThresholds
	Logger *zap.Logger
}

// DefaultOptions returns default facing thresholds and no logging.
func DefaultOptions() Options {
	return Options{Facing: pose.DefaultFacingThresholds()}
}

type rawReference struct {
	Frames   [][]string        `json:"frames"`
	Segments []json.RawMessage `json:"segments"`
}

// Parse extracts a reference from its JSON form:
//
//	{"frames": [["x,y,z", ...], ...], "segments": [[start, end, label, [thresholds...]], ...]}
//
// A malformed segment is dropped and recorded as an anomaly; the rest are
// kept. Parse fails only on undecodable JSON or when no segment survives,
// in which case the returned error wraps ErrNoSegments.
func Parse(data []byte, opts Options) (*Reference, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var raw rawReference
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode reference: %w", err)
	}

	ref := &Reference{frames: make([]pose.Frame, len(raw.Frames))}
	for i, encoded := range raw.Frames {
		ref.frames[i] = normalizeReferenceFrame(decodeFrame(encoded))
	}

	for i, entry := range raw.Segments {
		seg, err := parseSegment(entry, ref.frames)
		if err != nil {
			ref.anomalies = append(ref.anomalies, Anomaly{Entry: i, Reason: err.Error()})
			log.Warn("dropping malformed segment", zap.Int("entry", i), zap.Error(err))
			continue
		}
		seg.Index = len(ref.segments)
		seg.Facing = pose.DetectFacing(ref.frames[seg.Middle()], opts.Facing)
		ref.segments = append(ref.segments, seg)
	}

	if len(ref.segments) == 0 {
		return ref, fmt.Errorf("%w (%d entries, %d dropped)", ErrNoSegments, len(raw.Segments), len(ref.anomalies))
	}

	return ref, nil
}

// decodeFrame parses "x,y,z[,...]" keypoint strings. Components that fail
// to parse become zero.
func decodeFrame(encoded []string) pose.Frame {
	f := make(pose.Frame, len(encoded))
	for i, s := range encoded {
		parts := strings.Split(s, ",")
		var c [3]float64
		for k := 0; k < len(parts) && k < 3; k++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(parts[k]), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			c[k] = v
		}
		f[i] = pose.Point3D{X: c[0], Y: c[1], Z: c[2]}
	}
	return f
}

// normalizeReferenceFrame centres a reference frame on the hip when the
// frame is long enough to have one.
func normalizeReferenceFrame(f pose.Frame) pose.Frame {
	if len(f) <= pose.Origin {
		return f
	}
	out := f.Translate(f[pose.Origin])
	out[pose.Origin] = pose.Point3D{}
	return out
}

func parseSegment(entry json.RawMessage, frames []pose.Frame) (Segment, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil {
		return Segment{}, fmt.Errorf("segment is not a tuple: %v", err)
	}
	if len(fields) < 3 {
		return Segment{}, fmt.Errorf("segment has %d fields, want at least 3", len(fields))
	}

	start, err := parseIndex(fields[0])
	if err != nil {
		return Segment{}, fmt.Errorf("invalid start: %v", err)
	}
	end, err := parseIndex(fields[1])
	if err != nil {
		return Segment{}, fmt.Errorf("invalid end: %v", err)
	}

	var label string
	if err := json.Unmarshal(fields[2], &label); err != nil {
		return Segment{}, fmt.Errorf("invalid label: %v", err)
	}

	segType, ok := ParseSegmentType(label)
	if !ok {
		return Segment{}, fmt.Errorf("unknown segment type in label %q", label)
	}

	if start < 0 || end < start {
		return Segment{}, fmt.Errorf("invalid bounds [%d, %d]", start, end)
	}

	seg := Segment{Start: start, End: end, Label: label, Type: segType}
	m := seg.Middle()
	if m < 0 || m >= len(frames) {
		return Segment{}, fmt.Errorf("middle frame %d outside %d frames", m, len(frames))
	}
	// Facing and the comparison profiles read the full landmark set.
	if n := len(frames[m]); n < pose.NumKeypoints {
		return Segment{}, fmt.Errorf("middle frame %d has %d keypoints, want %d", m, n, pose.NumKeypoints)
	}

	if len(fields) > 3 {
		var thresholds []float64
		if err := json.Unmarshal(fields[3], &thresholds); err != nil {
			return Segment{}, fmt.Errorf("invalid thresholds: %v", err)
		}
		seg.Thresholds = thresholds
	}

	return seg, nil
}

// parseIndex accepts integral JSON numbers, including ones written as floats,
// in [0, math.MaxInt32].
func parseIndex(raw json.RawMessage) (int, error) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%v is not an integer", v)
	}
	if v < 0 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%v out of range", v)
	}
	return int(v), nil
}

// Segments returns the ordered valid segments.
func (r *Reference) Segments() []Segment {
	return r.segments
}

// Segment returns the segment at index i.
func (r *Reference) Segment(i int) (Segment, bool) {
	if i < 0 || i >= len(r.segments) {
		return Segment{}, false
	}
	return r.segments[i], true
}

// FrameCount returns the number of reference frames.
func (r *Reference) FrameCount() int {
	return len(r.frames)
}

// Anomalies returns the segment entries dropped during extraction.
func (r *Reference) Anomalies() []Anomaly {
	return r.anomalies
}

// IdealKeypoints returns the normalized reference frames in [start, end),
// clamped to the available frames.
func (r *Reference) IdealKeypoints(start, end int) []pose.Frame {
	if start < 0 {
		start = 0
	}
	if end > len(r.frames) {
		end = len(r.frames)
	}
	if start >= end {
		return nil
	}
	return r.frames[start:end]
}

// ReferencePose returns the normalized frame representing a segment.
func (r *Reference) ReferencePose(seg Segment) pose.Frame {
	m := seg.Middle()
	if m < 0 || m >= len(r.frames) {
		return nil
	}
	return r.frames[m]
}

// FirstStarting returns the first starting segment, falling back to the
// first segment when the choreography has none.
func (r *Reference) FirstStarting() (Segment, bool) {
	for _, s := range r.segments {
		if s.Type == TypeStarting {
			return s, true
		}
	}
	if len(r.segments) > 0 {
		return r.segments[0], true
	}
	return Segment{}, false
}
