// Package pose provides body keypoint types, normalization and facing classification.
package pose

import "math"

// Body keypoint indices following the MediaPipe pose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumKeypoints   = 33
)

// Origin is the keypoint every normalized frame is centred on.
const Origin = RightHip

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns p - q.
func (p Point3D) Sub(q Point3D) Point3D {
	return Point3D{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Cross returns the cross product p x q.
func (p Point3D) Cross(q Point3D) Point3D {
	return Point3D{
		X: p.Y*q.Z - p.Z*q.Y,
		Y: p.Z*q.X - p.X*q.Z,
		Z: p.X*q.Y - p.Y*q.X,
	}
}

// Norm returns the length of p.
func (p Point3D) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Distance returns the Euclidean distance between p and q.
func (p Point3D) Distance(q Point3D) float64 {
	return p.Sub(q).Norm()
}

// PlanarDistance returns the distance between p and q ignoring depth.
func (p Point3D) PlanarDistance(q Point3D) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Coords returns the point as a coordinate vector.
func (p Point3D) Coords() []float64 {
	return []float64{p.X, p.Y, p.Z}
}

func (p Point3D) finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0) && !math.IsInf(p.Z, 0)
}

// Keypoint is a single detected landmark. Visibility is nil when the
// detector does not report a confidence.
type Keypoint struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Visibility *float64 `json:"visibility,omitempty"`
}

// Point returns the keypoint position.
func (k Keypoint) Point() Point3D {
	return Point3D{X: k.X, Y: k.Y, Z: k.Z}
}

// Present reports whether the detector considered the keypoint visible.
func (k Keypoint) Present() bool {
	return k.Visibility == nil || *k.Visibility > 0
}

// Frame is an ordered set of keypoints for one instant, indexed by the
// constants above.
type Frame []Point3D

// Clone returns a copy of f.
func (f Frame) Clone() Frame {
	if f == nil {
		return nil
	}
	out := make(Frame, len(f))
	copy(out, f)
	return out
}

// Slice returns the keypoints in [lo, hi), clamped to the frame.
func (f Frame) Slice(lo, hi int) Frame {
	if lo < 0 {
		lo = 0
	}
	if hi > len(f) {
		hi = len(f)
	}
	if lo >= hi {
		return nil
	}
	return f[lo:hi]
}

// Translate returns f shifted so that origin becomes (0,0,0).
func (f Frame) Translate(origin Point3D) Frame {
	out := make(Frame, len(f))
	for i, p := range f {
		out[i] = p.Sub(origin)
	}
	return out
}

// Lerp interpolates between two frames of equal length.
func Lerp(a, b Frame, t float64) Frame {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make(Frame, n)
	for i := 0; i < n; i++ {
		out[i] = Point3D{
			X: a[i].X + (b[i].X-a[i].X)*t,
			Y: a[i].Y + (b[i].Y-a[i].Y)*t,
			Z: a[i].Z + (b[i].Z-a[i].Z)*t,
		}
	}
	return out
}

// Normalize validates a raw detector frame and translates it so the hip
// keypoint sits at the origin. It returns the normalized frame, the original
// hip position and false when the frame cannot be used as a pose: fewer than
// NumKeypoints keypoints, non-finite coordinates or a hip the detector marked
// as not visible.
func Normalize(raw []Keypoint) (Frame, Point3D, bool) {
	if len(raw) < NumKeypoints {
		return nil, Point3D{}, false
	}

	hip := raw[Origin]
	if !hip.Present() {
		return nil, Point3D{}, false
	}
	origin := hip.Point()

	normalized := make(Frame, NumKeypoints)
	for i := 0; i < NumKeypoints; i++ {
		p := raw[i].Point()
		if !p.finite() {
			return nil, Point3D{}, false
		}
		normalized[i] = p.Sub(origin)
	}

	// Hip is exactly the origin.
	normalized[Origin] = Point3D{}

	return normalized, origin, true
}

// EuclideanDistance calculates the total Euclidean distance between two sets of 3D points.
// It sums the distances between corresponding points in the two slices.
func EuclideanDistance(a, b []Point3D) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}

	var total float64
	for i := 0; i < minLen; i++ {
		total += a[i].Distance(b[i])
	}

	return total
}
