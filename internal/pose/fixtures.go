package pose

// standingPose is a front-facing upright body in image coordinates
// (y grows downward) with the right hip at (-0.1, 0).
var standingPose = [NumKeypoints]Point3D{
	Nose:           {X: 0, Y: -0.8},
	LeftEyeInner:   {X: 0.02, Y: -0.82},
	LeftEye:        {X: 0.03, Y: -0.82},
	LeftEyeOuter:   {X: 0.04, Y: -0.82},
	RightEyeInner:  {X: -0.02, Y: -0.82},
	RightEye:       {X: -0.03, Y: -0.82},
	RightEyeOuter:  {X: -0.04, Y: -0.82},
	LeftEar:        {X: 0.06, Y: -0.8},
	RightEar:       {X: -0.06, Y: -0.8},
	MouthLeft:      {X: 0.02, Y: -0.76},
	MouthRight:     {X: -0.02, Y: -0.76},
	LeftShoulder:   {X: 0.15, Y: -0.6},
	RightShoulder:  {X: -0.15, Y: -0.6},
	LeftElbow:      {X: 0.2, Y: -0.35},
	RightElbow:     {X: -0.2, Y: -0.35},
	LeftWrist:      {X: 0.22, Y: -0.1},
	RightWrist:     {X: -0.22, Y: -0.1},
	LeftPinky:      {X: 0.23, Y: -0.05},
	RightPinky:     {X: -0.23, Y: -0.05},
	LeftIndex:      {X: 0.22, Y: -0.04},
	RightIndex:     {X: -0.22, Y: -0.04},
	LeftThumb:      {X: 0.21, Y: -0.06},
	RightThumb:     {X: -0.21, Y: -0.06},
	LeftHip:        {X: 0.1, Y: 0},
	RightHip:       {X: -0.1, Y: 0},
	LeftKnee:       {X: 0.1, Y: 0.4},
	RightKnee:      {X: -0.1, Y: 0.4},
	LeftAnkle:      {X: 0.1, Y: 0.8},
	RightAnkle:     {X: -0.1, Y: 0.8},
	LeftHeel:       {X: 0.1, Y: 0.83},
	RightHeel:      {X: -0.1, Y: 0.83},
	LeftFootIndex:  {X: 0.12, Y: 0.85},
	RightFootIndex: {X: -0.12, Y: 0.85},
}

// StandingPose returns a normalized front-facing upright pose.
func StandingPose() Frame {
	f := make(Frame, NumKeypoints)
	copy(f, standingPose[:])
	return f.Translate(standingPose[Origin])
}

// ArmsRaisedPose returns a normalized front-facing pose with both arms
// stretched overhead.
func ArmsRaisedPose() Frame {
	f := make(Frame, NumKeypoints)
	copy(f, standingPose[:])
	raised := map[int]Point3D{
		LeftElbow:   {X: 0.2, Y: -0.85},
		RightElbow:  {X: -0.2, Y: -0.85},
		LeftWrist:   {X: 0.22, Y: -1.1},
		RightWrist:  {X: -0.22, Y: -1.1},
		LeftPinky:   {X: 0.23, Y: -1.15},
		RightPinky:  {X: -0.23, Y: -1.15},
		LeftIndex:   {X: 0.22, Y: -1.16},
		RightIndex:  {X: -0.22, Y: -1.16},
		LeftThumb:   {X: 0.21, Y: -1.14},
		RightThumb:  {X: -0.21, Y: -1.14},
	}
	for i, p := range raised {
		f[i] = p
	}
	return f.Translate(standingPose[Origin])
}

// Mirror flips a frame horizontally, turning a front-facing pose into a
// back-facing one.
func Mirror(f Frame) Frame {
	out := make(Frame, len(f))
	for i, p := range f {
		out[i] = Point3D{X: -p.X, Y: p.Y, Z: p.Z}
	}
	return out
}

// Keypoints converts a frame back to raw detector keypoints placed at
// offset, as a camera would report them.
func Keypoints(f Frame, offset Point3D) []Keypoint {
	out := make([]Keypoint, len(f))
	for i, p := range f {
		out[i] = Keypoint{X: p.X + offset.X, Y: p.Y + offset.Y, Z: p.Z + offset.Z}
	}
	return out
}
