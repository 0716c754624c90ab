package similarity

import (
	"math"

	"github.com/aadiyog/yogatracker/internal/pose"
)

// Span is a half-open keypoint index range.
type Span struct {
	Lo int `mapstructure:"lo" yaml:"lo"`
	Hi int `mapstructure:"hi" yaml:"hi"`
}

// Region compares a keypoint subset of the reference frame with a subset
// of the user frame. The two spans may differ in length; DTW aligns them.
type Region struct {
	Name string `mapstructure:"name" yaml:"name"`
	Ref  Span   `mapstructure:"ref" yaml:"ref"`
	User Span   `mapstructure:"user" yaml:"user"`
	// Threshold is the index into the segment thresholds bounding this region.
	Threshold int `mapstructure:"threshold" yaml:"threshold"`
	// Advisory regions are measured and reported but never gate success.
	Advisory bool `mapstructure:"advisory" yaml:"advisory"`
	// Scaled regions are divided by the reference shoulder width.
	Scaled bool `mapstructure:"scaled" yaml:"scaled"`
}

// Profile is the region table used by one family of phases.
type Profile struct {
	Regions []Region `mapstructure:"regions" yaml:"regions"`
}

// HoldingProfile compares the reference forearm and hand (13-20) with the
// user's wrists and hands (15-20). The shoulder line is advisory.
func HoldingProfile() Profile {
	return Profile{Regions: []Region{
		{Name: "hand", Ref: Span{Lo: pose.LeftElbow, Hi: pose.LeftThumb}, User: Span{Lo: pose.LeftWrist, Hi: pose.LeftThumb}, Threshold: 1},
		{Name: "shoulder", Ref: Span{Lo: pose.LeftShoulder, Hi: pose.LeftElbow}, User: Span{Lo: pose.LeftShoulder, Hi: pose.LeftElbow}, Threshold: 2, Advisory: true},
	}}
}

// StartEndProfile compares hands and shoulders index for index, scaled by
// the reference shoulder width so bounds are independent of body size.
func StartEndProfile() Profile {
	return Profile{Regions: []Region{
		{Name: "hand", Ref: Span{Lo: pose.LeftWrist, Hi: pose.LeftThumb}, User: Span{Lo: pose.LeftWrist, Hi: pose.LeftThumb}, Threshold: 1, Scaled: true},
		{Name: "shoulder", Ref: Span{Lo: pose.LeftShoulder, Hi: pose.LeftElbow}, User: Span{Lo: pose.LeftShoulder, Hi: pose.LeftElbow}, Threshold: 2, Scaled: true},
	}}
}

// RegionScore is the measured distance of one region.
type RegionScore struct {
	Name      string  `json:"name"`
	Distance  float64 `json:"distance"`
	Threshold float64 `json:"threshold,omitempty"`
	Bounded   bool    `json:"bounded"`
	Passed    bool    `json:"passed"`
	Advisory  bool    `json:"advisory,omitempty"`
}

// Verdict is the outcome of a pose success check.
type Verdict struct {
	Success        bool          `json:"success"`
	Whole          float64       `json:"whole"`
	WholeThreshold float64       `json:"wholeThreshold"`
	Regions        []RegionScore `json:"regions,omitempty"`
}

// Checker runs pose success checks with a fixed DTW radius.
type Checker struct {
	Radius         int
	DefaultWhole   float64
	minShoulderGap float64
}

// NewChecker creates a Checker. defaultWhole bounds the whole body distance
// when a segment carries no thresholds at all.
func NewChecker(radius int, defaultWhole float64) *Checker {
	return &Checker{Radius: radius, DefaultWhole: defaultWhole, minShoulderGap: 1e-6}
}

// Whole returns the DTW distance between two full keypoint sets.
func (c *Checker) Whole(ref, user pose.Frame) float64 {
	d, _ := FastDTW(PointSeries(ref), PointSeries(user), c.Radius, Euclidean)
	return d
}

// Check declares success when the whole body distance is below
// thresholds[0] and every non-advisory region is below its own bound.
// Regions whose threshold is absent are measured but unconstrained.
func (c *Checker) Check(profile Profile, ref, user pose.Frame, thresholds []float64) Verdict {
	v := Verdict{Whole: math.Inf(1), WholeThreshold: c.DefaultWhole}
	if len(thresholds) > 0 {
		v.WholeThreshold = thresholds[0]
	}
	if len(ref) == 0 || len(user) == 0 {
		return v
	}

	v.Whole = c.Whole(ref, user)
	v.Success = v.Whole < v.WholeThreshold

	scale := 1.0
	if len(ref) > pose.RightShoulder {
		if w := ref[pose.LeftShoulder].Distance(ref[pose.RightShoulder]); w > c.minShoulderGap {
			scale = w
		}
	}

	for _, r := range profile.Regions {
		refPts := ref.Slice(r.Ref.Lo, r.Ref.Hi)
		userPts := user.Slice(r.User.Lo, r.User.Hi)
		d, _ := FastDTW(PointSeries(refPts), PointSeries(userPts), c.Radius, Euclidean)
		if r.Scaled {
			d /= scale
		}

		score := RegionScore{Name: r.Name, Distance: d, Advisory: r.Advisory, Passed: true}
		if r.Threshold < len(thresholds) {
			score.Bounded = true
			score.Threshold = thresholds[r.Threshold]
			score.Passed = d < score.Threshold
		}
		if !score.Passed && !r.Advisory {
			v.Success = false
		}
		v.Regions = append(v.Regions, score)
	}

	return v
}
