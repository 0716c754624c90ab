package pose

// Facing is the discretized direction the torso is oriented toward.
type Facing string

const (
	FacingFront        Facing = "front"
	FacingBack         Facing = "back"
	FacingLeft         Facing = "left"
	FacingRight        Facing = "right"
	FacingUp           Facing = "up"
	FacingDown         Facing = "down"
	FacingUndetermined Facing = "undetermined"
)

// FacingThresholds holds the minimum normal component per axis required
// before that axis decides the facing.
type FacingThresholds struct {
	X float64 `mapstructure:"x" yaml:"x"`
	Y float64 `mapstructure:"y" yaml:"y"`
	Z float64 `mapstructure:"z" yaml:"z"`
}

// DefaultFacingThresholds returns 0.5 for all three axes.
func DefaultFacingThresholds() FacingThresholds {
	return FacingThresholds{X: 0.5, Y: 0.5, Z: 0.5}
}

// DetectFacing classifies the torso orientation of a frame from the unit
// normal of the plane through the left shoulder, right shoulder and right
// hip. The axis with the largest absolute component wins (x before y before
// z on ties) and must exceed its threshold, otherwise the facing is
// undetermined.
func DetectFacing(f Frame, th FacingThresholds) Facing {
	if len(f) <= RightHip {
		return FacingUndetermined
	}

	ls, rs, rh := f[LeftShoulder], f[RightShoulder], f[RightHip]
	normal := rs.Sub(ls).Cross(rh.Sub(ls))
	length := normal.Norm()
	if length == 0 || !normal.finite() {
		return FacingUndetermined
	}

	components := [3]float64{normal.X / length, normal.Y / length, normal.Z / length}
	limits := [3]float64{th.X, th.Y, th.Z}

	axis := 0
	for i := 1; i < 3; i++ {
		if abs(components[i]) > abs(components[axis]) {
			axis = i
		}
	}

	if abs(components[axis]) <= limits[axis] {
		return FacingUndetermined
	}

	positive := components[axis] > 0
	switch axis {
	case 0:
		if positive {
			return FacingLeft
		}
		return FacingRight
	case 1:
		if positive {
			return FacingUp
		}
		return FacingDown
	default:
		if positive {
			return FacingBack
		}
		return FacingFront
	}
}

// FacingMatches reports whether detected satisfies target. An undetermined
// target accepts any detected facing.
func FacingMatches(target, detected Facing) bool {
	if target == FacingUndetermined || target == "" {
		return true
	}
	return target == detected
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
