// Package engine runs the per-frame phase state machine that compares a
// user's pose stream with a reference choreography, counts repetitions and
// advances through an exercise plan.
package engine

import (
	"fmt"
	"time"

	"github.com/aadiyog/yogatracker/internal/pose"
	"github.com/aadiyog/yogatracker/internal/similarity"
)

// Config holds the engine tunables. All durations are in domain time.
type Config struct {
	// StartHold is how long a starting or ending pose must match continuously.
	StartHold time.Duration `mapstructure:"start_hold" yaml:"start_hold"`
	// MinHold is the accumulated success needed to complete a holding segment.
	MinHold time.Duration `mapstructure:"min_hold" yaml:"min_hold"`
	// ExitThresholdMultiplier scales thresholds[0] for leaving a completed hold.
	ExitThresholdMultiplier float64       `mapstructure:"exit_threshold_multiplier" yaml:"exit_threshold_multiplier"`
	AbandonTimeout          time.Duration `mapstructure:"abandon_timeout" yaml:"abandon_timeout"`
	TransitionMinDuration   time.Duration `mapstructure:"transition_min_duration" yaml:"transition_min_duration"`
	TransitionTimeout       time.Duration `mapstructure:"transition_timeout" yaml:"transition_timeout"`
	// RelaxationThreshold is how long without a valid pose before relaxing.
	RelaxationThreshold     time.Duration `mapstructure:"relaxation_threshold" yaml:"relaxation_threshold"`
	FacingMismatchTolerance time.Duration `mapstructure:"facing_mismatch_tolerance" yaml:"facing_mismatch_tolerance"`
	// RelaxationExitDistance bounds the summed keypoint distance to the
	// first starting pose that ends relaxation.
	RelaxationExitDistance    float64       `mapstructure:"relaxation_exit_distance" yaml:"relaxation_exit_distance"`
	MaxRelaxation             time.Duration `mapstructure:"max_relaxation" yaml:"max_relaxation"`
	RelaxationSegmentDuration time.Duration `mapstructure:"relaxation_segment_duration" yaml:"relaxation_segment_duration"`
	DefaultWholeThreshold     float64       `mapstructure:"default_whole_threshold" yaml:"default_whole_threshold"`
	// FrameInterval advances the clock for frames without a timestamp.
	FrameInterval time.Duration         `mapstructure:"frame_interval" yaml:"frame_interval"`
	DTWRadius     int                   `mapstructure:"dtw_radius" yaml:"dtw_radius"`
	Facing        pose.FacingThresholds `mapstructure:"facing" yaml:"facing"`
	Profiles      Profiles              `mapstructure:"profiles" yaml:"profiles"`
}

// Profiles is the region table per phase family.
type Profiles struct {
	Holding  similarity.Profile `mapstructure:"holding" yaml:"holding"`
	StartEnd similarity.Profile `mapstructure:"start_end" yaml:"start_end"`
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		StartHold:                 3 * time.Second,
		MinHold:                   2 * time.Second,
		ExitThresholdMultiplier:   1.1,
		AbandonTimeout:            5 * time.Second,
		TransitionMinDuration:     3 * time.Second,
		TransitionTimeout:         12 * time.Second,
		RelaxationThreshold:       5 * time.Second,
		FacingMismatchTolerance:   8 * time.Second,
		RelaxationExitDistance:    2.0,
		MaxRelaxation:             30 * time.Second,
		RelaxationSegmentDuration: 3 * time.Second,
		DefaultWholeThreshold:     0.5,
		FrameInterval:             time.Second / 60,
		DTWRadius:                 similarity.DefaultRadius,
		Facing:                    pose.DefaultFacingThresholds(),
		Profiles: Profiles{
			Holding:  similarity.HoldingProfile(),
			StartEnd: similarity.StartEndProfile(),
		},
	}
}

// Validate checks that the tunables are usable.
func (c Config) Validate() error {
	durations := map[string]time.Duration{
		"start_hold":                  c.StartHold,
		"min_hold":                    c.MinHold,
		"abandon_timeout":             c.AbandonTimeout,
		"transition_min_duration":     c.TransitionMinDuration,
		"transition_timeout":          c.TransitionTimeout,
		"relaxation_threshold":        c.RelaxationThreshold,
		"facing_mismatch_tolerance":   c.FacingMismatchTolerance,
		"max_relaxation":              c.MaxRelaxation,
		"relaxation_segment_duration": c.RelaxationSegmentDuration,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("engine: %s must not be negative, got %s", name, d)
		}
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("engine: frame_interval must be positive, got %s", c.FrameInterval)
	}
	if c.TransitionTimeout < c.TransitionMinDuration {
		return fmt.Errorf("engine: transition_timeout %s is shorter than transition_min_duration %s",
			c.TransitionTimeout, c.TransitionMinDuration)
	}
	if c.ExitThresholdMultiplier < 1 {
		return fmt.Errorf("engine: exit_threshold_multiplier must be at least 1, got %v", c.ExitThresholdMultiplier)
	}
	if c.DTWRadius < 0 {
		return fmt.Errorf("engine: dtw_radius must not be negative, got %d", c.DTWRadius)
	}
	if c.RelaxationExitDistance <= 0 || c.DefaultWholeThreshold <= 0 {
		return fmt.Errorf("engine: distance thresholds must be positive")
	}
	if len(c.Profiles.Holding.Regions) == 0 || len(c.Profiles.StartEnd.Regions) == 0 {
		return fmt.Errorf("engine: region profiles must not be empty")
	}
	return nil
}
