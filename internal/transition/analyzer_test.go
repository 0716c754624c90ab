package transition

import (
	"math"
	"testing"

	"github.com/aadiyog/yogatracker/internal/choreography"
	"github.com/aadiyog/yogatracker/internal/pose"
)

func sampleAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	ref, err := choreography.Parse(choreography.SampleReference(), choreography.DefaultOptions())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return NewAnalyzer(ref)
}

func TestNewAnalyzer_Corridors(t *testing.T) {
	a := sampleAnalyzer(t)

	corridors := a.Corridors()
	if len(corridors) != 2 {
		t.Fatalf("expected 2 corridors, got %d", len(corridors))
	}

	raise := corridors[0]
	if raise.From != 0 || raise.To != 2 {
		t.Errorf("expected corridor 0 -> 2, got %d -> %d", raise.From, raise.To)
	}
	// Frames 9..29: the last starting frame through the raise
	if len(raise.Path) != 21 {
		t.Errorf("expected 21 path samples, got %d", len(raise.Path))
	}
	if raise.Threshold != 0.5 {
		t.Errorf("expected threshold from the holding segment, got %f", raise.Threshold)
	}

	lower := corridors[1]
	if lower.From != 2 || lower.To != 4 {
		t.Errorf("expected corridor 2 -> 4, got %d -> %d", lower.From, lower.To)
	}
}

func TestAnalyze(t *testing.T) {
	a := sampleAnalyzer(t)
	standing := pose.StandingPose()
	raised := pose.ArmsRaisedPose()

	t.Run("on the path", func(t *testing.T) {
		mid := pose.Lerp(standing, raised, 0.5)[pose.LeftWrist]
		within, applies := a.Analyze(mid, 1)
		if !applies || !within {
			t.Errorf("expected within corridor, got within=%v applies=%v", within, applies)
		}
	})

	t.Run("off the path", func(t *testing.T) {
		far := pose.Point3D{X: 3, Y: 3}
		within, applies := a.Analyze(far, 1)
		if !applies || within {
			t.Errorf("expected outside corridor, got within=%v applies=%v", within, applies)
		}
	})

	t.Run("anchor segments are not covered", func(t *testing.T) {
		for _, idx := range []int{0, 2, 4, 7} {
			within, applies := a.Analyze(standing[pose.LeftWrist], idx)
			if applies || within {
				t.Errorf("segment %d: expected no corridor, got within=%v applies=%v", idx, within, applies)
			}
		}
	})

	t.Run("depth is ignored", func(t *testing.T) {
		p := standing[pose.LeftWrist]
		p.Z = 5
		if within, _ := a.Analyze(p, 1); !within {
			t.Error("expected planar distance to ignore z")
		}
	})
}

func TestEndTarget(t *testing.T) {
	a := sampleAnalyzer(t)

	target, ok := a.EndTarget(1)
	if !ok {
		t.Fatal("expected a target for segment 1")
	}
	want := pose.ArmsRaisedPose()[pose.LeftWrist]
	if target.Distance(want) > 1e-9 {
		t.Errorf("expected raised wrist %+v, got %+v", want, target)
	}

	if _, ok := a.EndTarget(0); ok {
		t.Error("expected no target for an anchor segment")
	}
}

func TestDefaultThreshold(t *testing.T) {
	data := choreography.NewBuilder(pose.Point3D{}).
		Hold("starting_front", pose.StandingPose(), 3).
		Move("transition_raise", pose.StandingPose(), pose.ArmsRaisedPose(), 5).
		Hold("holding_raised", pose.ArmsRaisedPose(), 3).
		JSON()
	ref, err := choreography.Parse(data, choreography.DefaultOptions())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	corridors := NewAnalyzer(ref).Corridors()
	if len(corridors) != 1 || corridors[0].Threshold != DefaultThreshold {
		t.Fatalf("expected one corridor with the default threshold, got %+v", corridors)
	}
}

func TestAdjacentAnchorsHaveNoCorridor(t *testing.T) {
	data := choreography.NewBuilder(pose.Point3D{}).
		Hold("starting_front", pose.StandingPose(), 3).
		Hold("holding_front", pose.StandingPose(), 3, 0.5).
		JSON()
	ref, err := choreography.Parse(data, choreography.DefaultOptions())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := NewAnalyzer(ref).Corridors(); len(got) != 0 {
		t.Errorf("expected no corridors, got %d", len(got))
	}
}

func TestNearest(t *testing.T) {
	path := []pose.Point3D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}
	if got := Nearest(pose.Point3D{X: 1, Y: 0.5}, path); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected 0.5, got %f", got)
	}
	if got := Nearest(pose.Point3D{}, nil); !math.IsInf(got, 1) {
		t.Errorf("expected infinity for an empty path, got %f", got)
	}
}
