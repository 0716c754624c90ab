package pose

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func TestNormalize(t *testing.T) {
	t.Run("hip at origin after normalization", func(t *testing.T) {
		raw := Keypoints(StandingPose(), Point3D{X: 0.5, Y: 0.6, Z: -0.2})

		normalized, hip, ok := Normalize(raw)
		if !ok {
			t.Fatal("expected valid frame")
		}

		if normalized[Origin] != (Point3D{}) {
			t.Errorf("expected hip at origin, got %+v", normalized[Origin])
		}

		// The original hip position is returned for re-projection
		if math.Abs(hip.X-0.5) > epsilon || math.Abs(hip.Y-0.6) > epsilon || math.Abs(hip.Z+0.2) > epsilon {
			t.Errorf("unexpected hip %+v", hip)
		}
	})

	t.Run("relative positions are preserved", func(t *testing.T) {
		pose := StandingPose()
		raw := Keypoints(pose, Point3D{X: 3, Y: -2, Z: 1})

		normalized, _, ok := Normalize(raw)
		if !ok {
			t.Fatal("expected valid frame")
		}

		for i := range pose {
			if normalized[i].Distance(pose[i]) > epsilon {
				t.Errorf("keypoint %d: expected %+v, got %+v", i, pose[i], normalized[i])
			}
		}
	})

	t.Run("arbitrary offsets always centre the hip", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			offset := Point3D{X: float64(i) * 0.37, Y: -float64(i) * 1.3, Z: float64(i%7) - 3}
			normalized, _, ok := Normalize(Keypoints(ArmsRaisedPose(), offset))
			if !ok {
				t.Fatalf("offset %+v: expected valid frame", offset)
			}
			if normalized[Origin] != (Point3D{}) {
				t.Fatalf("offset %+v: hip not at origin: %+v", offset, normalized[Origin])
			}
		}
	})

	t.Run("extra keypoints are ignored", func(t *testing.T) {
		raw := append(Keypoints(StandingPose(), Point3D{}), Keypoint{X: 9, Y: 9, Z: 9})
		normalized, _, ok := Normalize(raw)
		if !ok {
			t.Fatal("expected valid frame")
		}
		if len(normalized) != NumKeypoints {
			t.Errorf("expected %d keypoints, got %d", NumKeypoints, len(normalized))
		}
	})

	t.Run("too few keypoints", func(t *testing.T) {
		raw := Keypoints(StandingPose(), Point3D{})[:NumKeypoints-1]
		if _, _, ok := Normalize(raw); ok {
			t.Error("expected invalid frame")
		}
		if _, _, ok := Normalize(nil); ok {
			t.Error("expected invalid frame for nil input")
		}
	})

	t.Run("hidden hip", func(t *testing.T) {
		raw := Keypoints(StandingPose(), Point3D{})
		zero := 0.0
		raw[Origin].Visibility = &zero
		if _, _, ok := Normalize(raw); ok {
			t.Error("expected invalid frame when hip is not visible")
		}
	})

	t.Run("non-finite coordinates", func(t *testing.T) {
		raw := Keypoints(StandingPose(), Point3D{})
		raw[LeftKnee].Y = math.NaN()
		if _, _, ok := Normalize(raw); ok {
			t.Error("expected invalid frame for NaN coordinate")
		}
	})
}

func TestEuclideanDistance(t *testing.T) {
	a := []Point3D{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}}
	b := []Point3D{{X: 3, Y: 4, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 8, Y: 8, Z: 8}}

	if got := EuclideanDistance(a, b); math.Abs(got-5) > epsilon {
		t.Errorf("expected 5, got %f", got)
	}
	if got := EuclideanDistance(nil, b); got != 0 {
		t.Errorf("expected 0 for empty input, got %f", got)
	}
}

func TestParseLandmarks(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
		wantErr bool
	}{
		{name: "objects", payload: `[{"x":0.1,"y":0.2,"z":0.3,"visibility":0.9},{"x":1,"y":2}]`, want: 2},
		{name: "tuples", payload: `[[0.1,0.2,0.3],[1,2,3,0.5]]`, want: 2},
		{name: "nested poses", payload: `[[{"x":1,"y":2,"z":3}],[{"x":4,"y":5,"z":6}]]`, want: 1},
		{name: "nested tuples", payload: `[[[1,2,3],[4,5,6]]]`, want: 2},
		{name: "wrapped", payload: `{"landmarks":[[1,2,3]]}`, want: 1},
		{name: "empty list", payload: `[]`, want: 0},
		{name: "empty pose list", payload: `[[]]`, want: 0},
		{name: "null", payload: `null`, want: 0},
		{name: "missing coordinate", payload: `[{"x":1}]`, wantErr: true},
		{name: "short tuple", payload: `[[1]]`, wantErr: true},
		{name: "string", payload: `"nope"`, wantErr: true},
		{name: "object without landmarks", payload: `{"foo":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLandmarks([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLandmarks) {
					t.Fatalf("expected ErrInvalidLandmarks, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d keypoints, got %d", tt.want, len(got))
			}
		})
	}

	t.Run("visibility is kept", func(t *testing.T) {
		got, err := ParseLandmarks([]byte(`[[1,2,3,0.25]]`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got[0].Visibility == nil || *got[0].Visibility != 0.25 {
			t.Errorf("expected visibility 0.25, got %v", got[0].Visibility)
		}
	})
}
