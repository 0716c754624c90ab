package pose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidLandmarks is returned when a landmark payload has no recognizable shape.
var ErrInvalidLandmarks = errors.New("invalid landmarks")

// keypointJSON mirrors the object form detectors emit. Pointers
// distinguish a missing coordinate from a zero one.
type keypointJSON struct {
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Z          *float64 `json:"z"`
	Visibility *float64 `json:"visibility"`
}

// ParseLandmarks decodes the keypoints of a single pose from the shapes
// landmark detectors produce:
//
//	[{"x":..,"y":..,"z":..,"visibility":..}, ...]
//	[[x, y, z], ...] or [[x, y, z, visibility], ...]
//	[[{...}, ...], ...]              (one list per detected pose, first wins)
//	{"landmarks": ...}               (also "poseLandmarks" and "keypoints")
//
// An empty or null payload yields no keypoints and no error.
func ParseLandmarks(data json.RawMessage) ([]Keypoint, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	switch data[0] {
	case '{':
		var wrapper struct {
			Landmarks     json.RawMessage `json:"landmarks"`
			PoseLandmarks json.RawMessage `json:"poseLandmarks"`
			Keypoints     json.RawMessage `json:"keypoints"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLandmarks, err)
		}
		for _, inner := range []json.RawMessage{wrapper.Landmarks, wrapper.PoseLandmarks, wrapper.Keypoints} {
			if len(bytes.TrimSpace(inner)) > 0 {
				return ParseLandmarks(inner)
			}
		}
		return nil, fmt.Errorf("%w: object without landmarks", ErrInvalidLandmarks)
	case '[':
		return parseList(data)
	default:
		return nil, fmt.Errorf("%w: unexpected payload", ErrInvalidLandmarks)
	}
}

func parseList(data json.RawMessage) ([]Keypoint, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLandmarks, err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	first := bytes.TrimSpace(items[0])
	if len(first) == 0 {
		return nil, fmt.Errorf("%w: empty element", ErrInvalidLandmarks)
	}

	switch first[0] {
	case '{':
		return parseObjects(items)
	case '[':
		var inner []json.RawMessage
		if err := json.Unmarshal(first, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLandmarks, err)
		}
		if len(inner) == 0 {
			return nil, nil
		}
		head := bytes.TrimSpace(inner[0])
		if len(head) > 0 && (head[0] == '{' || head[0] == '[') {
			// One list per detected pose.
			return parseList(first)
		}
		return parseTuples(items)
	default:
		return nil, fmt.Errorf("%w: unexpected element", ErrInvalidLandmarks)
	}
}

func parseObjects(items []json.RawMessage) ([]Keypoint, error) {
	keypoints := make([]Keypoint, 0, len(items))
	for i, raw := range items {
		var kp keypointJSON
		if err := json.Unmarshal(raw, &kp); err != nil {
			return nil, fmt.Errorf("%w: keypoint %d: %v", ErrInvalidLandmarks, i, err)
		}
		if kp.X == nil || kp.Y == nil {
			return nil, fmt.Errorf("%w: keypoint %d missing coordinates", ErrInvalidLandmarks, i)
		}
		k := Keypoint{X: *kp.X, Y: *kp.Y, Visibility: kp.Visibility}
		if kp.Z != nil {
			k.Z = *kp.Z
		}
		keypoints = append(keypoints, k)
	}
	return keypoints, nil
}

func parseTuples(items []json.RawMessage) ([]Keypoint, error) {
	keypoints := make([]Keypoint, 0, len(items))
	for i, raw := range items {
		var coords []float64
		if err := json.Unmarshal(raw, &coords); err != nil {
			return nil, fmt.Errorf("%w: keypoint %d: %v", ErrInvalidLandmarks, i, err)
		}
		if len(coords) < 2 {
			return nil, fmt.Errorf("%w: keypoint %d has %d coordinates", ErrInvalidLandmarks, i, len(coords))
		}
		k := Keypoint{X: coords[0], Y: coords[1]}
		if len(coords) > 2 {
			k.Z = coords[2]
		}
		if len(coords) > 3 {
			v := coords[3]
			k.Visibility = &v
		}
		keypoints = append(keypoints, k)
	}
	return keypoints, nil
}
