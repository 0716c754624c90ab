// Package host runs one engine session behind an ordered message channel.
package host

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aadiyog/yogatracker/internal/engine"
)

// Message types.
const (
	TypeInit            = "init"
	TypeProcessFrame    = "process_frame"
	TypeGetExerciseName = "get_exercise_name"

	TypeInitDone           = "init_done"
	TypeFrameResult        = "frame_result"
	TypeExerciseNameResult = "exercise_name_result"
	TypeAllDone            = "all_done"
	TypeError              = "error"
)

// DefaultReps is the rep target used when init does not name one.
const DefaultReps = 3

// DefaultExerciseName names a single exercise initialized without a name.
const DefaultExerciseName = "exercise"

var (
	// ErrNotInitialized is returned for frame requests before a successful init.
	ErrNotInitialized = errors.New("controller not initialized")
	// ErrUnknownType is returned for unrecognized request types.
	ErrUnknownType = errors.New("unknown message type")
	// ErrClosed is returned when submitting to a closed session.
	ErrClosed = errors.New("session closed")
)

// Request is a message from the caller. ID is echoed back unchanged.
type Request struct {
	Type     string          `json:"type"`
	ID       json.RawMessage `json:"id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	SendTime *float64        `json:"sendTime,omitempty"`
}

// Response is a message to the caller. Unsolicited messages carry no ID.
type Response struct {
	Type  string          `json:"type"`
	ID    json.RawMessage `json:"id,omitempty"`
	Value any             `json:"value"`
	// ProcessingTime is the wall time spent on the request in milliseconds.
	ProcessingTime float64 `json:"processingTime"`
}

// InitData is the payload of an init request. Either JSONData describes a
// single exercise or Plan lists several; plan entries without JSONData are
// resolved by name through the content source.
type InitData struct {
	JSONData     json.RawMessage `json:"jsonData,omitempty"`
	Reps         *int            `json:"reps,omitempty"`
	ExerciseName string          `json:"exerciseName,omitempty"`
	Plan         []PlanEntry     `json:"plan,omitempty"`
}

// PlanEntry is one exercise of a multi-exercise init.
type PlanEntry struct {
	Name     string          `json:"name"`
	Reps     *int            `json:"reps,omitempty"`
	JSONData json.RawMessage `json:"jsonData,omitempty"`
}

// FrameData is the payload of a process_frame request. Timestamp is in
// milliseconds of caller time.
type FrameData struct {
	Landmarks json.RawMessage `json:"landmarks,omitempty"`
	Results   *struct {
		Landmarks json.RawMessage `json:"landmarks,omitempty"`
	} `json:"results,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

func (f FrameData) landmarks() json.RawMessage {
	if len(f.Landmarks) > 0 {
		return f.Landmarks
	}
	if f.Results != nil {
		return f.Results.Landmarks
	}
	return nil
}

// InitDone acknowledges a successful init.
type InitDone struct {
	Exercise     string   `json:"exercise"`
	Reps         int      `json:"reps"`
	ExerciseName string   `json:"exerciseName"`
	Exercises    []string `json:"exercises"`
}

// ExerciseNameResult answers get_exercise_name.
type ExerciseNameResult struct {
	ExerciseName string `json:"exerciseName"`
}

// AllDone is emitted once when the last exercise reaches its target.
type AllDone struct {
	ExerciseName string   `json:"exerciseName"`
	Exercises    []string `json:"exercises"`
}

// ErrorValue describes a failed request.
type ErrorValue struct {
	Message   string `json:"message"`
	Operation string `json:"operation,omitempty"`
}

// FrameResult is the value of a frame_result response.
type FrameResult = engine.Result

// decodeReference accepts reference JSON either inline or wrapped in a
// JSON string, as browsers often send it.
func decodeReference(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("invalid jsonData string: %w", err)
	}
	return []byte(s), nil
}

func errorResponse(id json.RawMessage, op string, err error) Response {
	return Response{
		Type:  TypeError,
		ID:    id,
		Value: ErrorValue{Message: err.Error(), Operation: op},
	}
}
