// Package hook runs external programs when session events occur.
package hook

import "encoding/json"

// AllEvents subscribes a hook to every event kind.
const AllEvents = "*"

// Manifest describes a hook, read from its hook.json.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Request is written to a hook's stdin.
type Request struct {
	Event     string          `json:"event"`
	SessionID string          `json:"sessionId"`
	Exercise  string          `json:"exercise,omitempty"`
	Segment   int             `json:"segment"`
	Reps      int             `json:"reps"`
	Target    int             `json:"target"`
	Reason    string          `json:"reason,omitempty"`
	Plan      []string        `json:"plan,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response is read from a hook's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Handles reports whether the hook subscribes to the event kind.
func (h *Hook) Handles(event string) bool {
	for _, e := range h.Manifest.Events {
		if e == event || e == AllEvents {
			return true
		}
	}
	return false
}
