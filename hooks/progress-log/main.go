// Package main provides a hook that appends every session event to a JSON
// lines file, one object per event.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const defaultFile = "progress.jsonl"

// Request represents the input from the hook executor.
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
	Config    json.RawMessage `json:"config"`
}

// Response represents the output to the hook executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the hook configuration from hook.json.
type Config struct {
	File string `json:"file"`
}

// Entry is one logged line.
type Entry struct {
	ReceivedAt time.Time `json:"received_at"`
	Event      string    `json:"event"`
	SessionID  string    `json:"session_id"`
	Exercise   string    `json:"exercise,omitempty"`
	Reps       int       `json:"reps"`
	Target     int       `json:"target"`
	Reason     string    `json:"reason,omitempty"`
	Plan       []string  `json:"plan,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	path, err := logPath(req.Config)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}
	if err := appendEntry(path, req, time.Now()); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to write %s: %v", path, err))
		return
	}
	writeSuccessResponse()
}

// logPath resolves the log file. Relative paths are relative to the hook
// directory, which is the working directory of the hook.
func logPath(raw json.RawMessage) (string, error) {
	cfg := Config{File: defaultFile}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return "", fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if cfg.File == "" {
		cfg.File = defaultFile
	}
	return filepath.Clean(cfg.File), nil
}

func appendEntry(path string, req Request, now time.Time) error {
	line, err := json.Marshal(Entry{
		ReceivedAt: now.UTC(),
		Event:      req.Event,
		SessionID:  req.SessionID,
		Exercise:   req.Exercise,
		Reps:       req.Reps,
		Target:     req.Target,
		Reason:     req.Reason,
		Plan:       req.Plan,
	})
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(line, '\n'))
	return err
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
