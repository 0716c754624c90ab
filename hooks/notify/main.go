// Package main provides a desktop notification hook. It announces
// completed exercises and plans via osascript on macOS and notify-send
// elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Request represents the input from the hook executor.
type Request struct {
	Event     string          `json:"event"`
	SessionID string          `json:"sessionId"`
	Exercise  string          `json:"exercise"`
	Reps      int             `json:"reps"`
	Target    int             `json:"target"`
	Config    json.RawMessage `json:"config"`
}

// Response represents the output to the hook executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	title, body, ok := message(req)
	if !ok {
		writeErrorResponse(fmt.Sprintf("unsupported event: %s", req.Event))
		return
	}

	if err := notify(title, body); err != nil {
		writeErrorResponse(fmt.Sprintf("notification failed: %v", err))
		return
	}
	writeSuccessResponse()
}

// message builds the notification text for an event.
func message(req Request) (title, body string, ok bool) {
	switch req.Event {
	case "exercise_completed":
		return "Exercise complete", fmt.Sprintf("%s: %d of %d reps", req.Exercise, req.Reps, req.Target), true
	case "plan_completed":
		return "Session complete", "All exercises done. Well practised!", true
	case "relaxation_entered":
		return "Take a breath", fmt.Sprintf("Relaxing during %s", req.Exercise), true
	}
	return "", "", false
}

func notify(title, body string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		cmd = exec.Command("osascript", "-e", script)
	} else {
		cmd = exec.Command("notify-send", title, body)
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
