package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aadiyog/yogatracker/internal/events"
)

// keepAliveInterval spaces the comment lines that keep idle streams open
// through proxies.
const keepAliveInterval = 15 * time.Second

// StreamHandler serves the events of one session as server-sent events.
type StreamHandler struct {
	hub       *events.Hub
	log       *zap.Logger
	keepAlive time.Duration
}

// NewStreamHandler creates a StreamHandler over hub.
func NewStreamHandler(hub *events.Hub, log *zap.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, log: log, keepAlive: keepAliveInterval}
}

// ServeHTTP streams GET /api/sessions/{id}/events until the client leaves.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "events" {
		http.NotFound(w, r)
		return
	}
	sessionID := parts[0]

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	client := h.hub.Register(sessionID)
	defer h.hub.Unregister(client)
	h.log.Debug("stream opened", zap.String("session", sessionID))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": subscribed to %s\n\n", sessionID)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Debug("stream closed", zap.String("session", sessionID))
			return
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
