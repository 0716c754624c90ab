package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aadiyog/yogatracker/internal/store"
)

// SessionHandler serves the history of practice sessions.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP handles GET /api/sessions and GET /api/sessions/{id}.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := splitPath(r.URL.Path, "/api/sessions")
	switch len(parts) {
	case 0:
		h.list(w, r)
	case 1:
		h.get(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type sessionResponse struct {
	ID         string           `json:"id"`
	Plan       []string         `json:"plan"`
	Completed  bool             `json:"completed"`
	StartedAt  string           `json:"started_at"`
	FinishedAt string           `json:"finished_at,omitempty"`
	Results    []resultResponse `json:"results,omitempty"`
}

type resultResponse struct {
	Exercise    string `json:"exercise"`
	Reps        int    `json:"reps"`
	TargetReps  int    `json:"target_reps"`
	CompletedAt string `json:"completed_at"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID,
		Plan:      s.Plan,
		Completed: s.Completed,
		StartedAt: s.StartedAt.Format(time.RFC3339),
	}
	if s.Plan == nil {
		resp.Plan = []string{}
	}
	if s.FinishedAt != nil {
		resp.FinishedAt = s.FinishedAt.Format(time.RFC3339)
	}
	return resp
}

// list handles GET /api/sessions?limit=N, newest first.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id} and includes the recorded results.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	results, err := h.store.Sessions().Results(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get session results")
		return
	}

	resp := toSessionResponse(session)
	resp.Results = make([]resultResponse, 0, len(results))
	for _, res := range results {
		resp.Results = append(resp.Results, resultResponse{
			Exercise:    res.ExerciseName,
			Reps:        res.Reps,
			TargetReps:  res.TargetReps,
			CompletedAt: res.CompletedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
