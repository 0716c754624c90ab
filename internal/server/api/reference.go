package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aadiyog/yogatracker/internal/choreography"
	"github.com/aadiyog/yogatracker/internal/store"
)

// ReferenceHandler serves the reference choreography of an exercise.
type ReferenceHandler struct {
	store *store.Store
	opts  choreography.Options
	cache Invalidator
}

// NewReferenceHandler creates a ReferenceHandler. Uploads are validated by
// extracting them with opts.
func NewReferenceHandler(s *store.Store, opts choreography.Options, cache Invalidator) *ReferenceHandler {
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &ReferenceHandler{store: s, opts: opts, cache: cache}
}

// ServeHTTP handles /api/exercises/{id}/reference.
func (h *ReferenceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/exercises")
	if len(parts) != 2 || parts[1] != "reference" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	exercise, err := h.store.Exercises().GetByID(parts[0])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Exercise not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get exercise")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, exercise)
	case http.MethodPut:
		h.put(w, r, exercise)
	case http.MethodDelete:
		h.delete(w, exercise)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type referenceResponse struct {
	Exercise string                 `json:"exercise"`
	Frames   int                    `json:"frames"`
	Segments int                    `json:"segments"`
	Dropped  []choreography.Anomaly `json:"dropped"`
}

// get handles GET and returns the stored choreography unchanged.
func (h *ReferenceHandler) get(w http.ResponseWriter, exercise *store.Exercise) {
	if !exercise.HasReference() {
		writeError(w, http.StatusNotFound, "Exercise has no reference")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(exercise.Reference)
}

// put handles PUT. The body is extracted before it is stored; a
// choreography without any valid segment is rejected.
func (h *ReferenceHandler) put(w http.ResponseWriter, r *http.Request, exercise *store.Exercise) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Reference too large")
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ref, err := choreography.Parse(body, h.opts)
	if err != nil {
		if errors.Is(err, choreography.ErrNoSegments) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	segments := len(ref.Segments())
	if err := h.store.Exercises().SetReference(exercise.ID, body, ref.FrameCount(), segments); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store reference")
		return
	}
	h.cache.Invalidate(exercise.Name)

	dropped := ref.Anomalies()
	if dropped == nil {
		dropped = []choreography.Anomaly{}
	}
	writeJSON(w, http.StatusOK, referenceResponse{
		Exercise: exercise.Name,
		Frames:   ref.FrameCount(),
		Segments: segments,
		Dropped:  dropped,
	})
}

// delete handles DELETE and removes the stored choreography.
func (h *ReferenceHandler) delete(w http.ResponseWriter, exercise *store.Exercise) {
	if err := h.store.Exercises().SetReference(exercise.ID, nil, 0, 0); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete reference")
		return
	}
	h.cache.Invalidate(exercise.Name)
	w.WriteHeader(http.StatusNoContent)
}
