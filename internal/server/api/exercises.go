package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aadiyog/yogatracker/internal/store"
)

// DefaultReps is the rep target of an exercise created without one.
const DefaultReps = 3

// ExerciseHandler handles HTTP requests for exercise resources.
type ExerciseHandler struct {
	store *store.Store
	cache Invalidator
}

// NewExerciseHandler creates an ExerciseHandler. cache is told about
// renamed and deleted exercises; it may be nil.
func NewExerciseHandler(s *store.Store, cache Invalidator) *ExerciseHandler {
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &ExerciseHandler{store: s, cache: cache}
}

// ServeHTTP routes /api/exercises and /api/exercises/{id}.
func (h *ExerciseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/exercises")

	switch len(parts) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodPut:
			h.update(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type createExerciseRequest struct {
	Name string `json:"name" validate:"required,max=64"`
	Reps int    `json:"reps" validate:"gte=0,lte=1000"`
}

type updateExerciseRequest struct {
	Name string `json:"name" validate:"max=64"`
	Reps int    `json:"reps" validate:"gte=0,lte=1000"`
}

type exerciseResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Reps         int    `json:"reps"`
	HasReference bool   `json:"has_reference"`
	Frames       int    `json:"frames"`
	Segments     int    `json:"segments"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type listExercisesResponse struct {
	Exercises []exerciseResponse `json:"exercises"`
}

func toExerciseResponse(e *store.Exercise) exerciseResponse {
	return exerciseResponse{
		ID:           e.ID,
		Name:         e.Name,
		Reps:         e.Reps,
		HasReference: e.HasReference(),
		Frames:       e.Frames,
		Segments:     e.Segments,
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    e.UpdatedAt.Format(time.RFC3339),
	}
}

// list handles GET /api/exercises.
func (h *ExerciseHandler) list(w http.ResponseWriter, r *http.Request) {
	exercises, err := h.store.Exercises().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list exercises")
		return
	}

	response := listExercisesResponse{
		Exercises: make([]exerciseResponse, 0, len(exercises)),
	}
	for _, e := range exercises {
		response.Exercises = append(response.Exercises, toExerciseResponse(e))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/exercises/{id}.
func (h *ExerciseHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	exercise, err := h.store.Exercises().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Exercise not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get exercise")
		return
	}

	writeJSON(w, http.StatusOK, toExerciseResponse(exercise))
}

// create handles POST /api/exercises.
func (h *ExerciseHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createExerciseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	reps := req.Reps
	if reps == 0 {
		reps = DefaultReps
	}

	exercise := &store.Exercise{
		ID:   uuid.New().String(),
		Name: req.Name,
		Reps: reps,
	}

	if err := h.store.Exercises().Create(exercise); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			writeError(w, http.StatusConflict, "Exercise name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create exercise")
		return
	}

	writeJSON(w, http.StatusCreated, toExerciseResponse(exercise))
}

// update handles PUT /api/exercises/{id}.
func (h *ExerciseHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	exercise, err := h.store.Exercises().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Exercise not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get exercise")
		return
	}

	var req updateExerciseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	previous := exercise.Name
	if req.Name != "" {
		exercise.Name = req.Name
	}
	if req.Reps != 0 {
		exercise.Reps = req.Reps
	}

	if err := h.store.Exercises().Update(exercise); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			writeError(w, http.StatusConflict, "Exercise name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update exercise")
		return
	}

	h.cache.Invalidate(previous)
	h.cache.Invalidate(exercise.Name)
	writeJSON(w, http.StatusOK, toExerciseResponse(exercise))
}

// delete handles DELETE /api/exercises/{id}.
func (h *ExerciseHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	exercise, err := h.store.Exercises().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Exercise not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get exercise")
		return
	}

	if err := h.store.Exercises().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Exercise not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete exercise")
		return
	}

	h.cache.Invalidate(exercise.Name)
	w.WriteHeader(http.StatusNoContent)
}
