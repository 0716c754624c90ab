package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// newTestStore creates a new Store backed by a temporary database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "yogatracker-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestExerciseRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Exercises()

	exercise := &Exercise{ID: "ex-1", Name: "tadasana", Reps: 3}
	if err := repo.Create(exercise); err != nil {
		t.Fatalf("failed to create exercise: %v", err)
	}

	if exercise.CreatedAt.IsZero() || exercise.UpdatedAt.IsZero() {
		t.Error("timestamps should be set after create")
	}

	retrieved, err := repo.GetByID("ex-1")
	if err != nil {
		t.Fatalf("failed to get exercise by ID: %v", err)
	}
	if retrieved.Name != "tadasana" || retrieved.Reps != 3 {
		t.Errorf("unexpected exercise %+v", retrieved)
	}
	if retrieved.HasReference() {
		t.Error("new exercise should have no reference")
	}
}

func TestExerciseRepository_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	repo := s.Exercises()

	if err := repo.Create(&Exercise{ID: "ex-1", Name: "tadasana", Reps: 3}); err != nil {
		t.Fatalf("failed to create exercise: %v", err)
	}

	err := repo.Create(&Exercise{ID: "ex-2", Name: "tadasana", Reps: 5})
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
}

func TestExerciseRepository_GetByName(t *testing.T) {
	s := newTestStore(t)
	repo := s.Exercises()

	if err := repo.Create(&Exercise{ID: "ex-1", Name: "vrksasana", Reps: 2}); err != nil {
		t.Fatalf("failed to create exercise: %v", err)
	}

	e, err := repo.GetByName("vrksasana")
	if err != nil {
		t.Fatalf("failed to get exercise by name: %v", err)
	}
	if e.ID != "ex-1" {
		t.Errorf("ID mismatch: got %q", e.ID)
	}

	if _, err := repo.GetByName("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExerciseRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Exercises()

	for i, name := range []string{"vrksasana", "adho-mukha", "tadasana"} {
		e := &Exercise{ID: string(rune('a' + i)), Name: name, Reps: 1}
		if err := repo.Create(e); err != nil {
			t.Fatalf("failed to create exercise: %v", err)
		}
	}

	exercises, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list exercises: %v", err)
	}

	want := []string{"adho-mukha", "tadasana", "vrksasana"}
	if len(exercises) != len(want) {
		t.Fatalf("expected %d exercises, got %d", len(want), len(exercises))
	}
	for i, e := range exercises {
		if e.Name != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], e.Name)
		}
	}
}

func TestExerciseRepository_Update(t *testing.T) {
	s := newTestStore(t)
	repo := s.Exercises()

	e := &Exercise{ID: "ex-1", Name: "tadasana", Reps: 3}
	if err := repo.Create(e); err != nil {
		t.Fatalf("failed to create exercise: %v", err)
	}

	e.Name = "mountain"
	e.Reps = 5
	if err := repo.Update(e); err != nil {
		t.Fatalf("failed to update exercise: %v", err)
	}

	got, err := repo.GetByID("ex-1")
	if err != nil {
		t.Fatalf("failed to get exercise: %v", err)
	}
	if got.Name != "mountain" || got.Reps != 5 {
		t.Errorf("update not applied: %+v", got)
	}

	missing := &Exercise{ID: "nope", Name: "x", Reps: 1}
	if err := repo.Update(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExerciseRepository_SetReference(t *testing.T) {
	s := newTestStore(t)
	repo := s.Exercises()

	if err := repo.Create(&Exercise{ID: "ex-1", Name: "tadasana", Reps: 3}); err != nil {
		t.Fatalf("failed to create exercise: %v", err)
	}

	ref := json.RawMessage(`{"frames":[],"segments":[]}`)
	if err := repo.SetReference("ex-1", ref, 70, 5); err != nil {
		t.Fatalf("failed to set reference: %v", err)
	}

	got, err := repo.GetByID("ex-1")
	if err != nil {
		t.Fatalf("failed to get exercise: %v", err)
	}
	if string(got.Reference) != string(ref) {
		t.Errorf("reference mismatch: got %s", got.Reference)
	}
	if got.Frames != 70 || got.Segments != 5 {
		t.Errorf("counts mismatch: frames=%d segments=%d", got.Frames, got.Segments)
	}

	if err := repo.SetReference("missing", ref, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExerciseRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Exercises()

	if err := repo.Create(&Exercise{ID: "ex-1", Name: "tadasana", Reps: 3}); err != nil {
		t.Fatalf("failed to create exercise: %v", err)
	}

	if err := repo.Delete("ex-1"); err != nil {
		t.Fatalf("failed to delete exercise: %v", err)
	}
	if _, err := repo.GetByID("ex-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete("ex-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}
