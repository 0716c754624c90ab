package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// ErrDuplicateName is returned when an exercise name is already taken.
var ErrDuplicateName = errors.New("exercise name already exists")

// Exercise is a named exercise with its default rep target. Reference holds
// the raw choreography JSON, nil until one is uploaded.
type Exercise struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Reps      int             `json:"reps"`
	Reference json.RawMessage `json:"-"`
	Frames    int             `json:"frames"`
	Segments  int             `json:"segments"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// HasReference reports whether a choreography was uploaded.
func (e *Exercise) HasReference() bool {
	return len(e.Reference) > 0
}

// ExerciseRepository provides CRUD operations for exercises.
type ExerciseRepository struct {
	db *sql.DB
}

// Exercises returns the exercise repository for this store.
func (s *Store) Exercises() *ExerciseRepository {
	return &ExerciseRepository{db: s.db}
}

const exerciseColumns = `id, name, reps, reference, frames, segments, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExercise(row rowScanner) (*Exercise, error) {
	e := &Exercise{}
	var reference sql.NullString
	if err := row.Scan(&e.ID, &e.Name, &e.Reps, &reference, &e.Frames, &e.Segments, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if reference.Valid && reference.String != "" {
		e.Reference = json.RawMessage(reference.String)
	}
	return e, nil
}

func nullableJSON(data json.RawMessage) sql.NullString {
	if len(data) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

// Create inserts a new exercise into the database.
func (r *ExerciseRepository) Create(e *Exercise) error {
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO exercises (id, name, reps, reference, frames, segments, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Reps, nullableJSON(e.Reference), e.Frames, e.Segments, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if r.nameTaken(e.Name, e.ID) {
			return ErrDuplicateName
		}
		return err
	}

	return nil
}

// GetByID retrieves an exercise by its ID.
func (r *ExerciseRepository) GetByID(id string) (*Exercise, error) {
	e, err := scanExercise(r.db.QueryRow(`SELECT `+exerciseColumns+` FROM exercises WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// GetByName retrieves an exercise by its name.
func (r *ExerciseRepository) GetByName(name string) (*Exercise, error) {
	e, err := scanExercise(r.db.QueryRow(`SELECT `+exerciseColumns+` FROM exercises WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// List retrieves all exercises ordered by name.
func (r *ExerciseRepository) List() ([]*Exercise, error) {
	rows, err := r.db.Query(`SELECT ` + exerciseColumns + ` FROM exercises ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exercises []*Exercise
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		exercises = append(exercises, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return exercises, nil
}

// Update modifies the name and rep target of an existing exercise.
func (r *ExerciseRepository) Update(e *Exercise) error {
	e.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE exercises SET name = ?, reps = ?, updated_at = ? WHERE id = ?`,
		e.Name, e.Reps, e.UpdatedAt, e.ID,
	)
	if err != nil {
		if r.nameTaken(e.Name, e.ID) {
			return ErrDuplicateName
		}
		return err
	}

	return expectOneRow(result)
}

// SetReference replaces the reference choreography of an exercise along
// with the frame and segment counts extracted from it.
func (r *ExerciseRepository) SetReference(id string, reference json.RawMessage, frames, segments int) error {
	result, err := r.db.Exec(
		`UPDATE exercises SET reference = ?, frames = ?, segments = ?, updated_at = ? WHERE id = ?`,
		nullableJSON(reference), frames, segments, time.Now(), id,
	)
	if err != nil {
		return err
	}

	return expectOneRow(result)
}

// Delete removes an exercise by its ID.
func (r *ExerciseRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM exercises WHERE id = ?`, id)
	if err != nil {
		return err
	}

	return expectOneRow(result)
}

func (r *ExerciseRepository) nameTaken(name, exceptID string) bool {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM exercises WHERE name = ? AND id != ?`, name, exceptID).Scan(&count)
	return err == nil && count > 0
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
