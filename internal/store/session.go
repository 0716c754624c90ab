package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Session is one practice session hosted over a websocket connection.
type Session struct {
	ID         string     `json:"id"`
	Plan       []string   `json:"plan"`
	Completed  bool       `json:"completed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ExerciseResult records an exercise that reached its rep target.
type ExerciseResult struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	ExerciseName string    `json:"exercise_name"`
	Reps         int       `json:"reps"`
	TargetReps   int       `json:"target_reps"`
	CompletedAt  time.Time `json:"completed_at"`
}

// SessionRepository provides operations for sessions and their results.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Start inserts a session, or restarts it with a new plan when the id
// already exists (a session re-initialized on the same connection).
func (r *SessionRepository) Start(s *Session) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	plan, err := json.Marshal(s.Plan)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		`INSERT INTO sessions (id, plan, completed, started_at) VALUES (?, ?, 0, ?)
		 ON CONFLICT(id) DO UPDATE SET plan = excluded.plan, completed = 0, started_at = excluded.started_at, finished_at = NULL`,
		s.ID, string(plan), s.StartedAt,
	)
	return err
}

// Finish marks a session as ended. completed records whether the whole
// plan was done.
func (r *SessionRepository) Finish(id string, completed bool, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET completed = ?, finished_at = ? WHERE id = ?`,
		completed, at, id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRow(
		`SELECT id, plan, completed, started_at, finished_at FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List retrieves the most recent sessions, newest first.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, plan, completed, started_at, finished_at FROM sessions
		 ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func scanSession(row rowScanner) (*Session, error) {
	s := &Session{}
	var plan string
	var completed int
	var finished sql.NullTime
	if err := row.Scan(&s.ID, &plan, &completed, &s.StartedAt, &finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(plan), &s.Plan); err != nil {
		return nil, err
	}
	s.Completed = completed != 0
	if finished.Valid {
		t := finished.Time
		s.FinishedAt = &t
	}
	return s, nil
}

// RecordResult stores a completed exercise for a session.
func (r *SessionRepository) RecordResult(res *ExerciseResult) error {
	if res.CompletedAt.IsZero() {
		res.CompletedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO exercise_results (session_id, exercise_name, reps, target_reps, completed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		res.SessionID, res.ExerciseName, res.Reps, res.TargetReps, res.CompletedAt,
	)
	if err != nil {
		return err
	}

	res.ID, err = result.LastInsertId()
	return err
}

// Results retrieves the completed exercises of a session in order.
func (r *SessionRepository) Results(sessionID string) ([]ExerciseResult, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, exercise_name, reps, target_reps, completed_at
		 FROM exercise_results WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ExerciseResult
	for rows.Next() {
		var res ExerciseResult
		if err := rows.Scan(&res.ID, &res.SessionID, &res.ExerciseName, &res.Reps, &res.TargetReps, &res.CompletedAt); err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
