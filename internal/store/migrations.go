package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Exercises with their reference choreography JSON
		`CREATE TABLE IF NOT EXISTS exercises (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			reps INTEGER NOT NULL DEFAULT 3 CHECK(reps >= 0),
			reference TEXT,
			frames INTEGER NOT NULL DEFAULT 0,
			segments INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Practice sessions, one per host connection
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			plan TEXT NOT NULL DEFAULT '[]',
			completed INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			finished_at DATETIME
		)`,

		// Exercises that reached their rep target within a session
		`CREATE TABLE IF NOT EXISTS exercise_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			exercise_name TEXT NOT NULL,
			reps INTEGER NOT NULL,
			target_reps INTEGER NOT NULL,
			completed_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_exercise_results_session_id ON exercise_results(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
