package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aadiyog/yogatracker/internal/engine"
	"github.com/aadiyog/yogatracker/internal/host"
	"github.com/aadiyog/yogatracker/internal/store"
)

// SessionWriter persists session history.
type SessionWriter interface {
	Start(s *store.Session) error
	Finish(id string, completed bool, at time.Time) error
	RecordResult(res *store.ExerciseResult) error
}

// Recorder writes session starts, completed exercises and session ends to
// the store.
type Recorder struct {
	sessions SessionWriter
	log      *zap.Logger
	now      func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(sessions SessionWriter, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{sessions: sessions, log: log, now: time.Now}
}

// OnEvent implements host.Listener.
func (r *Recorder) OnEvent(_ context.Context, n host.Notification) {
	var err error
	switch n.Kind {
	case host.EventSessionStarted:
		err = r.sessions.Start(&store.Session{ID: n.SessionID, Plan: n.Plan, StartedAt: r.now()})
	case engine.EventExerciseCompleted:
		err = r.sessions.RecordResult(&store.ExerciseResult{
			SessionID:    n.SessionID,
			ExerciseName: n.Exercise,
			Reps:         n.Reps,
			TargetReps:   n.Target,
			CompletedAt:  r.now(),
		})
	case host.EventSessionClosed:
		err = r.sessions.Finish(n.SessionID, n.Reason == "completed", r.now())
		// Connections that never initialized have no row.
		if errors.Is(err, store.ErrNotFound) {
			err = nil
		}
	default:
		return
	}

	if err != nil {
		r.log.Error("failed to record session event",
			zap.String("session", n.SessionID),
			zap.String("event", string(n.Kind)),
			zap.Error(err),
		)
	}
}
