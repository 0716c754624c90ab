package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aadiyog/yogatracker/internal/engine"
	"github.com/aadiyog/yogatracker/internal/host"
	"github.com/aadiyog/yogatracker/internal/store"
)

func newRecorderStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecorder_SessionLifecycle(t *testing.T) {
	s := newRecorderStore(t)
	r := NewRecorder(s.Sessions(), nil)
	ctx := context.Background()

	r.OnEvent(ctx, host.Notification{
		SessionID: "s1",
		Event:     engine.Event{Kind: host.EventSessionStarted, Exercise: "tadasana", Target: 2},
		Plan:      []string{"tadasana", "vrksasana"},
	})
	r.OnEvent(ctx, host.Notification{
		SessionID: "s1",
		Event:     engine.Event{Kind: engine.EventRepCompleted, Exercise: "tadasana", Reps: 1, Target: 2},
	})
	r.OnEvent(ctx, host.Notification{
		SessionID: "s1",
		Event:     engine.Event{Kind: engine.EventExerciseCompleted, Exercise: "tadasana", Reps: 2, Target: 2},
	})
	r.OnEvent(ctx, host.Notification{
		SessionID: "s1",
		Event:     engine.Event{Kind: host.EventSessionClosed, Reason: "completed"},
	})

	session, err := s.Sessions().GetByID("s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tadasana", "vrksasana"}, session.Plan)
	assert.True(t, session.Completed)
	assert.NotNil(t, session.FinishedAt)

	results, err := s.Sessions().Results("s1")
	require.NoError(t, err)
	require.Len(t, results, 1, "rep_completed is not persisted")
	assert.Equal(t, "tadasana", results[0].ExerciseName)
	assert.Equal(t, 2, results[0].Reps)
	assert.Equal(t, 2, results[0].TargetReps)
}

func TestRecorder_IncompleteSession(t *testing.T) {
	s := newRecorderStore(t)
	r := NewRecorder(s.Sessions(), nil)
	ctx := context.Background()

	r.OnEvent(ctx, host.Notification{SessionID: "s2", Event: engine.Event{Kind: host.EventSessionStarted}, Plan: []string{"a"}})
	r.OnEvent(ctx, host.Notification{SessionID: "s2", Event: engine.Event{Kind: host.EventSessionClosed, Reason: "closed"}})

	session, err := s.Sessions().GetByID("s2")
	require.NoError(t, err)
	assert.False(t, session.Completed)
	assert.NotNil(t, session.FinishedAt)
}

type failingWriter struct {
	calls int
}

func (w *failingWriter) Start(*store.Session) error { w.calls++; return errors.New("disk full") }
func (w *failingWriter) Finish(string, bool, time.Time) error {
	w.calls++
	return store.ErrNotFound
}
func (w *failingWriter) RecordResult(*store.ExerciseResult) error { w.calls++; return nil }

func TestRecorder_ToleratesWriterErrors(t *testing.T) {
	w := &failingWriter{}
	r := NewRecorder(w, nil)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		r.OnEvent(ctx, host.Notification{SessionID: "s", Event: engine.Event{Kind: host.EventSessionStarted}})
		r.OnEvent(ctx, host.Notification{SessionID: "s", Event: engine.Event{Kind: host.EventSessionClosed}})
		r.OnEvent(ctx, host.Notification{SessionID: "s", Event: engine.Event{Kind: engine.EventHoldCompleted}})
	})
	assert.Equal(t, 2, w.calls)
}
