package host

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aadiyog/yogatracker/internal/choreography"
	"github.com/aadiyog/yogatracker/internal/content"
	"github.com/aadiyog/yogatracker/internal/engine"
	"github.com/aadiyog/yogatracker/internal/pose"
)

const frameMs = 1000.0 / 60

var offset = pose.Point3D{X: 0.5, Y: 0.5}

type mapSource map[string]content.Entry

func (m mapSource) Reference(_ context.Context, name string) (content.Entry, error) {
	e, ok := m[name]
	if !ok {
		return content.Entry{}, content.ErrUnknownExercise
	}
	return e, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Notification
}

func (r *recorder) OnEvent(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func (r *recorder) kinds() []engine.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []engine.EventKind
	for _, n := range r.events {
		out = append(out, n.Kind)
	}
	return out
}

func newSession(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.Engine.FrameInterval == 0 {
		opts.Engine = engine.DefaultConfig()
	}
	return NewSession(opts)
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func initRequest(t *testing.T, id string, data any) Request {
	return Request{Type: TypeInit, ID: json.RawMessage(strconv.Quote(id)), Data: mustJSON(t, data)}
}

func frameRequest(t *testing.T, id int, f pose.Frame, ts *float64) Request {
	payload := map[string]any{"landmarks": []pose.Keypoint{}}
	if f != nil {
		payload["landmarks"] = pose.Keypoints(f, offset)
	}
	if ts != nil {
		payload["timestamp"] = *ts
	}
	return Request{Type: TypeProcessFrame, ID: json.RawMessage(strconv.Itoa(id)), Data: mustJSON(t, payload)}
}

func single(t *testing.T, out []Response) Response {
	t.Helper()
	require.Len(t, out, 1)
	return out[0]
}

// player drives a session with timestamped frames at 60fps.
type player struct {
	t       *testing.T
	s       *Session
	ts      float64
	id      int
	results []engine.Result
	allDone int
}

func (p *player) frame(f pose.Frame) engine.Result {
	p.t.Helper()
	ts := p.ts
	out := p.s.Handle(context.Background(), frameRequest(p.t, p.id, f, &ts))
	p.ts += frameMs
	p.id++

	require.NotEmpty(p.t, out)
	require.Equal(p.t, TypeFrameResult, out[0].Type, "unexpected response %+v", out[0].Value)
	assert.Equal(p.t, strconv.Itoa(p.id-1), string(out[0].ID))
	for _, extra := range out[1:] {
		if extra.Type == TypeAllDone {
			p.allDone++
			assert.Empty(p.t, extra.ID)
		}
	}

	res := out[0].Value.(engine.Result)
	p.results = append(p.results, res)
	return res
}

func (p *player) hold(f pose.Frame, seconds float64) {
	for end := p.ts + seconds*1000; p.ts < end; {
		p.frame(f)
	}
}

func (p *player) move(from, to pose.Frame, seconds float64) {
	start := p.ts
	for end := p.ts + seconds*1000; p.ts < end; {
		p.frame(pose.Lerp(from, to, (p.ts-start)/(seconds*1000)))
	}
}

func (p *player) repetition() {
	standing, raised := pose.StandingPose(), pose.ArmsRaisedPose()
	p.hold(standing, 4)
	p.move(standing, raised, 2)
	p.hold(raised, 4)
	p.move(raised, standing, 2)
	p.hold(standing, 6)
}

func (p *player) phases() []string {
	var out []string
	for _, r := range p.results {
		if len(out) == 0 || out[len(out)-1] != r.Phase {
			out = append(out, r.Phase)
		}
	}
	return out
}

func TestSession_RejectsFramesBeforeInit(t *testing.T) {
	s := newSession(t, Options{})
	ctx := context.Background()

	resp := single(t, s.Handle(ctx, frameRequest(t, 7, pose.StandingPose(), nil)))
	assert.Equal(t, TypeError, resp.Type)
	assert.Equal(t, "7", string(resp.ID))
	assert.Equal(t, ErrNotInitialized.Error(), resp.Value.(ErrorValue).Message)
	assert.Equal(t, TypeProcessFrame, resp.Value.(ErrorValue).Operation)

	resp = single(t, s.Handle(ctx, Request{Type: TypeGetExerciseName, ID: json.RawMessage(`"q"`)}))
	assert.Equal(t, TypeError, resp.Type)
	assert.Equal(t, `"q"`, string(resp.ID))
	assert.Equal(t, Uninitialized, s.Lifecycle())
}

func TestSession_UnknownType(t *testing.T) {
	s := newSession(t, Options{})
	resp := single(t, s.Handle(context.Background(), Request{Type: "dance", ID: json.RawMessage(`1`)}))
	assert.Equal(t, TypeError, resp.Type)
	assert.Contains(t, resp.Value.(ErrorValue).Message, "unknown message type")
}

func TestSession_InitWithInlineReference(t *testing.T) {
	s := newSession(t, Options{})
	ctx := context.Background()

	resp := single(t, s.Handle(ctx, initRequest(t, "a", map[string]any{
		"jsonData":     json.RawMessage(choreography.SampleReference()),
		"exerciseName": "arm-raise",
	})))
	require.Equal(t, TypeInitDone, resp.Type, "%+v", resp.Value)
	assert.Equal(t, `"a"`, string(resp.ID))

	done := resp.Value.(InitDone)
	assert.Equal(t, "arm-raise", done.ExerciseName)
	assert.Equal(t, DefaultReps, done.Reps)
	assert.Equal(t, Ready, s.Lifecycle())

	resp = single(t, s.Handle(ctx, Request{Type: TypeGetExerciseName, ID: json.RawMessage(`2`)}))
	assert.Equal(t, TypeExerciseNameResult, resp.Type)
	assert.Equal(t, "arm-raise", resp.Value.(ExerciseNameResult).ExerciseName)
}

func TestSession_InitWithStringReference(t *testing.T) {
	s := newSession(t, Options{})
	reps := 5

	resp := single(t, s.Handle(context.Background(), initRequest(t, "a", map[string]any{
		"jsonData": string(choreography.SampleReference()),
		"reps":     reps,
	})))
	require.Equal(t, TypeInitDone, resp.Type, "%+v", resp.Value)
	assert.Equal(t, DefaultExerciseName, resp.Value.(InitDone).ExerciseName)
	assert.Equal(t, 5, resp.Value.(InitDone).Reps)
}

func TestSession_InitEmptyChoreographyFails(t *testing.T) {
	s := newSession(t, Options{})
	ctx := context.Background()

	resp := single(t, s.Handle(ctx, initRequest(t, "good", map[string]any{
		"jsonData": json.RawMessage(choreography.SampleReference()),
	})))
	require.Equal(t, TypeInitDone, resp.Type)

	resp = single(t, s.Handle(ctx, initRequest(t, "bad", map[string]any{
		"jsonData": map[string]any{"frames": []any{}, "segments": []any{}},
	})))
	assert.Equal(t, TypeError, resp.Type)
	assert.Contains(t, resp.Value.(ErrorValue).Message, engine.ErrEmptyChoreography.Error())
	assert.Equal(t, Uninitialized, s.Lifecycle())

	// The failed init discarded the previous controller
	resp = single(t, s.Handle(ctx, frameRequest(t, 1, pose.StandingPose(), nil)))
	assert.Equal(t, TypeError, resp.Type)
}

func TestSession_InitRejectsUnusableSegments(t *testing.T) {
	frames := make([]any, 33)
	for i := range frames {
		frames[i] = []any{"0.1,0.2,0.3"}
	}
	tests := []struct {
		name     string
		segments []any
	}{
		{"huge bounds", []any{[]any{9e18, 9e18, "starting_x", []float64{0.5}}}},
		{"short middle frame", []any{[]any{0, 32, "starting_front"}, []any{10, 20, "holding_front", []float64{0.5}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t, Options{})

			var out []Response
			require.NotPanics(t, func() {
				out = s.Handle(context.Background(), initRequest(t, "init", map[string]any{
					"jsonData": map[string]any{"frames": frames, "segments": tt.segments},
				}))
			})
			resp := single(t, out)
			assert.Equal(t, TypeError, resp.Type)
			assert.Contains(t, resp.Value.(ErrorValue).Message, engine.ErrEmptyChoreography.Error())
			assert.Equal(t, Uninitialized, s.Lifecycle())
		})
	}
}

func TestSession_InitPlanFromSource(t *testing.T) {
	source := mapSource{
		"first":  {Name: "first", Reps: 2, Data: choreography.SampleReference()},
		"second": {Name: "second", Reps: 4, Data: choreography.SampleReference()},
	}
	s := newSession(t, Options{Source: source})
	one := 1

	resp := single(t, s.Handle(context.Background(), initRequest(t, "p", map[string]any{
		"plan": []map[string]any{
			{"name": "first", "reps": one},
			{"name": "second"},
		},
	})))
	require.Equal(t, TypeInitDone, resp.Type, "%+v", resp.Value)

	done := resp.Value.(InitDone)
	assert.Equal(t, []string{"first", "second"}, done.Exercises)
	assert.Equal(t, 1, done.Reps, "explicit reps override the source")

	resp = single(t, s.Handle(context.Background(), initRequest(t, "p2", map[string]any{
		"plan": []map[string]any{{"name": "missing"}},
	})))
	assert.Equal(t, TypeError, resp.Type)
}

func TestSession_InitWithoutSource(t *testing.T) {
	s := newSession(t, Options{})
	resp := single(t, s.Handle(context.Background(), initRequest(t, "x", map[string]any{"exerciseName": "tadasana"})))
	assert.Equal(t, TypeError, resp.Type)

	resp = single(t, s.Handle(context.Background(), initRequest(t, "y", map[string]any{})))
	assert.Equal(t, TypeError, resp.Type)
}

func TestSession_StartingPoseAdvances(t *testing.T) {
	s := newSession(t, Options{})
	resp := single(t, s.Handle(context.Background(), initRequest(t, "a", map[string]any{
		"jsonData": json.RawMessage(choreography.SampleReference()),
	})))
	require.Equal(t, TypeInitDone, resp.Type)

	p := &player{t: t, s: s, ts: 1_700_000_000_000}
	p.hold(pose.StandingPose(), 4)

	assert.Equal(t, []string{"starting_front", "transition_raise"}, p.phases())
	assert.Equal(t, Processing, s.Lifecycle())
}

func TestSession_EmptyLandmarks(t *testing.T) {
	s := newSession(t, Options{})
	single(t, s.Handle(context.Background(), initRequest(t, "a", map[string]any{
		"jsonData": json.RawMessage(choreography.SampleReference()),
	})))

	p := &player{t: t, s: s}
	before := p.frame(pose.StandingPose())
	after := p.frame(nil)

	assert.Equal(t, before.Phase, after.Phase)
	assert.Equal(t, "No pose detected", after.Feedback.Message)

	// Garbage landmarks are treated the same way
	out := s.Handle(context.Background(), Request{
		Type: TypeProcessFrame,
		ID:   json.RawMessage(`99`),
		Data: json.RawMessage(`{"landmarks": "nonsense"}`),
	})
	resp := single(t, out)
	require.Equal(t, TypeFrameResult, resp.Type)
	assert.Equal(t, before.Phase, resp.Value.(engine.Result).Phase)
}

func TestSession_PlanCompletion(t *testing.T) {
	rec := &recorder{}
	s := newSession(t, Options{Listeners: []Listener{rec}})
	resp := single(t, s.Handle(context.Background(), initRequest(t, "a", map[string]any{
		"plan": []map[string]any{
			{"name": "first", "reps": 1, "jsonData": json.RawMessage(choreography.SampleReference())},
			{"name": "second", "reps": 1, "jsonData": json.RawMessage(choreography.SampleReference())},
		},
	})))
	require.Equal(t, TypeInitDone, resp.Type, "%+v", resp.Value)

	p := &player{t: t, s: s}
	p.repetition()

	last := p.results[len(p.results)-1]
	assert.Equal(t, "second", last.ExerciseName)
	assert.Equal(t, 0, last.RepCount)
	assert.Equal(t, 0, p.allDone)

	p.repetition()
	p.hold(pose.StandingPose(), 1)

	assert.Equal(t, 1, p.allDone, "all_done is emitted exactly once")
	assert.Contains(t, rec.kinds(), EventSessionStarted)
	assert.Contains(t, rec.kinds(), engine.EventExerciseChanged)
	assert.Contains(t, rec.kinds(), engine.EventPlanCompleted)
	for _, n := range rec.events {
		assert.Equal(t, s.ID(), n.SessionID)
	}
}

func TestSession_RunPreservesOrder(t *testing.T) {
	rec := &recorder{}
	s := newSession(t, Options{ID: "ordered", Listeners: []Listener{rec}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.NoError(t, s.Submit(ctx, frameRequest(t, 0, pose.StandingPose(), nil)))
	require.NoError(t, s.Submit(ctx, initRequest(t, "1", map[string]any{
		"jsonData": json.RawMessage(choreography.SampleReference()),
	})))
	for i := 2; i < 30; i++ {
		require.NoError(t, s.Submit(ctx, frameRequest(t, i, pose.StandingPose(), nil)))
	}

	var got []Response
	for len(got) < 30 {
		select {
		case resp := <-s.Responses():
			got = append(got, resp)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d responses", len(got))
		}
	}

	assert.Equal(t, TypeError, got[0].Type)
	assert.Equal(t, TypeInitDone, got[1].Type)
	for i := 2; i < 30; i++ {
		assert.Equal(t, TypeFrameResult, got[i].Type)
		assert.Equal(t, strconv.Itoa(i), string(got[i].ID))
	}

	s.Close()
	require.NoError(t, <-errCh)
	_, open := <-s.Responses()
	assert.False(t, open, "responses closed after Run returns")
	assert.ErrorIs(t, s.Submit(ctx, frameRequest(t, 31, nil, nil)), ErrClosed)

	kinds := rec.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, EventSessionClosed, kinds[len(kinds)-1])
}

func TestSession_RunStopsOnCancel(t *testing.T) {
	s := newSession(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestClock(t *testing.T) {
	interval := time.Second / 60
	ts := func(v float64) *float64 { return &v }

	t.Run("fixed interval", func(t *testing.T) {
		c := newClock(interval)
		assert.Equal(t, time.Duration(0), c.tick(nil))
		assert.Equal(t, interval, c.tick(nil))
		assert.Equal(t, 2*interval, c.tick(nil))
	})

	t.Run("anchored timestamps", func(t *testing.T) {
		c := newClock(interval)
		assert.Equal(t, time.Duration(0), c.tick(ts(5000)))
		assert.Equal(t, 250*time.Millisecond, c.tick(ts(5250)))
		assert.Equal(t, 250*time.Millisecond, c.tick(ts(5100)), "never runs backwards")
		assert.Equal(t, 1250*time.Millisecond, c.tick(ts(6250)))
	})

	t.Run("mixed", func(t *testing.T) {
		c := newClock(interval)
		c.tick(nil)
		c.tick(nil)
		assert.Equal(t, interval, c.tick(ts(100)), "first timestamp continues the clock")
		assert.Equal(t, 2*interval, c.tick(nil))
		got := c.tick(ts(1100))
		assert.InDelta(t, float64(interval+time.Second), float64(got), float64(time.Microsecond))
	})
}
