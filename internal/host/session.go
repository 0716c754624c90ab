package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aadiyog/yogatracker/internal/choreography"
	"github.com/aadiyog/yogatracker/internal/content"
	"github.com/aadiyog/yogatracker/internal/engine"
	"github.com/aadiyog/yogatracker/internal/pose"
)

// Lifecycle is the initialization state of a session.
type Lifecycle string

const (
	Uninitialized Lifecycle = "uninitialized"
	Ready         Lifecycle = "ready"
	Processing    Lifecycle = "processing"
)

// Session-level event kinds, delivered alongside engine events.
const (
	EventSessionStarted engine.EventKind = "session_started"
	EventSessionClosed  engine.EventKind = "session_closed"
)

// DefaultQueueSize bounds the pending requests of a session.
const DefaultQueueSize = 64

// Notification is an event of one session.
type Notification struct {
	SessionID string `json:"sessionId"`
	engine.Event
	Plan []string `json:"plan,omitempty"`
}

// Listener observes session notifications. It is called synchronously from
// the session goroutine, so frame processing waits for it: implementations
// should return quickly and bound any I/O they do. Work of unbounded
// duration belongs on another goroutine.
type Listener interface {
	OnEvent(ctx context.Context, n Notification)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, n Notification)

// OnEvent implements Listener.
func (f ListenerFunc) OnEvent(ctx context.Context, n Notification) {
	f(ctx, n)
}

// Options configures a Session.
type Options struct {
	// ID identifies the session; a random one is generated when empty.
	ID        string
	Engine    engine.Config
	Source    content.Source
	Listeners []Listener
	Logger    *zap.Logger
	QueueSize int
}

// Session processes requests one at a time. Submit enqueues, Run drains
// the queue in order and publishes responses on Responses.
type Session struct {
	id        string
	cfg       engine.Config
	source    content.Source
	listeners []Listener
	log       *zap.Logger

	inbox     chan Request
	outbox    chan Response
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the goroutine calling Handle.
	ctrl      *engine.Controller
	lifecycle Lifecycle
	clock     *clock
	allDone   bool
}

// NewSession creates a Session in the Uninitialized state.
func NewSession(opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	return &Session{
		id:        opts.ID,
		cfg:       opts.Engine,
		source:    opts.Source,
		listeners: opts.Listeners,
		log:       opts.Logger.With(zap.String("session", opts.ID)),
		inbox:     make(chan Request, opts.QueueSize),
		outbox:    make(chan Response, opts.QueueSize),
		done:      make(chan struct{}),
		lifecycle: Uninitialized,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Lifecycle returns the current state. Only safe from the Handle goroutine
// or after Run returned.
func (s *Session) Lifecycle() Lifecycle {
	return s.lifecycle
}

// Submit enqueues a request, blocking while the queue is full.
func (s *Session) Submit(ctx context.Context, req Request) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.inbox <- req:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Responses delivers responses in request order, plus unsolicited
// all_done messages. It is closed when Run returns.
func (s *Session) Responses() <-chan Response {
	return s.outbox
}

// Close stops Run. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Run processes queued requests until ctx is cancelled or Close is called.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.outbox)
	defer s.notifyClosed(context.WithoutCancel(ctx))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case req := <-s.inbox:
			for _, resp := range s.Handle(ctx, req) {
				select {
				case s.outbox <- resp:
				case <-ctx.Done():
					return ctx.Err()
				case <-s.done:
					return nil
				}
			}
		}
	}
}

// Handle processes one request to completion and returns its responses.
// It is not safe for concurrent use.
func (s *Session) Handle(ctx context.Context, req Request) []Response {
	start := time.Now()

	var out []Response
	switch req.Type {
	case TypeInit:
		out = s.handleInit(ctx, req)
	case TypeProcessFrame:
		out = s.handleFrame(ctx, req)
	case TypeGetExerciseName:
		out = s.handleExerciseName(req)
	default:
		out = []Response{errorResponse(req.ID, req.Type, fmt.Errorf("%w: %q", ErrUnknownType, req.Type))}
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000
	for i := range out {
		out[i].ProcessingTime = elapsed
	}
	return out
}

func (s *Session) handleInit(ctx context.Context, req Request) []Response {
	// A new init discards the previous session state even when it fails.
	s.ctrl = nil
	s.lifecycle = Uninitialized
	s.allDone = false

	var data InitData
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &data); err != nil {
			return []Response{errorResponse(req.ID, TypeInit, fmt.Errorf("invalid init data: %w", err))}
		}
	}

	exercises, err := s.buildExercises(ctx, data)
	if err != nil {
		s.log.Warn("init failed", zap.Error(err))
		return []Response{errorResponse(req.ID, TypeInit, err)}
	}

	plan, err := engine.NewPlan(exercises...)
	if err != nil {
		s.log.Warn("init failed", zap.Error(err))
		return []Response{errorResponse(req.ID, TypeInit, err)}
	}

	ctrl, err := engine.NewController(plan, s.cfg, s.log)
	if err != nil {
		s.log.Warn("init failed", zap.Error(err))
		return []Response{errorResponse(req.ID, TypeInit, err)}
	}

	s.ctrl = ctrl
	s.lifecycle = Ready
	s.clock = newClock(s.cfg.FrameInterval)

	first := plan.Exercise(0)
	s.log.Info("session initialized", zap.Strings("exercises", plan.Names()))
	s.notify(ctx, Notification{
		Event: engine.Event{Kind: EventSessionStarted, Exercise: first.Name, Target: first.TargetReps},
		Plan:  plan.Names(),
	})

	return []Response{{
		Type: TypeInitDone,
		ID:   req.ID,
		Value: InitDone{
			Exercise:     first.Name,
			Reps:         first.TargetReps,
			ExerciseName: first.Name,
			Exercises:    plan.Names(),
		},
	}}
}

func (s *Session) buildExercises(ctx context.Context, data InitData) ([]engine.Exercise, error) {
	opts := choreography.Options{Facing: s.cfg.Facing, Logger: s.log}

	if len(data.Plan) > 0 {
		exercises := make([]engine.Exercise, 0, len(data.Plan))
		for i, entry := range data.Plan {
			name := entry.Name
			if name == "" {
				name = fmt.Sprintf("%s-%d", DefaultExerciseName, i+1)
			}
			ex, err := s.loadExercise(ctx, name, entry.JSONData, entry.Reps, opts)
			if err != nil {
				return nil, err
			}
			exercises = append(exercises, ex)
		}
		return exercises, nil
	}

	name := data.ExerciseName
	if name == "" {
		if len(data.JSONData) == 0 {
			return nil, errors.New("init requires jsonData, exerciseName or plan")
		}
		name = DefaultExerciseName
	}

	ex, err := s.loadExercise(ctx, name, data.JSONData, data.Reps, opts)
	if err != nil {
		return nil, err
	}
	return []engine.Exercise{ex}, nil
}

// loadExercise builds one exercise from inline JSON, falling back to the
// content source. An explicit reps value wins over the source's default.
func (s *Session) loadExercise(ctx context.Context, name string, inline json.RawMessage, reps *int, opts choreography.Options) (engine.Exercise, error) {
	data, err := decodeReference(inline)
	if err != nil {
		return engine.Exercise{}, fmt.Errorf("exercise %q: %w", name, err)
	}

	target := DefaultReps
	if data == nil {
		if s.source == nil {
			return engine.Exercise{}, fmt.Errorf("%w: %q (no content source)", content.ErrUnknownExercise, name)
		}
		entry, err := s.source.Reference(ctx, name)
		if err != nil {
			return engine.Exercise{}, err
		}
		data = entry.Data
		if entry.Reps > 0 {
			target = entry.Reps
		}
	}
	if reps != nil {
		target = *reps
	}

	return engine.LoadExercise(name, data, target, opts)
}

func (s *Session) handleFrame(ctx context.Context, req Request) []Response {
	if s.ctrl == nil {
		return []Response{errorResponse(req.ID, TypeProcessFrame, ErrNotInitialized)}
	}

	var data FrameData
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &data); err != nil {
			s.log.Debug("unreadable frame payload, treating as no pose", zap.Error(err))
		}
	}

	raw, err := pose.ParseLandmarks(data.landmarks())
	if err != nil {
		s.log.Debug("unreadable landmarks, treating as no pose", zap.Error(err))
		raw = nil
	}

	s.lifecycle = Processing
	s.ctrl.UpdateFrame(raw)
	now := s.clock.tick(data.Timestamp)

	res, err := s.ctrl.ProcessExercise(now)
	if err != nil {
		s.log.Error("frame failed", zap.Error(err))
		return []Response{errorResponse(req.ID, TypeProcessFrame, err)}
	}

	out := []Response{{Type: TypeFrameResult, ID: req.ID, Value: res}}

	for _, ev := range res.Events {
		s.notify(ctx, Notification{Event: ev})
	}

	if s.ctrl.Done() && !s.allDone {
		s.allDone = true
		out = append(out, Response{
			Type:  TypeAllDone,
			Value: AllDone{ExerciseName: s.ctrl.ExerciseName(), Exercises: s.ctrl.Plan().Names()},
		})
	}

	return out
}

func (s *Session) handleExerciseName(req Request) []Response {
	if s.ctrl == nil {
		return []Response{errorResponse(req.ID, TypeGetExerciseName, ErrNotInitialized)}
	}
	return []Response{{
		Type:  TypeExerciseNameResult,
		ID:    req.ID,
		Value: ExerciseNameResult{ExerciseName: s.ctrl.ExerciseName()},
	}}
}

func (s *Session) notify(ctx context.Context, n Notification) {
	n.SessionID = s.id
	for _, l := range s.listeners {
		l.OnEvent(ctx, n)
	}
}

func (s *Session) notifyClosed(ctx context.Context) {
	ev := engine.Event{Kind: EventSessionClosed, Reason: "closed"}
	if s.ctrl != nil {
		ev.Exercise = s.ctrl.ExerciseName()
		ev.Reps = s.ctrl.Count()
		ev.Target = s.ctrl.TargetReps()
		if s.ctrl.Done() {
			ev.Reason = "completed"
		}
	}
	s.notify(ctx, Notification{Event: ev})
}
