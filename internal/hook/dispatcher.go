package hook

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/aadiyog/yogatracker/internal/host"
)

// Dispatcher runs subscribed hooks in the background for each session
// notification.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	log      *zap.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher over discovered hooks.
func NewDispatcher(m *Manager, e *Executor, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{manager: m, executor: e, log: log}
}

// OnEvent starts every hook subscribed to the notification's kind. Hooks
// outlive the request context but not the executor timeout.
func (d *Dispatcher) OnEvent(ctx context.Context, n host.Notification) {
	hooks := d.manager.Subscribed(string(n.Kind))
	if len(hooks) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	for _, h := range hooks {
		req := &Request{
			Event:     string(n.Kind),
			SessionID: n.SessionID,
			Exercise:  n.Exercise,
			Segment:   n.Segment,
			Reps:      n.Reps,
			Target:    n.Target,
			Reason:    n.Reason,
			Plan:      n.Plan,
			Timestamp: n.Timestamp,
			Config:    h.Manifest.Config,
		}

		d.wg.Add(1)
		go func(h *Hook) {
			defer d.wg.Done()
			d.run(ctx, h, req)
		}(h)
	}
}

// Wait blocks until all started hooks have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, h *Hook, req *Request) {
	log := d.log.With(zap.String("hook", h.Manifest.Name), zap.String("event", req.Event))

	resp, err := d.executor.Execute(ctx, h, req)
	if err != nil {
		log.Warn("hook failed", zap.Error(err))
		return
	}
	if !resp.Success {
		log.Warn("hook reported failure", zap.String("error", resp.Error))
		return
	}
	log.Debug("hook completed")
}

var _ host.Listener = (*Dispatcher)(nil)
