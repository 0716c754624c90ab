// Package app wires the yogatracker services together and runs the HTTP
// server until its context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aadiyog/yogatracker/internal/config"
	"github.com/aadiyog/yogatracker/internal/content"
	"github.com/aadiyog/yogatracker/internal/events"
	"github.com/aadiyog/yogatracker/internal/hook"
	"github.com/aadiyog/yogatracker/internal/host"
	"github.com/aadiyog/yogatracker/internal/server"
	"github.com/aadiyog/yogatracker/internal/store"
)

// ShutdownTimeout bounds the graceful HTTP shutdown.
const ShutdownTimeout = 5 * time.Second

// App owns every long-lived service of the process.
type App struct {
	cfg        config.Config
	log        *zap.Logger
	store      *store.Store
	redis      *redis.Client
	hub        *events.Hub
	hooks      *hook.Manager
	dispatcher *hook.Dispatcher
	references *content.CachedSource
	server     *server.Server
}

// New opens the store, connects redis when configured, discovers hooks and
// builds the HTTP server.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:   cfg,
		log:   log,
		store: st,
		redis: ConnectRedis(cfg),
	}
	a.hub = events.NewHub(ctx, a.redis, log.Named("events"))

	a.hooks = hook.NewManager(cfg.HookDir, log.Named("hooks"))
	if err := a.hooks.Discover(); err != nil {
		log.Warn("hook discovery failed", zap.String("dir", cfg.HookDir), zap.Error(err))
	}
	a.dispatcher = hook.NewDispatcher(a.hooks, hook.NewExecutor(cfg.HookTimeout()), log.Named("hooks"))

	a.references = content.NewCachedSource(content.NewStoreSource(st.Exercises()), cfg.ReferenceCacheTTL)

	a.server = server.New(server.Config{
		StaticDir: cfg.StaticDir,
		Store:     st,
		Source:    a.references,
		Cache:     a.references,
		Hub:       a.hub,
		Engine:    cfg.Engine,
		Listeners: []host.Listener{
			NewRecorder(st.Sessions(), log.Named("recorder")),
			a.hub,
			a.dispatcher,
		},
		Logger: log.Named("server"),
	})

	log.Info("application ready",
		zap.String("db", cfg.DBPath),
		zap.Bool("redis", a.redis != nil),
		zap.Int("hooks", len(a.hooks.List())),
	)
	return a, nil
}

// ConnectRedis returns a client for REDIS_ADDR, or nil when unset.
func ConnectRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		// Publishes from a session carry a deadline.
		ContextTimeoutEnabled: true,
	})
}

// Handler returns the HTTP handler of the application.
func (a *App) Handler() http.Handler {
	return a.server
}

// Store returns the application store.
func (a *App) Store() *store.Store {
	return a.store
}

// Run listens on the configured address and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.ServerAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully and releases every service.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           a.server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server listening", zap.String("addr", ln.Addr().String()))
		errCh <- httpServer.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("graceful shutdown failed", zap.Error(err))
	}

	a.Close()
	return serveErr
}

// Close disconnects sessions, waits for running hooks and closes the
// event hub, redis and the store.
func (a *App) Close() {
	a.server.Close()
	a.dispatcher.Wait()

	if err := a.hub.Close(); err != nil {
		a.log.Warn("failed to close event hub", zap.Error(err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("failed to close redis", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close store", zap.Error(err))
	}
	a.log.Info("application stopped")
}
