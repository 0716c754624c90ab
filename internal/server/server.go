// Package server provides the HTTP and websocket surface of yogatracker.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aadiyog/yogatracker/internal/choreography"
	"github.com/aadiyog/yogatracker/internal/content"
	"github.com/aadiyog/yogatracker/internal/engine"
	"github.com/aadiyog/yogatracker/internal/events"
	"github.com/aadiyog/yogatracker/internal/host"
	"github.com/aadiyog/yogatracker/internal/server/api"
	"github.com/aadiyog/yogatracker/internal/store"
)

// Config holds the server configuration. Every collaborator is optional;
// routes whose collaborator is missing are not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	// Source resolves exercises named in init messages.
	Source content.Source
	// Cache is invalidated when exercises or references change.
	Cache api.Invalidator
	// Hub serves per-session event streams.
	Hub *events.Hub
	// Engine configures every hosted session.
	Engine engine.Config
	// Listeners observe every hosted session.
	Listeners []host.Listener
	Logger    *zap.Logger
}

// Server represents the HTTP server of the application.
type Server struct {
	config Config
	mux    *http.ServeMux
	log    *zap.Logger
	socket *SessionSocket
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		log:    config.Logger,
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.socket = NewSessionSocket(SocketConfig{
		Engine:    s.config.Engine,
		Source:    s.config.Source,
		Listeners: s.config.Listeners,
		Logger:    s.log,
	})
	s.mux.Handle("/api/session", s.socket)

	if s.config.Store != nil {
		exercises := api.NewExerciseHandler(s.config.Store, s.config.Cache)
		reference := api.NewReferenceHandler(s.config.Store, choreography.Options{
			Facing: s.config.Engine.Facing,
			Logger: s.log,
		}, s.config.Cache)

		// /api/exercises/{id}/reference goes to the reference handler.
		exerciseRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/reference") {
				reference.ServeHTTP(w, r)
				return
			}
			exercises.ServeHTTP(w, r)
		})
		s.mux.Handle("/api/exercises", exerciseRouter)
		s.mux.Handle("/api/exercises/", exerciseRouter)
	}

	var stream http.Handler
	if s.config.Hub != nil {
		stream = NewStreamHandler(s.config.Hub, s.log)
	}
	var history http.Handler
	if s.config.Store != nil {
		history = api.NewSessionHandler(s.config.Store)
	}
	if stream != nil || history != nil {
		// /api/sessions/{id}/events is the live stream, the rest is history.
		sessionRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/events") {
				if stream == nil {
					http.NotFound(w, r)
					return
				}
				stream.ServeHTTP(w, r)
				return
			}
			if history == nil {
				http.NotFound(w, r)
				return
			}
			history.ServeHTTP(w, r)
		})
		s.mux.Handle("/api/sessions", sessionRouter)
		s.mux.Handle("/api/sessions/", sessionRouter)
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close disconnects every hosted session. http.Server.Shutdown does not
// wait for hijacked websocket connections, so call it after Shutdown.
func (s *Server) Close() {
	s.socket.Close()
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":   "ok",
		"uptime":   time.Since(s.start).String(),
		"sessions": s.socket.Active(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
