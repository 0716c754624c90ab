package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aadiyog/yogatracker/internal/content"
	"github.com/aadiyog/yogatracker/internal/engine"
	"github.com/aadiyog/yogatracker/internal/host"
)

// maxMessageBytes bounds one websocket message; init messages carry whole
// reference choreographies.
const maxMessageBytes = 16 << 20

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// SocketConfig configures the sessions hosted by a SessionSocket.
type SocketConfig struct {
	Engine    engine.Config
	Source    content.Source
	Listeners []host.Listener
	Logger    *zap.Logger
}

// sessionStarted is the first message on every connection.
type sessionStarted struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// SessionSocket hosts one engine session per websocket connection.
type SessionSocket struct {
	config  SocketConfig
	log     *zap.Logger
	clients map[*websocket.Conn]struct{}
	mu      sync.Mutex
	wg      sync.WaitGroup
}

// NewSessionSocket creates a SessionSocket.
func NewSessionSocket(config SocketConfig) *SessionSocket {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &SessionSocket{
		config:  config,
		log:     config.Logger,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and runs a session until either side
// closes the connection.
func (h *SessionSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	h.track(conn)
	defer h.untrack(conn)

	id := uuid.NewString()
	log := h.log.With(zap.String("session", id))
	session := host.NewSession(host.Options{
		ID:        id,
		Engine:    h.config.Engine,
		Source:    h.config.Source,
		Listeners: h.config.Listeners,
		Logger:    h.log,
	})

	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	if err := write(sessionStarted{Type: "session_started", SessionID: id}); err != nil {
		log.Debug("failed to announce session", zap.Error(err))
		return
	}
	log.Info("session connected", zap.String("remote", r.RemoteAddr))

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := session.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warn("session stopped", zap.Error(err))
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for resp := range session.Responses() {
			if err := write(resp); err != nil {
				log.Debug("write failed", zap.Error(err))
				conn.Close()
				// Keep draining so Run never blocks on a dead connection.
				for range session.Responses() {
				}
				return
			}
		}
	}()

	h.readLoop(ctx, conn, session, write, log)

	session.Close()
	<-runDone
	<-writerDone
	log.Info("session disconnected")
}

func (h *SessionSocket) readLoop(ctx context.Context, conn *websocket.Conn, session *host.Session, write func(any) error, log *zap.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read failed", zap.Error(err))
			}
			return
		}

		var req host.Request
		if err := json.Unmarshal(data, &req); err != nil {
			resp := host.Response{
				Type:  host.TypeError,
				Value: host.ErrorValue{Message: "invalid message: " + err.Error()},
			}
			if err := write(resp); err != nil {
				return
			}
			continue
		}

		if err := session.Submit(ctx, req); err != nil {
			log.Debug("submit failed", zap.Error(err))
			return
		}
	}
}

// Active returns the number of open connections.
func (h *SessionSocket) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close closes every open connection and waits for their sessions to end.
func (h *SessionSocket) Close() {
	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *SessionSocket) track(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
	h.wg.Add(1)
}

func (h *SessionSocket) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	h.wg.Done()
}
