// Package events fans session notifications out to stream subscribers,
// across processes when redis is configured.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aadiyog/yogatracker/internal/host"
)

const (
	channelPrefix = "yogatracker:session:"
	sendBuffer    = 64

	// DefaultPublishTimeout bounds a redis publish made from a session.
	DefaultPublishTimeout = 250 * time.Millisecond
)

// Hub delivers payloads to the clients subscribed to a session. With a
// redis client every payload goes through pub/sub, so clients connected to
// any instance see it; without one delivery is local.
type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	log     *zap.Logger
	clients map[string]map[*Client]struct{}

	publishTimeout time.Duration
	mu      sync.RWMutex
	wg      sync.WaitGroup
}

// Client is one subscriber of a session stream. Send is closed on
// Unregister.
type Client struct {
	SessionID string
	Send      chan []byte
}

// NewHub creates a Hub. A nil redis client, or one whose subscription
// fails, results in local delivery only.
func NewHub(ctx context.Context, redisClient *redis.Client, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		log:            log,
		clients:        map[string]map[*Client]struct{}{},
		publishTimeout: DefaultPublishTimeout,
	}
	if redisClient == nil {
		return h
	}

	ps := redisClient.PSubscribe(ctx, channelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		log.Warn("redis subscribe failed, delivering locally", zap.Error(err))
		ps.Close()
		return h
	}
	h.redis = redisClient
	h.pubsub = ps

	h.wg.Add(1)
	go h.subscribeRedis(ps.Channel())
	return h
}

// Register subscribes a new client to a session.
func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

// Unregister removes a client and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessionClients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := sessionClients[client]; !ok {
		return
	}
	delete(sessionClients, client)
	if len(sessionClients) == 0 {
		delete(h.clients, client.SessionID)
	}
	close(client.Send)
}

// Subscribers returns the number of local clients of a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Publish sends payload to every subscriber of sessionID. Slow clients
// miss messages rather than block the publisher.
func (h *Hub) Publish(ctx context.Context, sessionID string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(ctx, redisChannel(sessionID), payload).Err()
		if err == nil {
			return
		}
		h.log.Warn("redis publish failed, delivering locally",
			zap.String("session", sessionID), zap.Error(err))
	}
	h.deliver(sessionID, payload)
}

// OnEvent publishes a session notification as JSON. The redis round trip
// is bounded by the publish timeout; on expiry the notification is still
// delivered to local subscribers.
func (h *Hub) OnEvent(ctx context.Context, n host.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		h.log.Error("encode notification", zap.Error(err))
		return
	}
	if h.redis != nil && h.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.publishTimeout)
		defer cancel()
	}
	h.Publish(ctx, n.SessionID, payload)
}

// Close stops the redis subscription. Registered clients stay open.
func (h *Hub) Close() error {
	if h.pubsub == nil {
		return nil
	}
	err := h.pubsub.Close()
	h.wg.Wait()
	return err
}

func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
		default:
			h.log.Debug("subscriber lagging, message dropped", zap.String("session", sessionID))
		}
	}
}

func (h *Hub) subscribeRedis(messages <-chan *redis.Message) {
	defer h.wg.Done()
	for msg := range messages {
		sessionID := sessionIDFromChannel(msg.Channel)
		if sessionID == "" {
			continue
		}
		h.deliver(sessionID, []byte(msg.Payload))
	}
}

func redisChannel(sessionID string) string {
	return channelPrefix + sessionID
}

func sessionIDFromChannel(ch string) string {
	id, ok := strings.CutPrefix(ch, channelPrefix)
	if !ok {
		return ""
	}
	return id
}

var _ host.Listener = (*Hub)(nil)
