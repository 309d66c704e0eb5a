package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/aura-webinar/portal/internal/store"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// EventStoreUpdated tells a viewer that a store key changed and should be refetched.
	EventStoreUpdated = "store_updated"
)

// StoreUpdate is the payload of EventStoreUpdated.
type StoreUpdate struct {
	Key string `json:"key"`
}

// Publisher publishes session events to other instances.
type Publisher interface {
	PublishSessionEvent(sessionID, event string, payload []byte) error
}

// Subscriber subscribes to a session channel and invokes handler for incoming events.
type Subscriber interface {
	SubscribeSession(sessionID string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains session_id -> set of connections and pushes store changes to them.
// With Redis configured, events go through pub/sub so any instance holding the viewer's socket delivers them.
type Hub struct {
	// sessionID -> map[clientID]*Client
	sessions map[string]map[string]*Client
	subs     map[string]*subscription
	ignored  map[string]bool
	mu       sync.RWMutex
	logger   *zap.Logger
	pub      Publisher
	sub      Subscriber
}

// subscription is one Redis subscription for a session room. cancel is nil until subscribing finishes.
type subscription struct {
	cancel func()
}

// NewHub creates a new WebSocket hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sessions: make(map[string]map[string]*Client),
		subs:     make(map[string]*subscription),
		ignored:  make(map[string]bool),
		logger:   logger,
		pub:      pub,
		sub:      sub,
	}
}

// Ignore makes Attach skip stores that no socket can follow, such as the shared signed-out store.
func (h *Hub) Ignore(sessionIDs ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range sessionIDs {
		h.ignored[id] = true
	}
}

// Attach forwards every change of st to the session's sockets. Use as the registry's OnNewStore hook.
func (h *Hub) Attach(sessionID string, st *store.Store) {
	h.mu.RLock()
	skip := h.ignored[sessionID]
	h.mu.RUnlock()
	if skip {
		return
	}
	st.OnChange(func(key string) {
		h.Publish(sessionID, EventStoreUpdated, StoreUpdate{Key: key})
	})
}

// Register adds a client to its session room. The first client starts the Redis subscription,
// outside the hub lock.
func (h *Hub) Register(c *Client) {
	var pending *subscription
	h.mu.Lock()
	if h.sessions[c.SessionID] == nil {
		h.sessions[c.SessionID] = make(map[string]*Client)
		if h.sub != nil {
			pending = &subscription{}
			h.subs[c.SessionID] = pending
		}
	}
	h.sessions[c.SessionID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID))

	if pending != nil {
		h.subscribe(c.SessionID, pending)
	}
}

func (h *Hub) subscribe(sessionID string, pending *subscription) {
	cancel, err := h.sub.SubscribeSession(sessionID, func(event string, payload []byte) {
		h.Broadcast(sessionID, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("session subscribe failed", zap.String("session_id", sessionID), zap.Error(err))
		h.mu.Lock()
		if h.subs[sessionID] == pending {
			delete(h.subs, sessionID)
		}
		h.mu.Unlock()
		return
	}

	h.mu.Lock()
	current := h.subs[sessionID] == pending
	if current {
		pending.cancel = cancel
	}
	h.mu.Unlock()
	if !current {
		// The room emptied while subscribing.
		cancel()
	}
}

// Unregister removes a client. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	var cancel func()
	h.mu.Lock()
	if m, ok := h.sessions[c.SessionID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.sessions, c.SessionID)
			if sub, ok := h.subs[c.SessionID]; ok {
				delete(h.subs, c.SessionID)
				cancel = sub.cancel
			}
		}
	}
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID))
}

// Broadcast sends a message to the session's local clients.
func (h *Hub) Broadcast(sessionID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.sessions[sessionID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers an event once to every client of the session. With a publisher the
// subscription callback does the delivery, including on this instance.
func (h *Hub) Publish(sessionID, event string, payload interface{}) {
	if h.pub == nil {
		h.Broadcast(sessionID, event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.pub.PublishSessionEvent(sessionID, event, data); err != nil {
		h.logger.Warn("publish failed, delivering locally", zap.String("session_id", sessionID), zap.Error(err))
		h.Broadcast(sessionID, event, json.RawMessage(data))
	}
}

// Connections returns the number of sockets open for a session.
func (h *Hub) Connections(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
