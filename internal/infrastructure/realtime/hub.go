package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Transport is the duplex channel behind a subscriber. Production wraps
// *websocket.Conn; tests substitute failing fakes.
type Transport interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Subscriber is one live connection with its organization scope.
type Subscriber struct {
	ID             string
	OrganizationID string
	ConnectedAt    time.Time
	LastActivity   time.Time

	transport Transport
}

// Hub owns the subscriber registry and fans messages out to live
// connections. A failed send evicts the connection after the broadcast pass
// completes, so one broken subscriber never blocks delivery to others.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber

	onSendFailure func()
	logger        *zap.SugaredLogger
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		logger:      logger,
	}
}

// SetSendFailureHook installs a callback fired on every failed send.
// Must be called before the hub starts serving connections.
func (h *Hub) SetSendFailureHook(fn func()) {
	h.onSendFailure = fn
}

// Register adds a connection under a fresh id and returns the subscriber.
func (h *Hub) Register(transport Transport, organizationID string) *Subscriber {
	sub := &Subscriber{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		ConnectedAt:    time.Now(),
		LastActivity:   time.Now(),
		transport:      transport,
	}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	h.mu.Unlock()

	h.logger.Infow("subscriber registered", "subscriber_id", sub.ID, "organization_id", organizationID)
	return sub
}

// Unregister removes a subscriber from the registry. Safe to call twice.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	_, exists := h.subscribers[id]
	delete(h.subscribers, id)
	h.mu.Unlock()

	if exists {
		h.logger.Infow("subscriber unregistered", "subscriber_id", id)
	}
}

// Touch refreshes the last-activity timestamp for a subscriber.
func (h *Hub) Touch(id string) {
	h.mu.Lock()
	if sub, exists := h.subscribers[id]; exists {
		sub.LastActivity = time.Now()
	}
	h.mu.Unlock()
}

// Broadcast sends message to every subscriber whose organization matches
// scope (all subscribers when scope is empty), skipping excludeID. Failed
// connections are collected during the pass and evicted afterwards.
func (h *Hub) Broadcast(scope string, message interface{}, excludeID string) {
	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		if sub.ID == excludeID {
			continue
		}
		if scope != "" && sub.OrganizationID != scope {
			continue
		}
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	var failed []string
	for _, sub := range targets {
		if err := sub.transport.WriteJSON(message); err != nil {
			h.logger.Warnw("broadcast send failed", "subscriber_id", sub.ID, "error", err)
			if h.onSendFailure != nil {
				h.onSendFailure()
			}
			failed = append(failed, sub.ID)
		}
	}

	for _, id := range failed {
		h.evict(id)
	}
}

// SendTo delivers a message to a single subscriber; a failed send evicts it.
func (h *Hub) SendTo(id string, message interface{}) error {
	h.mu.RLock()
	sub, exists := h.subscribers[id]
	h.mu.RUnlock()

	if !exists {
		return errSubscriberGone
	}

	if err := sub.transport.WriteJSON(message); err != nil {
		if h.onSendFailure != nil {
			h.onSendFailure()
		}
		h.evict(id)
		return err
	}
	return nil
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) evict(id string) {
	h.mu.Lock()
	sub, exists := h.subscribers[id]
	delete(h.subscribers, id)
	h.mu.Unlock()

	if exists {
		sub.transport.Close()
		h.logger.Infow("subscriber evicted after send failure", "subscriber_id", id)
	}
}

// wsTransport wraps a websocket connection with a write mutex so the
// scheduler broadcast and the per-connection reply path never interleave
// writes on the same conn.
type wsTransport struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func newWSTransport(conn *websocket.Conn, writeTimeout time.Duration) *wsTransport {
	return &wsTransport{conn: conn, writeTimeout: writeTimeout}
}

func (t *wsTransport) WriteJSON(v interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) WriteControl(messageType int, deadline time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn.WriteControl(messageType, nil, deadline)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
