// Package notify fans events out to websocket clients, either to everyone or
// to the clients subscribed to one account, and mirrors them to optional
// sinks. Delivery is best effort.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"papertrade/internal/logger"
	"papertrade/internal/metrics"
)

// DefaultBufferSize is the per-client queue length.
const DefaultBufferSize = 32

// Envelope is the frame delivered to clients and sinks.
type Envelope struct {
	Event     string      `json:"event"`
	AccountID string      `json:"accountId,omitempty"`
	Data      interface{} `json:"data"`
	SentAt    time.Time   `json:"sentAt"`
}

// Sink receives every envelope the hub emits.
type Sink interface {
	Deliver(ctx context.Context, env Envelope) error
	Close() error
}

// Client is one connected subscriber.
type Client struct {
	send     chan Envelope
	accounts map[string]struct{}
}

// Events returns the client's outbound queue. It is closed when the client
// is removed from the hub.
func (c *Client) Events() <-chan Envelope {
	return c.send
}

// Hub tracks clients and account groups.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	groups  map[string]map[*Client]struct{}
	closed  bool

	sinks      []Sink
	bufferSize int
	metrics    *metrics.Metrics
	log        *zap.SugaredLogger
	now        func() time.Time
}

// NewHub creates a Hub. m may be nil.
func NewHub(m *metrics.Metrics, sinks ...Sink) *Hub {
	return &Hub{
		clients:    map[*Client]struct{}{},
		groups:     map[string]map[*Client]struct{}{},
		sinks:      sinks,
		bufferSize: DefaultBufferSize,
		metrics:    m,
		log:        logger.Named("notify"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register adds a new client.
func (h *Hub) Register() *Client {
	c := &Client{
		send:     make(chan Envelope, h.bufferSize),
		accounts: map[string]struct{}{},
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(c.send)
		return c
	}
	h.clients[c] = struct{}{}
	h.metrics.ClientConnected(1)
	return c
}

// Remove drops the client from every group and closes its queue.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	for accountID := range c.accounts {
		h.leave(c, accountID)
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.ClientConnected(-1)
}

// Subscribe adds the client to an account's group.
func (h *Hub) Subscribe(c *Client, accountID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	group, ok := h.groups[accountID]
	if !ok {
		group = map[*Client]struct{}{}
		h.groups[accountID] = group
	}
	group[c] = struct{}{}
	c.accounts[accountID] = struct{}{}
}

// Unsubscribe removes the client from an account's group.
func (h *Hub) Unsubscribe(c *Client, accountID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(c, accountID)
}

// leave requires h.mu held for writing.
func (h *Hub) leave(c *Client, accountID string) {
	delete(c.accounts, accountID)
	if group, ok := h.groups[accountID]; ok {
		delete(group, c)
		if len(group) == 0 {
			delete(h.groups, accountID)
		}
	}
}

// Publish sends an event to the clients subscribed to accountID.
func (h *Hub) Publish(accountID, event string, payload interface{}) {
	env := Envelope{Event: event, AccountID: accountID, Data: payload, SentAt: h.now()}

	h.mu.RLock()
	for c := range h.groups[accountID] {
		h.enqueue(c, env)
	}
	h.mu.RUnlock()

	h.toSinks(env)
}

// Broadcast sends an event to every client.
func (h *Hub) Broadcast(event string, payload interface{}) {
	env := Envelope{Event: event, Data: payload, SentAt: h.now()}

	h.mu.RLock()
	for c := range h.clients {
		h.enqueue(c, env)
	}
	h.mu.RUnlock()

	h.toSinks(env)
}

// send queues a frame for a single client.
func (h *Hub) send(c *Client, event string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		h.enqueue(c, Envelope{Event: event, Data: payload, SentAt: h.now()})
	}
}

// enqueue requires h.mu held. A full queue drops the frame.
func (h *Hub) enqueue(c *Client, env Envelope) {
	select {
	case c.send <- env:
	default:
		h.metrics.MessageDropped()
		h.log.Warnw("client queue full, dropping event", "event", env.Event, "account_id", env.AccountID)
	}
}

func (h *Hub) toSinks(env Envelope) {
	for _, s := range h.sinks {
		if err := s.Deliver(context.Background(), env); err != nil {
			h.log.Warnw("sink delivery failed", "event", env.Event, "error", err)
		}
	}
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of clients subscribed to accountID.
func (h *Hub) SubscriberCount(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[accountID])
}

// Close disconnects every client, refuses new ones and closes every sink.
// It is safe to call more than once.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.mu.Unlock()

	var first error
	for _, s := range h.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
