package realtime

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/pulsechat/pulsechat/internal/chat"
	"github.com/pulsechat/pulsechat/internal/observability"
)

// Hub is the presence registry: at most one live connection per user,
// last-connect-wins. Nothing here is persisted; the map is rebuilt from
// scratch on every process start.
type Hub struct {
	log     *slog.Logger
	metrics *observability.Metrics

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub constructs a Hub. metrics may be nil.
func NewHub(log *slog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		log:     log,
		metrics: metrics,
		clients: make(map[string]*Client),
	}
}

// Register stores the mapping for the client's user, overwriting and closing
// any prior connection, then broadcasts the updated online set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if old, ok := h.clients[c.UserID]; ok {
		old.Close()
		h.metrics.ConnectionClosed()
	}
	h.clients[c.UserID] = c
	h.metrics.ConnectionOpened()
	h.broadcastOnlineLocked()
	h.mu.Unlock()

	if h.log != nil {
		h.log.Debug("presence registered", slog.String("user_id", c.UserID))
	}
}

// Unregister removes the mapping, but only while the given client is still
// the current one, so a stale disconnect never evicts a newer connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	current, ok := h.clients[c.UserID]
	if ok && current == c {
		delete(h.clients, c.UserID)
		h.metrics.ConnectionClosed()
		h.broadcastOnlineLocked()
	}
	h.mu.Unlock()
	c.Close()

	if ok && h.log != nil {
		h.log.Debug("presence unregistered", slog.String("user_id", c.UserID))
	}
}

// Lookup returns the live connection for the user, or nil.
func (h *Hub) Lookup(userID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[userID]
}

// OnlineUsers returns the sorted set of online user identifiers.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onlineLocked()
}

// FanOut pushes a persisted message to the recipient's connection if one is
// registered, and is a no-op otherwise. The message is already durable, so a
// missed push only means the recipient sees it on the next history fetch.
func (h *Hub) FanOut(msg chat.Message) {
	h.mu.RLock()
	recipient := h.clients[msg.RecipientID]
	h.mu.RUnlock()

	if recipient == nil {
		h.metrics.FanOutSkipped()
		return
	}
	if recipient.push(Envelope{Event: EventNewMessage, Data: msg}) {
		h.metrics.FanOutDelivered()
		return
	}
	h.metrics.FanOutSkipped()
	if h.log != nil {
		h.log.Warn("fan-out dropped, send queue full", slog.String("recipient", msg.RecipientID))
	}
}

// Close disconnects every registered client, for shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
		h.metrics.ConnectionClosed()
	}
}

func (h *Hub) onlineLocked() []string {
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) broadcastOnlineLocked() {
	env := Envelope{Event: EventOnlineUsers, Data: h.onlineLocked()}
	for _, c := range h.clients {
		c.push(env)
	}
}

var _ chat.MessagePusher = (*Hub)(nil)
