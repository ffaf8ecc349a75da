package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub maintains the set of connected peers and re-broadcasts every inbound
// event to all of them, the sender included. It holds no entity state and
// performs no routing or payload filtering; family-code authorization happens
// on the subscriber side.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	tap     func(Event)
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// SetTap registers a callback invoked for every inbound event before it is
// broadcast. The server uses it for SOS push fan-out and presence tracking.
// Must be set before the hub accepts connections.
func (h *Hub) SetTap(fn func(Event)) {
	h.tap = fn
}

// Register adds a client to the broadcast set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Receive handles an event read from any peer: it runs the tap, then
// broadcasts to every connected peer including the one that sent it.
func (h *Hub) Receive(ev Event) {
	if h.tap != nil {
		h.tap(ev)
	}
	h.Broadcast(ev)
}

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full: drop for this client rather than block
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
