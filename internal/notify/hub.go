// Package notify delivers real-time message events to signed-in browsers
// over WebSocket, with web push as the offline channel.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event is the JSON pushed to a recipient's open connections when something
// in their inbox changes.
type Event struct {
	Type     string `json:"type"`
	SenderID int64  `json:"sender_id,omitempty"`
	Preview  string `json:"preview,omitempty"`
	Unread   int    `json:"unread,omitempty"`
}

// Hub tracks open WebSocket connections keyed by account, so events route to
// one person rather than broadcasting to the whole process.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.accountID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.accountID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.accountID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.accountID)
		}
	}
	h.mu.Unlock()
}

// Notify sends the event to every open connection the account has. A slow
// connection's buffer being full drops the event for that connection only.
func (h *Hub) Notify(accountID int64, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal notify event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[accountID] {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Connected reports whether the account has at least one open connection.
// Used to skip web push when the recipient is already looking at the app.
func (h *Hub) Connected(accountID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[accountID]) > 0
}

// ConnectionCount returns the number of open connections across all accounts.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
