package sse

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lendledger/lendledger/internal/domain/notification"
)

// Hub manages SSE clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*notification.SSEClient
}

var _ notification.SSEHub = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*notification.SSEClient),
	}
}

// Register adds client. A client already holding the same ID is closed so
// its stream ends.
func (h *Hub) Register(client *notification.SSEClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[client.ClientID]; ok && old != client {
		old.Close()
	}
	h.clients[client.ClientID] = client
}

// Unregister removes client if it is still the one registered under its ID.
func (h *Hub) Unregister(client *notification.SSEClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[client.ClientID]; ok && c == client {
		c.Close()
		delete(h.clients, client.ClientID)
	}
}

// BroadcastToUser queues message on every connection of userID and returns
// how many accepted it. Full channels drop the message.
func (h *Hub) BroadcastToUser(userID uuid.UUID, message *notification.SSEMessage) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for _, c := range h.clients {
		if c.UserID == userID && trySend(c, message) {
			sent++
		}
	}
	return sent
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}

func trySend(c *notification.SSEClient, msg *notification.SSEMessage) bool {
	select {
	case c.MessageChan <- msg:
		return true
	default:
		return false
	}
}
