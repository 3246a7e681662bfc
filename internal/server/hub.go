package server

import (
	"sync"
	"time"
)

// Hub tracks connected websocket clients and fans messages out to
// them. Slow clients drop messages rather than stall the broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// ClientCount returns the number of currently subscribed clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastStateUpdate sends a fresh summary to every connected client.
func (h *Hub) BroadcastStateUpdate(state string, at time.Time) {
	payload := marshalEvent(StateUpdateEvent{
		Event: newEvent("state_update", at),
		State: state,
	})
	if payload != nil {
		h.Broadcast(payload)
	}
}
