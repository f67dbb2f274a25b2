package web

import (
	"encoding/json"
	"sync"

	"github.com/mhartlieb/pincore/internal/pins"
	"go.uber.org/zap"
)

// Event is one live-update message pushed to browser clients.
type Event struct {
	Type  string `json:"type"`
	Pin   int    `json:"pin,omitempty"`
	Mode  string `json:"mode,omitempty"`
	Value int    `json:"value,omitempty"`
}

// Hub maintains active WebSocket clients and broadcasts pin state changes.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan Event
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger,
	}
}

// Run starts the hub's main event loop.
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("WebSocket client registered",
				zap.String("remote_addr", client.conn.RemoteAddr().String()),
				zap.Int("total_clients", len(h.clients)))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("WebSocket client unregistered",
					zap.String("remote_addr", client.conn.RemoteAddr().String()),
					zap.Int("total_clients", len(h.clients)))
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("Failed to marshal broadcast event", zap.Error(err))
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Client send channel full - unregister slow/dead client
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("Client send buffer full, unregistering",
						zap.String("remote_addr", client.conn.RemoteAddr().String()))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues an event for all connected clients without blocking.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Hub broadcast channel full, event dropped",
			zap.String("event_type", event.Type))
	}
}

// PinChanged adapts the pin manager's change listener to a broadcast.
func (h *Hub) PinChanged(snap pins.Snapshot) {
	if snap.Pin < 0 {
		h.Broadcast(Event{Type: "pinsReset"})
		return
	}
	h.Broadcast(Event{Type: "pinState", Pin: snap.Pin, Mode: snap.Mode, Value: snap.Value})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
