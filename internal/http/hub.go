package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"eeg-action-service/internal/models"
	"eeg-action-service/internal/observability/logging"
	"eeg-action-service/internal/observability/metrics"
)

const writeWait = 5 * time.Second

// Hub fans session events out to websocket subscribers.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewHub creates a hub. Call Run before serving subscribers.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // operator console may be served from another origin
			},
		},
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("hub"),
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
				h.metrics.RecordSubscriber(-1)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.RecordSubscriber(1)
			h.logger.Info().Int("clients", n).Msg("Subscriber connected")

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					h.logger.Warn().Err(err).Msg("Subscriber write failed")
					conn.Close()
					delete(h.clients, conn)
					h.metrics.RecordSubscriber(-1)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		conn.Close()
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.metrics.RecordSubscriber(-1)
		h.logger.Info().Int("clients", n).Msg("Subscriber disconnected")
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify queues a session event for broadcast. It never blocks; events are
// dropped while the queue is full.
func (h *Hub) Notify(event models.Event) {
	b, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("eventType", event.Type()).Msg("Failed to encode event")
		return
	}
	h.Broadcast(b)
}

// Broadcast queues a raw JSON message for every subscriber.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn().Msg("Broadcast queue full, dropping event")
	}
}

// ServeWS upgrades the request and subscribes the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	// Reads only detect disconnects
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
