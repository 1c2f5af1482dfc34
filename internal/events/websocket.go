package events

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketHub broadcasts events to every connected subscriber. Slow or
// dead clients are dropped rather than allowed to stall the run.
type WebSocketHub struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	logger       *log.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

var _ Publisher = (*WebSocketHub)(nil)

// HubOption configures a WebSocketHub.
type HubOption func(*WebSocketHub)

// WithWriteTimeout bounds each client write.
func WithWriteTimeout(d time.Duration) HubOption {
	return func(h *WebSocketHub) {
		h.writeTimeout = d
	}
}

// WithHubLogger replaces the default logger.
func WithHubLogger(l *log.Logger) HubOption {
	return func(h *WebSocketHub) {
		h.logger = l
	}
}

// NewWebSocketHub creates a hub with no connected clients.
func NewWebSocketHub(opts ...HubOption) *WebSocketHub {
	h := &WebSocketHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeTimeout: 10 * time.Second,
		logger:       log.Default(),
		clients:      make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and registers the client. The read
// side is drained only to detect disconnects; subscribers are
// broadcast-only.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[events] upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Printf("[events] subscriber connected (%d active)", count)

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ClientCount returns the number of connected subscribers.
func (h *WebSocketHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish marshals the event once and writes it to every client.
func (h *WebSocketHub) Publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Printf("[events] dropping subscriber: %v", err)
			h.remove(conn)
		}
	}
	return nil
}

// Close disconnects every subscriber.
func (h *WebSocketHub) Close() error {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.clients = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	return nil
}

func (h *WebSocketHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		conn.Close()
	}
}
