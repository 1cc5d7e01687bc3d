package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/tasklens/backend/internal/storage"
)

// WebSocket event types pushed to subscribers
const (
	MsgTypeSliceUpdate     = "slice:update"
	MsgTypeInstanceRemoved = "instance:removed"
)

// WSEvent is one message of the live overlay-change feed.
type WSEvent struct {
	Type        string `json:"type"`
	InstanceKey string `json:"instanceKey"`
	Slice       string `json:"slice,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

const (
	wsWriteWait      = 10 * time.Second
	wsSendBufferSize = 16
)

// Hub fans change events out to every connected websocket client. A client
// that cannot keep up is dropped rather than allowed to stall the rest.
type Hub struct {
	mu      sync.Mutex
	clients map[string]chan WSEvent

	upgrader websocket.Upgrader
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]chan WSEvent),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same trust domain as the REST API; origin checks happen at
			// the CORS layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// BroadcastSliceUpdate implements Broadcaster.
func (h *Hub) BroadcastSliceUpdate(instanceKey string, slice storage.Slice) {
	h.broadcast(WSEvent{
		Type:        MsgTypeSliceUpdate,
		InstanceKey: instanceKey,
		Slice:       string(slice),
		Timestamp:   time.Now().UnixMilli(),
	})
}

// BroadcastInstanceRemoved implements Broadcaster.
func (h *Hub) BroadcastInstanceRemoved(instanceKey string) {
	h.broadcast(WSEvent{
		Type:        MsgTypeInstanceRemoved,
		InstanceKey: instanceKey,
		Timestamp:   time.Now().UnixMilli(),
	})
}

func (h *Hub) broadcast(event WSEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, send := range h.clients {
		select {
		case send <- event:
		default:
			// Slow consumer; drop it.
			close(send)
			delete(h.clients, id)
			fmt.Printf("[WS] Dropped slow client %s\n", id[:8])
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the connection and streams change events until
// the client goes away.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return NewBadRequestError("websocket upgrade failed", err)
	}

	id := uuid.New().String()
	send := make(chan WSEvent, wsSendBufferSize)

	h.mu.Lock()
	h.clients[id] = send
	h.mu.Unlock()
	fmt.Printf("[WS] Client %s connected\n", id[:8])

	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[id]; ok {
			close(send)
			delete(h.clients, id)
		}
		h.mu.Unlock()
		conn.Close()
		fmt.Printf("[WS] Client %s disconnected\n", id[:8])
	}()

	// Reader goroutine: we never expect client messages, but reading is
	// what surfaces the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-send:
			if !ok {
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}
