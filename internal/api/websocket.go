package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"autoloop/internal/events"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 * 1024
)

// wsHandler upgrades connections and streams engine events to them.
// Every connection receives the full event feed.
type wsHandler struct {
	upgrader  websocket.Upgrader
	publisher events.Publisher
	logger    *slog.Logger

	mu          sync.Mutex
	connections map[*wsConnection]struct{}
}

// wsConnection tracks a single websocket client.
type wsConnection struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	closed sync.Once
}

func newWSHandler(pub events.Publisher, logger *slog.Logger) *wsHandler {
	return &wsHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		publisher:   pub,
		logger:      logger,
		connections: make(map[*wsConnection]struct{}),
	}
}

// serveWS handles a websocket upgrade request.
func (h *wsHandler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &wsConnection{
		conn: conn,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.connections[c] = struct{}{}
	h.mu.Unlock()

	sub := h.publisher.Subscribe()
	go h.forwardEvents(c, sub)
	go h.readPump(c, sub)
	go h.writePump(c)
}

// forwardEvents copies the event feed into the connection's send queue.
// A slow client drops events rather than blocking the engine.
func (h *wsHandler) forwardEvents(c *wsConnection, sub <-chan events.Event) {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			select {
			case c.send <- payload:
			default:
			}
		}
	}
}

// readPump consumes client messages until the connection drops. Clients
// send nothing of consequence; the read loop exists to observe closure
// and answer pings.
func (h *wsHandler) readPump(c *wsConnection, sub <-chan events.Event) {
	defer func() {
		h.closeConnection(c)
		h.publisher.Unsubscribe(sub)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("websocket read error", "error", err)
			}
			return
		}
	}
}

// writePump writes queued messages and keepalive pings to the peer.
func (h *wsHandler) writePump(c *wsConnection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *wsHandler) closeConnection(c *wsConnection) {
	c.closed.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})

	h.mu.Lock()
	delete(h.connections, c)
	h.mu.Unlock()
}
