package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"campusmart/pkg/domain"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 32
)

// Hub fans stored messages out to the open websocket connections of their
// sender and receiver.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*wsClient]struct{}
}

type wsClient struct {
	email string
	conn  *websocket.Conn
	send  chan []byte
}

type wsEvent struct {
	Type    string         `json:"type"`
	Message domain.Message `json:"message"`
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*wsClient]struct{})}
}

// Publish implements app.MessagePublisher. Slow clients whose buffer is full
// miss the event; they can reload history.
func (h *Hub) Publish(msg domain.Message) {
	payload, err := json.Marshal(wsEvent{Type: "message", Message: msg})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, email := range []string{msg.Receiver, msg.Sender} {
		for c := range h.conns[email] {
			select {
			case c.send <- payload:
			default:
				slog.Warn("ws_send_dropped", "email", email, "message_id", msg.ID)
			}
		}
	}
}

// Connected reports how many live connections email has.
func (h *Hub) Connected(email string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[email])
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[c.email]
	if set == nil {
		set = make(map[*wsClient]struct{})
		h.conns[c.email] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[c.email]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.conns, c.email)
		}
	}
}

// serve upgrades the request and pumps events until the peer goes away.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, email string, upgrader *websocket.Upgrader) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &wsClient{email: email, conn: conn, send: make(chan []byte, wsSendBuffer)}
	h.register(c)
	go c.writePump()
	c.readPump(h)
	return nil
}

// readPump discards inbound frames; it exists to process pongs and notice closes.
func (c *wsClient) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// newUpgrader checks Origin against the CORS allowlist; an empty list keeps
// gorilla's same-host check.
func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	u := &websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096}
	origins := make([]string, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) > 0 {
		u.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(origins, r.Header.Get("Origin"))
		}
	}
	return u
}
