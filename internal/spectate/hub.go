// Package spectate serves the live match to read-only watchers over
// WebSocket, next to the Prometheus endpoint.
package spectate

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/netpong/internal/game"
	"github.com/1ureka/netpong/internal/util"
)

const (
	writeWait   = time.Second
	sendBacklog = 8 // snapshots queued per spectator before it starts missing some
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Snapshot is one message on the feed.
type Snapshot struct {
	Seq uint64 `json:"seq"`
	game.RenderState
}

// Hub fans match snapshots out to spectators. Publish never blocks the tick
// loop: a spectator that cannot keep up skips snapshots.
type Hub struct {
	mu      sync.Mutex
	clients map[*spectator]struct{}
	seq     uint64
	last    []byte
	closed  bool
}

type spectator struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*spectator]struct{})}
}

// Publish encodes rs once and queues it for every spectator.
func (h *Hub) Publish(rs game.RenderState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	h.seq++
	data, err := json.Marshal(Snapshot{Seq: h.seq, RenderState: rs})
	if err != nil {
		util.LogError("failed to encode snapshot: %v", err)
		return
	}
	h.last = data

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Len returns the number of connected spectators.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams snapshots until the spectator
// leaves. The latest snapshot is sent right away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &spectator{conn: conn, send: make(chan []byte, sendBacklog)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close(websocket.CloseGoingAway, "shutting down")
		return
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	n := len(h.clients)
	h.mu.Unlock()

	util.LogInfo("spectator joined from %s (%d watching)", r.RemoteAddr, n)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards anything the spectator sends and returns when it leaves.
func (h *Hub) readLoop(c *spectator) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *spectator) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.conn.Close()
			return
		}
	}
}

func (h *Hub) remove(c *spectator) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		close(c.send)
		util.LogDebug("spectator left")
	}
	c.conn.Close()
}

// Close disconnects every spectator and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*spectator]struct{})
	h.mu.Unlock()

	for c := range clients {
		close(c.send)
		c.close(websocket.CloseGoingAway, "match over")
	}
}

func (c *spectator) close(code int, reason string) {
	c.once.Do(func() {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		c.conn.Close()
	})
}
