// Package events broadcasts session lifecycle transitions to connected
// websocket clients. Adapted from the teacher's video-frame broadcast hub:
// same register/unregister/broadcast shape, repurposed to carry small JSON
// state-change messages instead of binary H.264 frames.
package events

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JuanCF/scrcpy-mcp/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// StateEvent is the JSON payload broadcast on every session transition.
type StateEvent struct {
	Serial string `json:"serial"`
	State  string `json:"state"`
	At     string `json:"at"`
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	closed atomic.Bool
}

func (c *client) trySend(msg []byte) {
	if c.closed.Load() {
		return
	}
	select {
	case c.send <- msg:
	default:
		select {
		case <-c.send:
			select {
			case c.send <- msg:
			default:
			}
		default:
		}
	}
}

// Hub fans session-state events out to every connected websocket client.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
}

// NewHub builds an unstarted Hub; call Run in a goroutine before serving
// connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run processes client registration until ctx-independent shutdown (the
// hub has no graceful stop; it lives for the process lifetime like the
// session manager it observes).
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			log.Printf("events: client connected (total: %d)", len(h.clients))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.closed.Store(true)
			}
			h.mu.Unlock()
			log.Printf("events: client disconnected (total: %d)", len(h.clients))
		}
	}
}

// Broadcast sends evt to every connected client.
func (h *Hub) Broadcast(evt StateEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("events: failed to marshal state event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.trySend(payload)
	}
}

// SessionStateChanged implements session.Observer.
func (h *Hub) SessionStateChanged(serial string, state session.State) {
	h.Broadcast(StateEvent{Serial: serial, State: state.String(), At: time.Now().UTC().Format(time.RFC3339)})
}

// ServeWS upgrades an HTTP request to a websocket connection and registers
// it with the hub. Clients are read-only: any inbound message is ignored
// except as a liveness signal.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("events: upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 32)}
	h.register <- c

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
