package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/AngelLalu20/hydro-hero/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from the appliance itself; cross-origin
	// checks add nothing on a single-host device.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans live frames out to connected dashboard clients.
type Hub struct {
	log        *logrus.Logger
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client: drop it rather than block the hub.
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// BroadcastAlert pushes a fired alert to every client.
func (h *Hub) BroadcastAlert(a store.Alert) {
	h.send("alert", struct {
		store.Alert
		Text string `json:"text"`
	}{a, a.Message()})
}

// BroadcastFrame pushes an arbitrary typed payload (flow frames, status).
func (h *Hub) BroadcastFrame(kind string, payload any) {
	h.send(kind, payload)
}

func (h *Hub) send(kind string, payload any) {
	msg, err := json.Marshal(map[string]any{"type": kind, "payload": payload})
	if err != nil {
		h.log.WithError(err).Error("websocket marshal failed")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		// Hub congested; live frames are best-effort.
	}
}

// ServeWS upgrades a dashboard connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 32)}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump discards inbound frames; the stream is one-way. It exists to
// notice the close handshake.
func (c *client) readPump(h *Hub) {
	defer func() { h.unregister <- c }()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
