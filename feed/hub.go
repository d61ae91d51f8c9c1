// Package feed pushes order events to connected admin dashboards over
// websockets.
package feed

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const sendBuffer = 16

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// client owns one connection. Only its writePump writes to conn.
type client struct {
	conn     *websocket.Conn
	username string
	send     chan []byte
}

// Hub holds the connected admin clients. Broadcast only queues messages, so a
// slow dashboard never holds up the request that produced the event. A client
// whose queue is full is dropped.
type Hub struct {
	clients      map[*websocket.Conn]*client
	mutex        sync.Mutex
	log          logrus.FieldLogger
	writeTimeout time.Duration
}

func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		clients:      make(map[*websocket.Conn]*client),
		log:          log,
		writeTimeout: 5 * time.Second,
	}
}

func (h *Hub) Register(conn *websocket.Conn, username string) {
	c := &client{conn: conn, username: username, send: make(chan []byte, sendBuffer)}

	h.mutex.Lock()
	h.clients[conn] = c
	h.mutex.Unlock()

	h.log.WithField("username", username).Debug("feed client connected")
	go h.writePump(c)
}

// Unregister is safe to call more than once.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.drop(conn)
}

// drop expects h.mutex to be held. Closing send stops the writePump, which
// then closes the connection.
func (h *Hub) drop(conn *websocket.Conn) {
	c, ok := h.clients[conn]
	if !ok {
		return
	}
	delete(h.clients, conn)
	close(c.send)
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()

	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.WithError(err).WithField("username", c.username).Warn("dropping feed client")
			h.Unregister(c.conn)
			// drain until drop closes the channel
			for range c.send {
			}
			return
		}
	}

	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(time.Second))
}

func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Broadcast queues an event for every client without blocking.
func (h *Hub) Broadcast(event string, data interface{}) {
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("marshal feed message")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.log.WithField("username", c.username).Warn("feed client too slow, dropping")
			h.drop(conn)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.clients {
		h.drop(conn)
	}
}
