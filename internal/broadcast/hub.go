// Package broadcast is the realtime push boundary: a websocket hub with
// named groups. Publishing is fire and forget — slow or dead subscribers
// are dropped, and no publish failure ever propagates to the caller.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checking belongs to the deployment's reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type Hub struct {
	log *logrus.Logger

	mu     sync.RWMutex
	groups map[string]map[*client]struct{}
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		log:    log,
		groups: make(map[string]map[*client]struct{}),
	}
}

// Join upgrades the request to a websocket and subscribes it to group
// until the peer disconnects.
func (h *Hub) Join(group string, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}

	h.mu.Lock()
	if h.groups[group] == nil {
		h.groups[group] = make(map[*client]struct{})
	}
	h.groups[group][c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(group, c)
	return nil
}

// CommentCreated satisfies the comment subsystem's Broadcaster interface.
func (h *Hub) CommentCreated(group string, payload any) {
	h.Publish(group, payload)
}

// Publish fans payload out to every subscriber of group. Subscribers whose
// buffers are full are disconnected rather than awaited.
func (h *Hub) Publish(group string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		if h.log != nil {
			h.log.WithError(err).WithField("group", group).Warn("broadcast marshal failed")
		}
		return
	}

	h.mu.RLock()
	subscribers := make([]*client, 0, len(h.groups[group]))
	for c := range h.groups[group] {
		subscribers = append(subscribers, c)
	}
	h.mu.RUnlock()

	for _, c := range subscribers {
		select {
		case c.send <- data:
		default:
			h.drop(group, c)
		}
	}
}

func (h *Hub) drop(group string, c *client) {
	h.mu.Lock()
	if subs, ok := h.groups[group]; ok {
		if _, ok := subs[c]; ok {
			delete(subs, c)
			close(c.send)
			if len(subs) == 0 {
				delete(h.groups, group)
			}
		}
	}
	h.mu.Unlock()
}

func (h *Hub) readPump(group string, c *client) {
	defer func() {
		h.drop(group, c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Subscribers only listen; any inbound frame besides control frames is
	// discarded.
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
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
