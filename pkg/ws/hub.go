package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rajpalom13/move-meal-sub001/pkg/id"
)

// Conn wraps a websocket connection with room membership metadata.
type Conn struct {
	ws     *websocket.Conn
	UserID string

	mu       sync.Mutex // guards writes and lastSeen
	lastSeen time.Time
	rooms    map[string]struct{}
}

// Touch records pong/read activity for heartbeat eviction.
func (c *Conn) Touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *Conn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *Conn) ping(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, []byte{}, deadline)
}

type event struct {
	ID      string      `json:"id"`
	Name    string      `json:"event"`
	Payload interface{} `json:"data"`
}

// Hub is the process-wide room registry. Rooms are plain string keys
// (user:<id>, cluster:<id>, vendor:<id>, rider:<id>); a connection may sit in
// any number of rooms and is pulled out of all of them on disconnect.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
	conns map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Conn]struct{}),
		conns: make(map[*Conn]struct{}),
	}
}

// Add registers a freshly upgraded connection.
func (h *Hub) Add(userID string, wsConn *websocket.Conn) *Conn {
	c := &Conn{
		ws:       wsConn,
		UserID:   userID,
		lastSeen: time.Now(),
		rooms:    make(map[string]struct{}),
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	total := len(h.conns)
	h.mu.Unlock()

	log.Printf("WS connected: user=%s (total=%d)", userID, total)
	return c
}

// Join subscribes the connection to a room.
func (h *Hub) Join(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; !ok {
		return
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Conn]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Leave unsubscribes the connection from a room.
func (h *Hub) Leave(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Conn, room string) {
	if conns, ok := h.rooms[room]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// Remove drops the connection from every room and closes it.
func (h *Hub) Remove(c *Conn) {
	h.mu.Lock()
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	delete(h.conns, c)
	h.mu.Unlock()

	_ = c.ws.Close()
	log.Printf("WS disconnected: user=%s", c.UserID)
}

// Broadcast pushes an event to every live subscriber of the room. Delivery is
// at-most-once: write failures evict the connection and are never surfaced to
// the caller.
func (h *Hub) Broadcast(room, name string, payload interface{}) int {
	msg := event{ID: id.NewULID(), Name: name, Payload: payload}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if err := c.writeJSON(msg); err != nil {
			log.Printf("WS send failed room=%s user=%s: %v", room, c.UserID, err)
			go h.Remove(c)
			continue
		}
		sent++
	}
	return sent
}

// RoomSize returns the live subscriber count for a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ConnCount returns the number of live connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Heartbeat pings all connections on the interval and evicts any that have
// been silent for more than one interval. Blocks until stop is closed.
func (h *Hub) Heartbeat(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		h.mu.RLock()
		conns := make([]*Conn, 0, len(h.conns))
		for c := range h.conns {
			conns = append(conns, c)
		}
		h.mu.RUnlock()

		for _, c := range conns {
			c.mu.Lock()
			stale := time.Since(c.lastSeen) > interval
			c.mu.Unlock()
			if stale {
				go h.Remove(c)
				continue
			}
			_ = c.ping(time.Now().Add(time.Second))
		}
	}
}

// Shutdown closes every live connection. Called when the service drains.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.Remove(c)
	}
}
