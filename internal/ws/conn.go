package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// Conn wraps a websocket connection with a stable ID and serialized writes.
// The read side is owned by the serve loop; send may be called from any
// goroutine.
type Conn struct {
	id   string
	sock *websocket.Conn

	wmu sync.Mutex
}

func newConn(id string, sock *websocket.Conn) *Conn {
	return &Conn{id: id, sock: sock}
}

func (c *Conn) send(event string, payload any) error {
	data, err := marshalRaw(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, c.sock, Envelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

// Hub is the registry of live connections. It implements relay.Emitter.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Conn)}
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

func (h *Hub) get(id string) (*Conn, bool) {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	return c, ok
}

// Len reports the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Emit sends a named event to a single connection. Unknown connections are
// not an error worth propagating to game logic; the emit is dropped.
func (h *Hub) Emit(connID, event string, payload any) error {
	c, ok := h.get(connID)
	if !ok {
		return fmt.Errorf("emit %s: no connection %s", event, connID)
	}
	return c.send(event, payload)
}
