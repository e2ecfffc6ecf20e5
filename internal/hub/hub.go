// Package hub is the registry of open live-delivery connections and the
// fan-out point for change notifications. Each connection is a long-lived
// SSE stream, optionally bound to a display id; the hub broadcasts or
// display-scoped-casts named events to it.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Event is one message on the wire: a named event plus a JSON payload,
// stamped with the server time at enqueue.
type Event struct {
	Name      string    `json:"name"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Connection is one registered client. The transport drains Events until
// it closes; a transport that dies calls CloseTransport so queued sends
// start failing immediately.
type Connection struct {
	ID        string
	DisplayID *int

	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Events is the stream the transport writes to the client.
func (c *Connection) Events() <-chan Event { return c.events }

// Done closes when the connection is deregistered or its transport died.
func (c *Connection) Done() <-chan struct{} { return c.done }

// CloseTransport marks the connection dead. Idempotent.
func (c *Connection) CloseTransport() {
	c.once.Do(func() { close(c.done) })
}

// push is best-effort: a dead transport or a full buffer is a failure, and
// neither blocks the caller.
func (c *Connection) push(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

const (
	connectionBuffer  = 64
	KeepaliveInterval = 30 * time.Second
)

// Hub owns the connection registry. It is constructed once per process and
// handed to the components that deliver through it. The clock and the
// keepalive ticker interval are injectable for deterministic tests.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	now       func() time.Time
	keepalive time.Duration
}

func New() *Hub {
	return &Hub{
		conns:     make(map[string]*Connection),
		now:       time.Now,
		keepalive: KeepaliveInterval,
	}
}

// WithClock substitutes the hub's clock. Tests only.
func (h *Hub) WithClock(now func() time.Time) *Hub {
	h.now = now
	return h
}

// WithKeepalive overrides the keepalive cadence. Tests only.
func (h *Hub) WithKeepalive(d time.Duration) *Hub {
	h.keepalive = d
	return h
}

// Register adds a connection, optionally bound to a display, and queues the
// initial "connected" event. Registering an id that is already present
// replaces the old connection.
func (h *Hub) Register(connID string, displayID *int) *Connection {
	conn := &Connection{
		ID:        connID,
		DisplayID: displayID,
		events:    make(chan Event, connectionBuffer),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	if old, ok := h.conns[connID]; ok {
		old.CloseTransport()
	}
	h.conns[connID] = conn
	h.mu.Unlock()

	conn.push(Event{Name: "connected", Payload: map[string]any{"connection_id": connID}, Timestamp: h.now()})

	ev := log.Info().Str("connection_id", connID)
	if displayID != nil {
		ev = ev.Int("display_id", *displayID)
	}
	ev.Msg("live connection registered")
	return conn
}

// Deregister removes the connection and marks it dead. Idempotent.
func (h *Hub) Deregister(connID string) {
	h.mu.Lock()
	conn, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
	}
	h.mu.Unlock()

	if ok {
		conn.CloseTransport()
		log.Info().Str("connection_id", connID).Msg("live connection deregistered")
	}
}

// deregisterConn removes a connection known by pointer. The registry entry
// is dropped only while it still maps the id to this exact connection, so
// an id that was re-registered in the meantime keeps its fresh connection.
func (h *Hub) deregisterConn(conn *Connection) {
	h.mu.Lock()
	current := h.conns[conn.ID] == conn
	if current {
		delete(h.conns, conn.ID)
	}
	h.mu.Unlock()

	conn.CloseTransport()
	if current {
		log.Info().Str("connection_id", conn.ID).Msg("live connection deregistered")
	}
}

// Send delivers one event to one connection. On failure the connection is
// deregistered and false is returned.
func (h *Hub) Send(connID, name string, payload any) bool {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if !conn.push(Event{Name: name, Payload: payload, Timestamp: h.now()}) {
		h.deregisterConn(conn)
		return false
	}
	return true
}

// Broadcast sends to every registered connection and reports how many
// sends succeeded and failed. Failed connections are deregistered. Never
// panics regardless of connection state.
func (h *Hub) Broadcast(name string, payload any) (succeeded, failed int) {
	ev := Event{Name: name, Payload: payload, Timestamp: h.now()}

	h.mu.RLock()
	snapshot := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		snapshot = append(snapshot, conn)
	}
	h.mu.RUnlock()

	for _, conn := range snapshot {
		if conn.push(ev) {
			succeeded++
		} else {
			failed++
			h.deregisterConn(conn)
		}
	}
	if failed > 0 {
		log.Warn().Str("event", name).Int("failed", failed).Msg("broadcast dropped dead connections")
	}
	return succeeded, failed
}

// CastToDisplay sends only to connections bound to the display.
func (h *Hub) CastToDisplay(displayID int, name string, payload any) (succeeded, failed int) {
	ev := Event{Name: name, Payload: payload, Timestamp: h.now()}

	h.mu.RLock()
	snapshot := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		if conn.DisplayID != nil && *conn.DisplayID == displayID {
			snapshot = append(snapshot, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range snapshot {
		if conn.push(ev) {
			succeeded++
		} else {
			failed++
			h.deregisterConn(conn)
		}
	}
	return succeeded, failed
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Keepalive pushes one heartbeat frame to every connection. Exposed so
// tests can drive liveness without a ticker.
func (h *Hub) Keepalive() {
	h.Broadcast("heartbeat", map[string]any{"server_time": h.now().UTC()})
}

// Run emits keepalives on the configured cadence until the context ends.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Keepalive()
		}
	}
}
