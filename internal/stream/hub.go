// Package stream holds the per-host real-time channel: an owned registry
// of open SSE connections, a poll loop feeding each connection, and the
// gin handler that ties them to the transport.
package stream

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Stream event types.
const (
	EventConnected          = "connected"
	EventNotification       = "notification"
	EventBookingUpdate      = "booking_update"
	EventHeartbeat          = "heartbeat"
	EventSystemAnnouncement = "system_announcement"
)

// ErrTooManyConnections is returned when the connection cap is reached.
// New connections beyond the cap are rejected, not queued.
var ErrTooManyConnections = errors.New("too many concurrent stream connections")

// Event is one typed message on a connection's outgoing queue.
type Event struct {
	Type string
	Data any
}

// Conn is a single client's registered stream connection with a bounded
// outgoing queue.
type Conn struct {
	hostID uuid.UUID
	ch     chan Event

	mu     sync.Mutex
	closed bool
	hub    *Hub
}

// Events returns the connection's outgoing queue. Closed on unregister.
func (c *Conn) Events() <-chan Event { return c.ch }

// Send enqueues an event without ever blocking. When the queue is full
// the oldest queued event is dropped in favour of the new one; the
// notification store remains the source of truth for anything dropped,
// so freshness wins over completeness here.
func (c *Conn) Send(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for {
		select {
		case c.ch <- evt:
			return
		default:
		}
		select {
		case old := <-c.ch:
			if old.Type != EventHeartbeat && c.hub != nil && c.hub.onDrop != nil {
				c.hub.onDrop()
			}
		default:
		}
	}
}

// Hub is the owned registry of open connections keyed by host. Insert on
// connect, remove on disconnect; nothing is left for garbage collection
// to find.
type Hub struct {
	mu        sync.Mutex
	byHost    map[uuid.UUID]map[*Conn]struct{}
	total     int
	maxConns  int
	queueSize int

	onDrop      func()
	onConnCount func(active int)
}

// NewHub creates a Hub. maxConns <= 0 falls back to 1000 concurrent
// connections, queueSize <= 0 to 64 queued events per connection.
func NewHub(maxConns, queueSize int) *Hub {
	if maxConns <= 0 {
		maxConns = 1000
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{
		byHost:    make(map[uuid.UUID]map[*Conn]struct{}),
		maxConns:  maxConns,
		queueSize: queueSize,
	}
}

// SetDropRecorder configures a callback fired when a non-heartbeat event
// is dropped from a slow connection's queue.
func (h *Hub) SetDropRecorder(fn func()) { h.onDrop = fn }

// SetConnGauge configures a callback fired with the active connection
// count after every register/unregister.
func (h *Hub) SetConnGauge(fn func(active int)) { h.onConnCount = fn }

// Register adds a connection for hostID, enforcing the global cap.
func (h *Hub) Register(hostID uuid.UUID) (*Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.total >= h.maxConns {
		return nil, ErrTooManyConnections
	}

	c := &Conn{hostID: hostID, ch: make(chan Event, h.queueSize), hub: h}
	set, ok := h.byHost[hostID]
	if !ok {
		set = make(map[*Conn]struct{})
		h.byHost[hostID] = set
	}
	set[c] = struct{}{}
	h.total++
	if h.onConnCount != nil {
		h.onConnCount(h.total)
	}
	return c, nil
}

// Unregister removes a connection and closes its queue. Safe to call
// more than once.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	if set, ok := h.byHost[c.hostID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			h.total--
			if len(set) == 0 {
				delete(h.byHost, c.hostID)
			}
			if h.onConnCount != nil {
				h.onConnCount(h.total)
			}
		}
	}
	h.mu.Unlock()

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
	c.mu.Unlock()
}

// Broadcast sends an event to every connected client across all hosts.
// Used for system announcements.
func (h *Hub) Broadcast(evt Event) {
	h.mu.Lock()
	conns := make([]*Conn, 0, h.total)
	for _, set := range h.byHost {
		for c := range set {
			conns = append(conns, c)
		}
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Send(evt)
	}
}

// Connections returns the number of open connections.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}
