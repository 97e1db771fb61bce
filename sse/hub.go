package sse

import (
	"path/filepath"
	"sync"

	"github.com/kbukum/mediaflow/logger"
)

const clientBuffer = 256

// Client is one connected event stream.
type Client struct {
	id     string
	events chan Event
	log    *logger.Logger
}

// NewClient creates a client with a buffered event channel.
func NewClient(id string) *Client {
	return &Client{
		id:     id,
		events: make(chan Event, clientBuffer),
		log:    logger.Get("sse"),
	}
}

// ID returns the client id matched against publish patterns.
func (c *Client) ID() string { return c.id }

// Events returns the channel the client's events arrive on. It is closed
// when the client is unregistered or the hub stops.
func (c *Client) Events() <-chan Event { return c.events }

// Send queues e without blocking. It reports false when the client is
// too slow and the event was dropped.
func (c *Client) Send(e Event) bool {
	select {
	case c.events <- e:
		return true
	default:
		c.log.Warn("client buffer full, dropping event", logger.Fields("client_id", c.id, "type", e.Type))
		return false
	}
}

func (c *Client) close() { close(c.events) }

type message struct {
	pattern string
	event   Event
}

// Hub routes events to registered clients. Run must be running for
// Register, Unregister and Publish to make progress.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *logger.Logger
}

// NewHub creates a hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, clientBuffer),
		done:       make(chan struct{}),
		log:        logger.Get("sse"),
	}
}

// Run processes registrations and publications until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client registered", logger.Fields("client_id", c.id, logger.FieldCount, n))
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				c.close()
			}
			h.mu.Unlock()
		case m := <-h.broadcast:
			h.deliver(m)
		}
	}
}

// Stop closes every client and makes Run return. Later calls are no-ops.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds c. It reports false when the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c and closes its channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish sends e to every client whose id matches the glob pattern.
func (h *Hub) Publish(pattern string, e Event) {
	select {
	case h.broadcast <- message{pattern: pattern, event: e}:
	case <-h.done:
	}
}

func (h *Hub) deliver(m message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		matched, err := filepath.Match(m.pattern, id)
		if err != nil {
			h.log.Error("bad publish pattern", logger.Fields("pattern", m.pattern, logger.FieldError, err.Error()))
			return
		}
		if matched {
			c.Send(m.event)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var _ Broadcaster = (*Hub)(nil)
