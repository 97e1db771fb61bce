package sse

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/mediaflow/logger"
)

// KeepAlive is the interval between comment frames on idle streams.
var KeepAlive = 30 * time.Second

// StreamOption configures ServeSSE.
type StreamOption func(*stream)

type stream struct {
	initial func() []Event
	closeOn map[string]bool
}

// WithInitial writes the events returned by fn right after the client
// registers, so state read by fn cannot miss a concurrent publication.
func WithInitial(fn func() []Event) StreamOption {
	return func(s *stream) { s.initial = fn }
}

// WithCloseOn ends the stream after writing an event of one of the types.
func WithCloseOn(types ...string) StreamOption {
	return func(s *stream) {
		for _, t := range types {
			s.closeOn[t] = true
		}
	}
}

// ServeSSE registers a client with id on hub and streams its events to w.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, id string, opts ...StreamOption) {
	log := logger.Get("sse")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	s := &stream{closeOn: map[string]bool{}}
	for _, opt := range opts {
		opt(s)
	}

	// Streams outlive the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("cannot clear write deadline", logger.Fields("client_id", id, logger.FieldError, err.Error()))
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	client := NewClient(id)
	if !hub.Register(client) {
		http.Error(w, "event hub stopped", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	write := func(e Event) bool {
		_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, e.Data)
		flusher.Flush()
		return s.closeOn[e.Type]
	}
	if write(Event{Type: EventConnected, Data: []byte(fmt.Sprintf("{%q:%q}", "client_id", id))}) {
		return
	}
	if s.initial != nil {
		for _, e := range s.initial() {
			if write(e) {
				return
			}
		}
	}

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-client.Events():
			if !ok || write(e) {
				return
			}
		case <-ticker.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}
