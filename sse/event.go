package sse

// Event types sent by the package itself.
const (
	EventConnected = "connected"
	EventError     = "error"
)

// Event is one SSE frame.
type Event struct {
	Type string
	Data []byte
}

// Broadcaster publishes events to clients matching a pattern.
type Broadcaster interface {
	Publish(pattern string, e Event)
}
