// Package sse delivers Server-Sent Events to HTTP clients.
//
// A Hub routes published events to connected clients whose id matches a
// glob pattern. ServeSSE streams one client's events until the request
// ends, the hub stops, or a closing event is written.
//
//	hub := sse.NewHub()
//	go hub.Run()
//	defer hub.Stop()
//	hub.Publish("job:42:*", sse.Event{Type: "status", Data: data})
package sse
