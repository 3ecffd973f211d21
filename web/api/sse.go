package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// SSEEvent represents a server-sent event
type SSEEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SSEHub fans events out to SSE and WebSocket subscribers. Subscribing
// works before Run is started, delivery does not.
type SSEHub struct {
	mu      sync.Mutex
	clients map[chan SSEEvent]bool
	events  chan SSEEvent
}

// NewSSEHub creates a new SSE hub
func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[chan SSEEvent]bool),
		events:  make(chan SSEEvent),
	}
}

// Subscribe registers a listener with room for a short burst of events
func (h *SSEHub) Subscribe() chan SSEEvent {
	ch := make(chan SSEEvent, 8)
	h.mu.Lock()
	h.clients[ch] = true
	h.mu.Unlock()
	return ch
}

// Unsubscribe drops the listener and closes its channel
func (h *SSEHub) Unsubscribe(ch chan SSEEvent) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Run delivers broadcast events to every subscriber
func (h *SSEHub) Run() {
	for event := range h.events {
		h.mu.Lock()
		for ch := range h.clients {
			select {
			case ch <- event:
			default:
				// Subscriber stopped draining its buffer, drop it
				close(ch)
				delete(h.clients, ch)
			}
		}
		h.mu.Unlock()
	}
}

// Broadcast sends an event to all clients
func (h *SSEHub) Broadcast(event SSEEvent) {
	h.events <- event
}

func writeSSE(w io.Writer, event SSEEvent) {
	data, _ := json.Marshal(event.Data)
	fmt.Fprintf(w, "event: %s\n", event.Type)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Server) sseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		client := s.sseHub.Subscribe()

		notify := r.Context().Done()
		go func() {
			<-notify
			s.sseHub.Unsubscribe(client)
		}()

		// Initial state so the dashboard renders before the first change
		writeSSE(w, SSEEvent{Type: "state", Data: stateToResponse(s.ctrl.Snapshot())})
		flusher.Flush()

		for event := range client {
			writeSSE(w, event)
			flusher.Flush()
		}
	}
}
