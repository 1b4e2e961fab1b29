// Package sse provides Server-Sent Events helpers for streaming
// discovery progress to clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SSE header constants.
const (
	headerContentType              = "Content-Type"
	headerCacheControl             = "Cache-Control"
	headerConnection               = "Connection"
	headerXAccelBuffering          = "X-Accel-Buffering"
	headerAccessControlAllowOrigin = "Access-Control-Allow-Origin"

	contentType = "text/event-stream"
)

// Event types emitted on discovery streams.
const (
	EventTypeConnected = "connected"
	EventTypeProgress  = "discovery:progress"
	EventTypeCompleted = "discovery:completed"
	EventTypeError     = "discovery:error"
)

// DefaultHeartbeatInterval keeps idle connections alive through
// proxies that drop quiet streams.
const DefaultHeartbeatInterval = 15 * time.Second

// Event represents a Server-Sent Event.
// Format: event: <Type>\ndata: <JSON payload>\n\n
type Event struct {
	// Type is the event type (e.g., "discovery:progress")
	Type string `json:"type"`
	// Data is the JSON payload (must be JSON-serializable)
	Data any `json:"data"`
	// ID is an optional event ID for client-side tracking
	ID string `json:"id,omitempty"`
	// Retry tells the client how long to wait before reconnecting (milliseconds)
	Retry int `json:"retry,omitempty"`
}

// NewConnectedEvent creates the initial handshake event for a stream.
func NewConnectedEvent(discoveryID string) Event {
	return Event{
		Type: EventTypeConnected,
		Data: map[string]any{
			"discovery_id": discoveryID,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// SetHeaders sets the standard SSE headers on a response writer.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set(headerContentType, contentType)
	w.Header().Set(headerCacheControl, "no-cache")
	w.Header().Set(headerConnection, "keep-alive")
	w.Header().Set(headerXAccelBuffering, "no")
	w.Header().Set(headerAccessControlAllowOrigin, "*")
}

type flusher interface {
	Flush()
}

// WriteEvent writes one SSE event to the response writer and flushes
// it so the client sees the update immediately.
func WriteEvent(w http.ResponseWriter, event Event) error {
	if event.Type != "" {
		if _, writeErr := fmt.Fprintf(w, "event: %s\n", event.Type); writeErr != nil {
			return fmt.Errorf("write event type: %w", writeErr)
		}
	}

	if event.ID != "" {
		if _, writeErr := fmt.Fprintf(w, "id: %s\n", event.ID); writeErr != nil {
			return fmt.Errorf("write event id: %w", writeErr)
		}
	}

	if event.Retry > 0 {
		if _, writeErr := fmt.Fprintf(w, "retry: %d\n", event.Retry); writeErr != nil {
			return fmt.Errorf("write retry: %w", writeErr)
		}
	}

	dataJSON, marshalErr := json.Marshal(event.Data)
	if marshalErr != nil {
		return fmt.Errorf("marshal event data: %w", marshalErr)
	}

	if _, writeErr := fmt.Fprintf(w, "data: %s\n\n", dataJSON); writeErr != nil {
		return fmt.Errorf("write event data: %w", writeErr)
	}

	if f, ok := w.(flusher); ok {
		f.Flush()
	}
	return nil
}

// WriteHeartbeat writes an SSE comment to keep the connection alive.
func WriteHeartbeat(w http.ResponseWriter) error {
	if _, writeErr := fmt.Fprintf(w, ": heartbeat %s\n\n", time.Now().UTC().Format(time.RFC3339)); writeErr != nil {
		return fmt.Errorf("write heartbeat: %w", writeErr)
	}
	if f, ok := w.(flusher); ok {
		f.Flush()
	}
	return nil
}
