package server

import (
	"encoding/json"
	"log"
	"time"
)

const EventVersion = 1

// Event is the envelope on every server-to-client message. Timestamp
// carries the payload's own time: lastUpdate for state events, capture
// time for photo acknowledgements.
type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

// ConnectedEvent welcomes a new client with the current state so a
// late joiner is not left blank.
type ConnectedEvent struct {
	Event
	Message string `json:"message"`
	State   string `json:"state"`
}

// StateUpdateEvent carries the current summary text; broadcast on each
// successful periodic cycle and sent directly for request_state.
type StateUpdateEvent struct {
	Event
	State string `json:"state"`
}

// PhotoSavedEvent acknowledges a stored photo to the capturing client.
type PhotoSavedEvent struct {
	Event
	Filename string `json:"filename"`
}

// PhotoErrorEvent reports a failed photo capture to the capturing
// client.
type PhotoErrorEvent struct {
	Event
	Error string `json:"error"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

func marshalEvent(event any) []byte {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return nil
	}
	return payload
}
