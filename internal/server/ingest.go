package server

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/rememory/rememory/internal/session"
	"github.com/rememory/rememory/internal/storage"
)

// CaptureIndex is the optional durable index for incoming captures.
type CaptureIndex interface {
	InsertFix(fix session.Fix) error
	InsertAudio(chunk session.AudioChunk) error
	InsertPhoto(photo session.Photo) error
}

// ClientMessage is one inbound websocket message.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Ingestor applies inbound client events to the session state and the
// media store. Every handler catches its own faults: a bad event is
// logged and dropped, never allowed to take down the connection.
type Ingestor struct {
	state *session.State
	media *storage.MediaStore
	index CaptureIndex
	now   func() time.Time
}

func NewIngestor(state *session.State, media *storage.MediaStore, index CaptureIndex) *Ingestor {
	return &Ingestor{
		state: state,
		media: media,
		index: index,
		now:   time.Now,
	}
}

// Welcome builds the connected event sent immediately after upgrade.
func (i *Ingestor) Welcome() []byte {
	text, at := i.state.Summary()
	return marshalEvent(ConnectedEvent{
		Event:   newEvent("connected", at),
		Message: "Connected to Rememory server",
		State:   text,
	})
}

// Handle dispatches one inbound message. A non-nil return is a reply
// for the requesting client only; broadcasts go through the hub.
func (i *Ingestor) Handle(raw []byte) []byte {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("invalid client message: %v", err)
		return nil
	}

	switch msg.Type {
	case "gps_update":
		i.handleGPS(msg.Payload)
		return nil
	case "audio_chunk":
		i.handleAudio(msg.Payload)
		return nil
	case "photo_capture":
		return i.handlePhoto(msg.Payload)
	case "request_state":
		return i.stateReply()
	default:
		log.Printf("unknown event type %q", msg.Type)
		return nil
	}
}

func (i *Ingestor) handleGPS(payload json.RawMessage) {
	var fix session.Fix
	if err := json.Unmarshal(payload, &fix); err != nil {
		log.Printf("gps update failed: %v", err)
		return
	}
	fix.Timestamp = i.now().UTC()

	i.state.AddFix(fix)
	if i.index != nil {
		if err := i.index.InsertFix(fix); err != nil {
			log.Printf("gps index insert failed: %v", err)
		}
	}
}

func (i *Ingestor) handleAudio(payload json.RawMessage) {
	var req struct {
		Audio string `json:"audio"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Printf("audio chunk failed: %v", err)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		log.Printf("audio chunk decode failed: %v", err)
		return
	}

	ts := i.now()
	filename, err := i.media.SaveAudio(ts, data)
	if err != nil {
		log.Printf("audio chunk save failed: %v", err)
		return
	}

	chunk := session.AudioChunk{Timestamp: ts.UTC(), Filename: filename, Size: len(data)}
	i.state.AddAudio(chunk)
	if i.index != nil {
		if err := i.index.InsertAudio(chunk); err != nil {
			log.Printf("audio index insert failed: %v", err)
		}
	}

	log.Printf("[audio chunk] saved %s (%d bytes)", filename, len(data))
}

func (i *Ingestor) handlePhoto(payload json.RawMessage) []byte {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return i.photoError(err)
	}

	// Data-URL captures arrive as "data:image/jpeg;base64,<data>";
	// everything before the comma is the header.
	encoded := req.Image
	if idx := strings.Index(encoded, ","); idx >= 0 {
		encoded = encoded[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return i.photoError(err)
	}

	ts := i.now()
	filename, path, err := i.media.SavePhoto(ts, data)
	if err != nil {
		return i.photoError(err)
	}

	photo := session.Photo{Timestamp: ts.UTC(), Filename: filename, Path: path, Size: len(data)}
	i.state.AddPhoto(photo)
	if i.index != nil {
		if err := i.index.InsertPhoto(photo); err != nil {
			log.Printf("photo index insert failed: %v", err)
		}
	}

	log.Printf("[photo captured] %s (%d bytes)", filename, len(data))

	return marshalEvent(PhotoSavedEvent{
		Event:    newEvent("photo_saved", ts.UTC()),
		Filename: filename,
	})
}

func (i *Ingestor) photoError(err error) []byte {
	log.Printf("photo save failed: %v", err)
	return marshalEvent(PhotoErrorEvent{
		Event: newEvent("photo_error", i.now().UTC()),
		Error: err.Error(),
	})
}

func (i *Ingestor) stateReply() []byte {
	text, at := i.state.Summary()
	return marshalEvent(StateUpdateEvent{
		Event: newEvent("state_update", at),
		State: text,
	})
}
