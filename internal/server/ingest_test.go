package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rememory/rememory/internal/session"
	"github.com/rememory/rememory/internal/storage"
)

type indexStub struct {
	mu     sync.Mutex
	fixes  []session.Fix
	audio  []session.AudioChunk
	photos []session.Photo
}

func (s *indexStub) InsertFix(fix session.Fix) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixes = append(s.fixes, fix)
	return nil
}

func (s *indexStub) InsertAudio(chunk session.AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, chunk)
	return nil
}

func (s *indexStub) InsertPhoto(photo session.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos = append(s.photos, photo)
	return nil
}

func testIngestor(t *testing.T) (*Ingestor, *session.State, *indexStub, string) {
	t.Helper()
	dir := t.TempDir()
	state := session.NewState(100)
	media := storage.NewMediaStore(filepath.Join(dir, "audio"), filepath.Join(dir, "photos"))
	index := &indexStub{}
	return NewIngestor(state, media, index), state, index, dir
}

func envelope(t *testing.T, eventType string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	msg, err := json.Marshal(ClientMessage{Type: eventType, Payload: raw})
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	return msg
}

func decodeReply(t *testing.T, reply []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(reply, &payload); err != nil {
		t.Fatalf("unmarshal reply failed: %v", err)
	}
	return payload
}

func TestIngestGPSUpdate(t *testing.T) {
	ing, state, index, _ := testIngestor(t)

	reply := ing.Handle(envelope(t, "gps_update", map[string]any{
		"latitude":  37.7749,
		"longitude": -122.4194,
		"accuracy":  5.0,
	}))
	if reply != nil {
		t.Fatalf("expected no reply for gps_update, got %s", reply)
	}

	snap := state.Snapshot()
	if len(snap.Fixes) != 1 {
		t.Fatalf("expected 1 fix, got %d", len(snap.Fixes))
	}
	fix := snap.Fixes[0]
	if fix.Latitude == nil || *fix.Latitude != 37.7749 {
		t.Fatalf("unexpected latitude: %+v", fix)
	}
	if fix.Altitude != nil || fix.Heading != nil || fix.Speed != nil {
		t.Fatalf("expected absent fields to stay nil, got %+v", fix)
	}
	if fix.Timestamp.IsZero() {
		t.Fatal("expected server-assigned timestamp")
	}
	if len(index.fixes) != 1 {
		t.Fatalf("expected fix indexed, got %d", len(index.fixes))
	}
}

func TestIngestGPSCapInvariant(t *testing.T) {
	ing, state, _, _ := testIngestor(t)

	for i := range 150 {
		ing.Handle(envelope(t, "gps_update", map[string]any{"latitude": float64(i), "longitude": 0.0}))
	}

	snap := state.Snapshot()
	if len(snap.Fixes) != 100 {
		t.Fatalf("expected capped 100 fixes, got %d", len(snap.Fixes))
	}
	if *snap.Fixes[0].Latitude != 50 || *snap.Fixes[99].Latitude != 149 {
		t.Fatalf("expected most recent 100 fixes in order, got first=%v last=%v",
			*snap.Fixes[0].Latitude, *snap.Fixes[99].Latitude)
	}
}

func TestIngestGPSBadPayloadDropsSilently(t *testing.T) {
	ing, state, _, _ := testIngestor(t)

	reply := ing.Handle(envelope(t, "gps_update", map[string]any{"latitude": "not-a-number"}))
	if reply != nil {
		t.Fatalf("expected no reply for bad gps payload, got %s", reply)
	}

	if fixes, _, _ := state.Counts(); fixes != 0 {
		t.Fatalf("expected no fix recorded, got %d", fixes)
	}
}

func TestIngestAudioChunk(t *testing.T) {
	ing, state, index, dir := testIngestor(t)
	ing.now = func() time.Time { return time.Date(2026, 8, 30, 10, 0, 0, 123456000, time.UTC) }

	payload := []byte{0x1a, 0x45, 0xdf, 0xa3, 0x42}
	reply := ing.Handle(envelope(t, "audio_chunk", map[string]any{
		"audio": base64.StdEncoding.EncodeToString(payload),
	}))
	if reply != nil {
		t.Fatalf("expected no reply for audio_chunk, got %s", reply)
	}

	snap := state.Snapshot()
	if snap.AudioChunks != 1 {
		t.Fatalf("expected 1 audio chunk, got %d", snap.AudioChunks)
	}

	data, err := os.ReadFile(filepath.Join(dir, "audio", "audio_20260830_100000_123456.webm"))
	if err != nil {
		t.Fatalf("expected audio file written: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("saved bytes differ from decoded input")
	}
	if len(index.audio) != 1 || index.audio[0].Size != len(payload) {
		t.Fatalf("expected indexed chunk metadata, got %+v", index.audio)
	}
}

func TestIngestAudioMalformedBase64(t *testing.T) {
	ing, state, index, dir := testIngestor(t)

	reply := ing.Handle(envelope(t, "audio_chunk", map[string]any{"audio": "!!not-base64!!"}))
	if reply != nil {
		t.Fatalf("expected no reply for malformed audio, got %s", reply)
	}

	if _, _, chunks := state.Counts(); chunks != 0 {
		t.Fatalf("expected no metadata entry for malformed audio, got %d", chunks)
	}
	if len(index.audio) != 0 {
		t.Fatalf("expected nothing indexed, got %+v", index.audio)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "audio"))
	if err == nil && len(entries) != 0 {
		t.Fatalf("expected no audio file written, found %d", len(entries))
	}
}

func TestIngestPhotoCapture(t *testing.T) {
	ing, state, index, dir := testIngestor(t)
	ing.now = func() time.Time { return time.Date(2026, 8, 30, 10, 0, 5, 0, time.UTC) }

	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}
	reply := ing.Handle(envelope(t, "photo_capture", map[string]any{
		"image": base64.StdEncoding.EncodeToString(payload),
	}))
	if reply == nil {
		t.Fatal("expected photo_saved reply")
	}

	event := decodeReply(t, reply)
	if event["type"] != "photo_saved" {
		t.Fatalf("expected photo_saved event, got %v", event["type"])
	}
	if event["filename"] != "photo_20260830_100005.jpg" {
		t.Fatalf("unexpected filename %v", event["filename"])
	}
	if event["timestamp"] == nil {
		t.Fatalf("expected timestamp in reply: %s", reply)
	}

	data, err := os.ReadFile(filepath.Join(dir, "photos", "photo_20260830_100005.jpg"))
	if err != nil {
		t.Fatalf("expected photo file written: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("saved bytes differ from decoded input")
	}

	if _, photos, _ := state.Counts(); photos != 1 {
		t.Fatalf("expected 1 photo metadata entry, got %d", photos)
	}
	if len(index.photos) != 1 || index.photos[0].Path == "" {
		t.Fatalf("expected indexed photo with path, got %+v", index.photos)
	}
}

func TestIngestPhotoDataURLPrefixEquivalence(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 0x01, 0x02}
	encoded := base64.StdEncoding.EncodeToString(payload)

	read := func(t *testing.T, image string, ts time.Time) []byte {
		ing, _, _, dir := testIngestor(t)
		ing.now = func() time.Time { return ts }

		reply := ing.Handle(envelope(t, "photo_capture", map[string]any{"image": image}))
		event := decodeReply(t, reply)
		if event["type"] != "photo_saved" {
			t.Fatalf("expected photo_saved, got %v", event)
		}

		data, err := os.ReadFile(filepath.Join(dir, "photos", event["filename"].(string)))
		if err != nil {
			t.Fatalf("read saved photo: %v", err)
		}
		return data
	}

	ts := time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)
	plain := read(t, encoded, ts)
	prefixed := read(t, "data:image/jpeg;base64,"+encoded, ts)

	if string(plain) != string(prefixed) {
		t.Fatal("expected identical decoded bytes with and without data-URL prefix")
	}
	if string(plain) != string(payload) {
		t.Fatal("expected decoded bytes to equal original payload")
	}
}

func TestIngestPhotoMalformedBase64RepliesError(t *testing.T) {
	ing, state, _, dir := testIngestor(t)

	reply := ing.Handle(envelope(t, "photo_capture", map[string]any{"image": "data:image/jpeg;base64,%%bad%%"}))
	if reply == nil {
		t.Fatal("expected photo_error reply")
	}

	event := decodeReply(t, reply)
	if event["type"] != "photo_error" {
		t.Fatalf("expected photo_error event, got %v", event["type"])
	}
	if event["error"] == nil || event["error"] == "" {
		t.Fatalf("expected error description, got %v", event)
	}

	if _, photos, _ := state.Counts(); photos != 0 {
		t.Fatalf("expected no photo metadata on failure, got %d", photos)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "photos"))
	if err == nil && len(entries) != 0 {
		t.Fatalf("expected no photo file written, found %d", len(entries))
	}
}

func TestIngestRequestStateInitialPlaceholder(t *testing.T) {
	ing, _, _, _ := testIngestor(t)

	reply := ing.Handle(envelope(t, "request_state", nil))
	if reply == nil {
		t.Fatal("expected state_update reply")
	}

	event := decodeReply(t, reply)
	if event["type"] != "state_update" {
		t.Fatalf("expected state_update event, got %v", event["type"])
	}
	if event["state"] != session.InitialState {
		t.Fatalf("expected initial placeholder, got %v", event["state"])
	}
}

func TestIngestRequestStateAfterUpdate(t *testing.T) {
	ing, state, _, _ := testIngestor(t)
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	state.SetSummary("at the grocery store", at)

	event := decodeReply(t, ing.Handle(envelope(t, "request_state", nil)))
	if event["state"] != "at the grocery store" {
		t.Fatalf("expected updated state, got %v", event["state"])
	}
	if event["timestamp"] != at.Format(time.RFC3339Nano) {
		t.Fatalf("expected lastUpdate timestamp, got %v", event["timestamp"])
	}
}

func TestIngestWelcome(t *testing.T) {
	ing, _, _, _ := testIngestor(t)

	event := decodeReply(t, ing.Welcome())
	if event["type"] != "connected" {
		t.Fatalf("expected connected event, got %v", event["type"])
	}
	if event["state"] != session.InitialState {
		t.Fatalf("expected current state in welcome, got %v", event["state"])
	}
	if event["message"] == nil {
		t.Fatalf("expected welcome message, got %s", ing.Welcome())
	}
}

func TestIngestUnknownTypeAndGarbage(t *testing.T) {
	ing, state, _, _ := testIngestor(t)

	if reply := ing.Handle([]byte("{not json")); reply != nil {
		t.Fatalf("expected nil reply for garbage, got %s", reply)
	}
	if reply := ing.Handle(envelope(t, "self_destruct", map[string]any{"x": 1})); reply != nil {
		t.Fatalf("expected nil reply for unknown type, got %s", reply)
	}

	fixes, photos, chunks := state.Counts()
	if fixes+photos+chunks != 0 {
		t.Fatalf("expected state untouched, got %d/%d/%d", fixes, photos, chunks)
	}
}

func TestIngestManyEventsNeverCrash(t *testing.T) {
	ing, _, _, _ := testIngestor(t)

	for i := range 50 {
		ing.Handle([]byte(fmt.Sprintf(`{"type":"gps_update","payload":{"latitude":%d}}`, i)))
		ing.Handle([]byte(`{"type":"audio_chunk","payload":{"audio":123}}`))
		ing.Handle([]byte(`{"type":"photo_capture"}`))
	}
}
