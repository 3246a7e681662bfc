package session

import (
	"sync"
	"time"
)

// InitialState is the summary text clients see before the first
// periodic cycle has completed.
const InitialState = "Initializing Rememory..."

// DefaultMaxFixes bounds the in-memory GPS history.
const DefaultMaxFixes = 100

// Fix is one GPS reading. All fields except Timestamp are
// client-supplied and optional; a missing field stays nil rather than
// defaulting to zero.
type Fix struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
}

// AudioChunk is the metadata for one saved audio chunk. The raw bytes
// live only on disk, keyed by Filename.
type AudioChunk struct {
	Timestamp time.Time `json:"timestamp"`
	Filename  string    `json:"filename"`
	Size      int       `json:"size"`
}

// Photo is the metadata for one saved photo capture.
type Photo struct {
	Timestamp time.Time `json:"timestamp"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Size      int       `json:"size"`
}

// Snapshot is a point-in-time copy of the capture data the summarizer
// consumes. It is taken under the state lock and used outside it.
type Snapshot struct {
	Fixes       []Fix
	Photos      []Photo
	AudioChunks int
}

// State is the single process-wide session record: GPS history capped
// at maxFixes, unbounded audio/photo metadata indexes, and the current
// generated summary. Every read and write goes through one mutex.
type State struct {
	mu         sync.Mutex
	maxFixes   int
	fixes      []Fix
	audio      []AudioChunk
	photos     []Photo
	current    string
	lastUpdate time.Time
}

func NewState(maxFixes int) *State {
	if maxFixes <= 0 {
		maxFixes = DefaultMaxFixes
	}
	return &State{
		maxFixes:   maxFixes,
		current:    InitialState,
		lastUpdate: time.Now().UTC(),
	}
}

// AddFix appends a GPS fix, evicting the oldest entries once the
// history exceeds the cap. Not a ring buffer: the original keeps the
// most recent N by re-slicing, and so do we.
func (s *State) AddFix(fix Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fixes = append(s.fixes, fix)
	if len(s.fixes) > s.maxFixes {
		trimmed := make([]Fix, s.maxFixes)
		copy(trimmed, s.fixes[len(s.fixes)-s.maxFixes:])
		s.fixes = trimmed
	}
}

func (s *State) AddAudio(chunk AudioChunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, chunk)
}

func (s *State) AddPhoto(photo Photo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos = append(s.photos, photo)
}

// Snapshot copies the capture data out under the lock so the caller
// can hit the network without holding it.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Fixes:       append([]Fix(nil), s.fixes...),
		Photos:      append([]Photo(nil), s.photos...),
		AudioChunks: len(s.audio),
	}
}

// SetSummary overwrites the current summary text and its timestamp.
func (s *State) SetSummary(text string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = text
	s.lastUpdate = at
}

// Summary returns the current summary text and the time it was set.
func (s *State) Summary() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.lastUpdate
}

// Counts returns the number of GPS fixes, photos, and audio chunks held.
func (s *State) Counts() (fixes, photos, audioChunks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fixes), len(s.photos), len(s.audio)
}

// Stats returns the status-endpoint view in one lock acquisition.
func (s *State) Stats() (text string, at time.Time, fixes, photos, audioChunks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.lastUpdate, len(s.fixes), len(s.photos), len(s.audio)
}
