package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateRecord is one periodic summary cycle, written as a single JSON
// line to the day's log file.
type StateRecord struct {
	Timestamp   string `json:"timestamp"`
	State       string `json:"state"`
	GPSCount    int    `json:"gps_count"`
	PhotoCount  int    `json:"photo_count"`
	AudioChunks int    `json:"audio_chunks"`
}

// StateLog appends summary cycles to one newline-delimited JSON file
// per calendar day.
type StateLog struct {
	dir string
	mu  sync.Mutex
}

func NewStateLog(dir string) *StateLog {
	if dir == "" {
		dir = filepath.Join("data", "logs")
	}
	return &StateLog{dir: dir}
}

func (l *StateLog) Append(rec StateRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", l.dir, err)
	}

	path := l.pathFor(time.Now())
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal state record: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s\n", line); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// CurrentPath returns today's log file path.
func (l *StateLog) CurrentPath() string {
	return l.pathFor(time.Now())
}

func (l *StateLog) pathFor(t time.Time) string {
	return filepath.Join(l.dir, fmt.Sprintf("state_log_%s.jsonl", t.Format("20060102")))
}
