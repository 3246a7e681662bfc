package summarizer

import (
	"context"
	"log"
	"time"

	"github.com/rememory/rememory/internal/session"
	"github.com/rememory/rememory/internal/storage"
)

// DefaultInterval matches the original 3-minute cycle.
const DefaultInterval = 180 * time.Second

// Generator produces a summary text for a capture snapshot.
type Generator interface {
	GenerateState(ctx context.Context, snap session.Snapshot) (string, error)
}

// Broadcaster fans a fresh summary out to connected clients.
type Broadcaster interface {
	BroadcastStateUpdate(state string, at time.Time)
}

// StateSink records a completed cycle durably.
type StateSink interface {
	InsertState(rec storage.StateRecord) error
}

// Loop is the single periodic summarization task. It runs until its
// context is cancelled; a failed cycle is logged and skipped, never
// fatal. RunOnce exists so tests drive a cycle without a timer.
type Loop struct {
	Interval time.Duration

	state    *session.State
	gen      Generator
	stateLog *storage.StateLog
	index    StateSink
	hub      Broadcaster
}

func NewLoop(state *session.State, gen Generator, stateLog *storage.StateLog, index StateSink, hub Broadcaster, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		Interval: interval,
		state:    state,
		gen:      gen,
		stateLog: stateLog,
		index:    index,
		hub:      hub,
	}
}

func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.RunOnce(ctx); err != nil {
				log.Printf("state update failed: %v", err)
			}
		}
	}
}

// RunOnce executes one cycle: snapshot under the lock, generate
// outside it, then publish. On generation failure the current state is
// left untouched and nothing is logged or broadcast.
func (l *Loop) RunOnce(ctx context.Context) error {
	snap := l.state.Snapshot()

	text, err := l.gen.GenerateState(ctx, snap)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	l.state.SetSummary(text, now)

	rec := storage.StateRecord{
		Timestamp:   now.Format(time.RFC3339Nano),
		State:       text,
		GPSCount:    len(snap.Fixes),
		PhotoCount:  len(snap.Photos),
		AudioChunks: snap.AudioChunks,
	}
	if l.stateLog != nil {
		if err := l.stateLog.Append(rec); err != nil {
			log.Printf("state log append failed: %v", err)
		}
	}
	if l.index != nil {
		if err := l.index.InsertState(rec); err != nil {
			log.Printf("state index insert failed: %v", err)
		}
	}

	if l.hub != nil {
		l.hub.BroadcastStateUpdate(text, now)
	}

	log.Printf("[state update] %s", firstN(text, 100))
	return nil
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
