package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rememory/rememory/internal/llm"
	"github.com/rememory/rememory/internal/session"
)

const (
	// DefaultMaxHistory bounds the rolling prompt/response history.
	DefaultMaxHistory = 10

	promptTruncateLen = 200
)

const systemPreamble = `You are an AI assistant helping someone with memory difficulties.
Your job is to analyze their current location, surroundings, and activities to provide a clear,
concise summary of where they are and what's happening around them.

Be reassuring, specific, and helpful. Focus on:
1. Current location and what's at that location
2. What activity they appear to be doing
3. Any important context from recent history
4. Anything they should be aware of

Keep your response to 2-3 short paragraphs maximum. Be warm and supportive.`

const visionPrompt = `Describe what you see in this image in 2-3 sentences.
Focus on: location type (indoor/outdoor), people, objects, activities,
and anything important for someone who might not remember taking this photo.`

const transcriptionPrompt = `Transcribe this audio clearly.
If there are multiple speakers, indicate who is speaking when possible.
If the audio is unclear or silent, just say so.`

// ContextEntry is one past prompt/response exchange kept for
// continuity across cycles.
type ContextEntry struct {
	Timestamp time.Time
	Prompt    string
	Response  string
}

// Summarizer turns a capture snapshot into a single prompt, calls the
// generative backend, and keeps a bounded rolling history of past
// exchanges so consecutive summaries stay coherent.
type Summarizer struct {
	client     llm.Client
	maxHistory int
	sleep      func(time.Duration)

	mu      sync.Mutex
	history []ContextEntry
}

func New(client llm.Client, maxHistory int) *Summarizer {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Summarizer{
		client:     client,
		maxHistory: maxHistory,
		sleep:      time.Sleep,
	}
}

// GenerateState builds the prompt for a snapshot and asks the backend
// for the current summary. The returned error is a plain description;
// the caller logs it and keeps the previous state.
func (s *Summarizer) GenerateState(ctx context.Context, snap session.Snapshot) (string, error) {
	prompt := s.buildPrompt(snap)

	messages := []llm.Message{
		{Role: "system", Content: systemPreamble},
		{Role: "user", Content: prompt},
	}

	backoff := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	var lastErr error
	for attempt := range backoff {
		result, err := s.client.Complete(ctx, messages)
		if err == nil {
			s.recordExchange(prompt, result)
			return result, nil
		}
		lastErr = err
		if attempt < len(backoff)-1 {
			slog.Warn("summarizer: retrying state generation", "attempt", attempt+1, "error", err)
			s.sleep(backoff[attempt])
		}
	}

	return "", fmt.Errorf("unable to generate state: %w", lastErr)
}

// AnalyzePhoto describes a stored photo via the multimodal backend.
// Available capability; nothing in the periodic flow calls it yet.
func (s *Summarizer) AnalyzePhoto(ctx context.Context, path string) (string, error) {
	return s.completeWithFile(ctx, visionPrompt, path)
}

// TranscribeAudio transcribes a stored audio chunk via the multimodal
// backend. Available capability; nothing in the periodic flow calls it
// yet.
func (s *Summarizer) TranscribeAudio(ctx context.Context, path string) (string, error) {
	return s.completeWithFile(ctx, transcriptionPrompt, path)
}

// History returns a copy of the rolling prompt/response history.
func (s *Summarizer) History() []ContextEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ContextEntry(nil), s.history...)
}

func (s *Summarizer) completeWithFile(ctx context.Context, prompt, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	file := llm.File{Path: path, MIMEType: mimeTypeFor(path), Data: data}
	result, err := s.client.CompleteWithFile(ctx, prompt, file)
	if err != nil {
		return "", fmt.Errorf("analyze %s: %w", filepath.Base(path), err)
	}
	return result, nil
}

func (s *Summarizer) buildPrompt(snap session.Snapshot) string {
	var b strings.Builder

	if len(snap.Fixes) > 0 {
		latest := snap.Fixes[len(snap.Fixes)-1]
		b.WriteString("--- CURRENT LOCATION ---\n")
		fmt.Fprintf(&b, "Latitude: %s\n", formatCoord(latest.Latitude))
		fmt.Fprintf(&b, "Longitude: %s\n", formatCoord(latest.Longitude))
		fmt.Fprintf(&b, "Time: %s\n", latest.Timestamp.Format(time.RFC3339))

		if len(snap.Fixes) > 1 {
			fmt.Fprintf(&b, "\nRecent movement (last %d updates):\n", len(snap.Fixes))
			trail := snap.Fixes
			if len(trail) > 5 {
				trail = trail[len(trail)-5:]
			}
			for _, fix := range trail {
				fmt.Fprintf(&b, "  - %s, %s at %s\n", formatCoord(fix.Latitude), formatCoord(fix.Longitude), fix.Timestamp.Format(time.RFC3339))
			}
		}
	}

	if len(snap.Photos) > 0 {
		b.WriteString("\n--- PHOTOS CAPTURED ---\n")
		fmt.Fprintf(&b, "Number of photos taken: %d\n", len(snap.Photos))
		b.WriteString("Most recent photos:\n")
		recent := snap.Photos
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		for _, photo := range recent {
			fmt.Fprintf(&b, "  - %s at %s\n", photo.Filename, photo.Timestamp.Format(time.RFC3339))
		}
		b.WriteString("\nNote: photo contents are not analyzed here; use location and time for context.\n")
	}

	if snap.AudioChunks > 0 {
		b.WriteString("\n--- AUDIO DATA ---\n")
		fmt.Fprintf(&b, "Audio chunks captured: %d\n", snap.AudioChunks)
		b.WriteString("Note: audio is not transcribed here.\n")
	}

	if prior := s.lastResponse(); prior != "" {
		b.WriteString("\n--- RECENT HISTORY ---\n")
		fmt.Fprintf(&b, "Previous state (for context): %s\n", prior)
	}

	b.WriteString("\n--- YOUR TASK ---\n")
	b.WriteString("Based on all the above information, provide a clear, supportive summary of ")
	b.WriteString("where the person is and what's happening. If you can identify the location from ")
	b.WriteString("coordinates, mention specific place names. Be specific and reassuring.")

	return b.String()
}

func (s *Summarizer) lastResponse() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return ""
	}
	return s.history[len(s.history)-1].Response
}

func (s *Summarizer) recordExchange(prompt, response string) {
	truncated := prompt
	if len(truncated) > promptTruncateLen {
		truncated = truncated[:promptTruncateLen] + "..."
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, ContextEntry{
		Timestamp: time.Now().UTC(),
		Prompt:    truncated,
		Response:  response,
	})
	if len(s.history) > s.maxHistory {
		s.history = append([]ContextEntry(nil), s.history[len(s.history)-s.maxHistory:]...)
	}
}

func formatCoord(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.6f", *v)
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webm":
		return "audio/webm"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
