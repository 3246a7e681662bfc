package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rememory/rememory/internal/session"
	"github.com/rememory/rememory/internal/storage"
)

var photoNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// StateIndex is the read side of the capture index backing the
// history endpoints.
type StateIndex interface {
	GetDates() ([]string, error)
	GetStatesByDate(date string) ([]storage.StateRecord, error)
}

func registerAPIRoutes(mux *http.ServeMux, state *session.State, index StateIndex, media *storage.MediaStore) {
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		text, at, fixes, photos, audioChunks := state.Stats()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "running",
			"current_state": text,
			"last_update":   at.UTC().Format(time.RFC3339Nano),
			"gps_points":    fixes,
			"photos":        photos,
			"audio_chunks":  audioChunks,
		})
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		if index == nil {
			writeJSON(w, http.StatusOK, []string{})
			return
		}

		dates, err := index.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, http.StatusOK, dates)
	})

	mux.HandleFunc("GET /api/states", func(w http.ResponseWriter, r *http.Request) {
		if index == nil {
			writeJSON(w, http.StatusOK, []storage.StateRecord{})
			return
		}

		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		records, err := index.GetStatesByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list states: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, records)
	})

	mux.HandleFunc("GET /api/photos/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if !photoNamePattern.MatchString(name) || strings.Contains(name, "..") {
			writeJSONError(w, http.StatusForbidden, "invalid photo name")
			return
		}

		path := filepath.Clean(media.PhotoPath(name))
		f, err := os.Open(path)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "photo not found")
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat photo: %v", err))
			return
		}

		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeContent(w, r, name, info.ModTime(), f)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
