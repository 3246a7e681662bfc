package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MediaStore writes raw capture payloads to timestamped files.
// Writes are fire-and-forget: a failed write is reported to the caller
// and the chunk is lost, nothing is retried.
type MediaStore struct {
	audioDir string
	photoDir string
}

func NewMediaStore(audioDir, photoDir string) *MediaStore {
	if audioDir == "" {
		audioDir = filepath.Join("data", "audio")
	}
	if photoDir == "" {
		photoDir = filepath.Join("data", "photos")
	}
	return &MediaStore{audioDir: audioDir, photoDir: photoDir}
}

// AudioFilename names a chunk with microsecond precision so rapid
// chunks never collide.
func AudioFilename(ts time.Time) string {
	return fmt.Sprintf("audio_%s_%06d.webm", ts.Format("20060102_150405"), ts.Nanosecond()/1000)
}

// PhotoFilename names a photo with second precision. Two captures
// within the same second collide; the capture index still records both.
func PhotoFilename(ts time.Time) string {
	return fmt.Sprintf("photo_%s.jpg", ts.Format("20060102_150405"))
}

// SaveAudio writes a decoded audio chunk and returns its filename.
func (m *MediaStore) SaveAudio(ts time.Time, data []byte) (string, error) {
	filename := AudioFilename(ts)
	if err := m.write(m.audioDir, filename, data); err != nil {
		return "", err
	}
	return filename, nil
}

// SavePhoto writes a decoded photo and returns its filename and
// absolute path.
func (m *MediaStore) SavePhoto(ts time.Time, data []byte) (filename, path string, err error) {
	filename = PhotoFilename(ts)
	if err := m.write(m.photoDir, filename, data); err != nil {
		return "", "", err
	}

	path, err = filepath.Abs(filepath.Join(m.photoDir, filename))
	if err != nil {
		return "", "", fmt.Errorf("resolve photo path: %w", err)
	}
	return filename, path, nil
}

// PhotoPath returns the on-disk path for a stored photo filename.
func (m *MediaStore) PhotoPath(filename string) string {
	return filepath.Join(m.photoDir, filename)
}

func (m *MediaStore) write(dir, filename string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
