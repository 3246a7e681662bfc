package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rememory/rememory/internal/session"
)

const (
	MediaAudio = "audio"
	MediaPhoto = "photo"
)

// Index is the durable capture index: every fix, saved media item, and
// generated state lands here. The in-memory session keeps the working
// set; the index is what survives a restart.
type Index struct {
	db *sql.DB
}

func NewIndex(dbPath string) (*Index, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "rememory.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	idx := &Index{db: db}
	if err := idx.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return idx, nil
}

func (i *Index) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := i.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := i.db.Exec(`
		CREATE TABLE IF NOT EXISTS fixes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			latitude REAL,
			longitude REAL,
			accuracy REAL,
			altitude REAL,
			heading REAL,
			speed REAL
		);
	`); err != nil {
		return fmt.Errorf("create fixes table: %w", err)
	}

	if _, err := i.db.Exec(`
		CREATE TABLE IF NOT EXISTS media (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			filename TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create media table: %w", err)
	}

	if _, err := i.db.Exec(`
		CREATE TABLE IF NOT EXISTS states (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			state TEXT NOT NULL,
			gps_count INTEGER NOT NULL,
			photo_count INTEGER NOT NULL,
			audio_chunks INTEGER NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create states table: %w", err)
	}

	if _, err := i.db.Exec("CREATE INDEX IF NOT EXISTS idx_fixes_timestamp ON fixes(timestamp)"); err != nil {
		return fmt.Errorf("create fixes index: %w", err)
	}
	if _, err := i.db.Exec("CREATE INDEX IF NOT EXISTS idx_states_timestamp ON states(timestamp)"); err != nil {
		return fmt.Errorf("create states index: %w", err)
	}

	return nil
}

func (i *Index) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

func (i *Index) InsertFix(fix session.Fix) error {
	_, err := i.db.Exec(
		`INSERT INTO fixes(timestamp, latitude, longitude, accuracy, altitude, heading, speed) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		fix.Timestamp.UTC().Format(time.RFC3339Nano),
		fix.Latitude,
		fix.Longitude,
		fix.Accuracy,
		fix.Altitude,
		fix.Heading,
		fix.Speed,
	)
	if err != nil {
		return fmt.Errorf("insert fix: %w", err)
	}
	return nil
}

func (i *Index) InsertAudio(chunk session.AudioChunk) error {
	return i.insertMedia(MediaAudio, chunk.Timestamp, chunk.Filename, "", chunk.Size)
}

func (i *Index) InsertPhoto(photo session.Photo) error {
	return i.insertMedia(MediaPhoto, photo.Timestamp, photo.Filename, photo.Path, photo.Size)
}

func (i *Index) insertMedia(kind string, ts time.Time, filename, path string, size int) error {
	_, err := i.db.Exec(
		`INSERT INTO media(kind, timestamp, filename, path, size) VALUES(?, ?, ?, ?, ?)`,
		kind,
		ts.UTC().Format(time.RFC3339Nano),
		filename,
		path,
		size,
	)
	if err != nil {
		return fmt.Errorf("insert %s media %s: %w", kind, filename, err)
	}
	return nil
}

func (i *Index) InsertState(rec StateRecord) error {
	_, err := i.db.Exec(
		`INSERT INTO states(timestamp, state, gps_count, photo_count, audio_chunks) VALUES(?, ?, ?, ?, ?)`,
		rec.Timestamp,
		rec.State,
		rec.GPSCount,
		rec.PhotoCount,
		rec.AudioChunks,
	)
	if err != nil {
		return fmt.Errorf("insert state: %w", err)
	}
	return nil
}

// GetDates lists the calendar days with at least one generated state,
// newest first.
func (i *Index) GetDates() ([]string, error) {
	rows, err := i.db.Query(
		`SELECT DISTINCT substr(timestamp, 1, 10) AS date FROM states ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

// GetStatesByDate returns the generated states for a YYYY-MM-DD day in
// generation order.
func (i *Index) GetStatesByDate(date string) ([]StateRecord, error) {
	rows, err := i.db.Query(
		`SELECT timestamp, state, gps_count, photo_count, audio_chunks
		 FROM states
		 WHERE substr(timestamp, 1, 10) = ?
		 ORDER BY id ASC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query states by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]StateRecord, 0, 16)
	for rows.Next() {
		var rec StateRecord
		if err := rows.Scan(&rec.Timestamp, &rec.State, &rec.GPSCount, &rec.PhotoCount, &rec.AudioChunks); err != nil {
			return nil, fmt.Errorf("scan state record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state rows: %w", err)
	}

	return records, nil
}
