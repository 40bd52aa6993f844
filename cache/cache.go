// Package cache persists fetched transcripts on local disk so a video is
// never transcribed twice. Entries are keyed by video ID and treated as
// immutable once written.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/fabfab/tube-agent/transcript"
)

// TranscriptCache is a write-once, read-many store for transcripts. A
// corrupted entry is reported as a miss, never as a fatal error; ingestion
// then falls through to re-transcription.
type TranscriptCache struct {
	db     *sql.DB
	logger *log.Logger
}

// Open creates or opens the cache database under dataDir.
func Open(dataDir string, logger *log.Logger) (*TranscriptCache, error) {
	if logger == nil {
		logger = log.Default()
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "transcripts.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transcripts (
			video_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create transcripts table: %w", err)
	}

	return &TranscriptCache{db: db, logger: logger}, nil
}

func (c *TranscriptCache) Close() error {
	return c.db.Close()
}

// Get returns the cached transcript for a video ID. The second return value
// is false on a miss, including when the stored entry cannot be decoded.
func (c *TranscriptCache) Get(ctx context.Context, videoID string) (transcript.Transcript, bool) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT payload FROM transcripts WHERE video_id = ?", videoID,
	).Scan(&payload)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Printf("transcript cache read failed for %s, treating as miss: %v", videoID, err)
		}
		return transcript.Transcript{}, false
	}

	var tr transcript.Transcript
	if err := json.Unmarshal(payload, &tr); err != nil {
		c.logger.Printf("transcript cache entry for %s is corrupt, treating as miss: %v", videoID, err)
		return transcript.Transcript{}, false
	}

	if tr.VideoID == "" || len(tr.Segments) == 0 {
		c.logger.Printf("transcript cache entry for %s is incomplete, treating as miss", videoID)
		return transcript.Transcript{}, false
	}

	return tr, true
}

// Put stores a transcript. Re-writing an existing video ID replaces the
// entry atomically, which keeps Put idempotent.
func (c *TranscriptCache) Put(ctx context.Context, tr transcript.Transcript) error {
	if tr.VideoID == "" {
		return fmt.Errorf("transcript has no video id")
	}

	payload, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, `
		INSERT INTO transcripts (video_id, payload)
		VALUES (?, ?)
		ON CONFLICT(video_id) DO UPDATE SET payload = excluded.payload
	`, tr.VideoID, payload); err != nil {
		return fmt.Errorf("store transcript: %w", err)
	}

	return nil
}
