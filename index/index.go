// Package index manages deduplicated ingestion of chunks into the vector
// store. A video is either fully indexed or absent; partial writes are never
// visible to queries.
package index

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/fabfab/tube-agent/chunker"
)

type Status string

const (
	StatusIngested Status = "ingested"
	StatusSkipped  Status = "skipped"
)

// Result reports the outcome of one Ingest call.
type Result struct {
	Status Status
	Chunks int
}

// Source describes the video a chunk batch belongs to.
type Source struct {
	VideoID string
	Title   string
	URL     string
}

// Store is the persistence boundary for indexed chunks. WriteBatch must be
// atomic: either the presence marker and every chunk land together, or
// nothing does.
type Store interface {
	Contains(ctx context.Context, videoID string) (bool, error)
	WriteBatch(ctx context.Context, source Source, chunks []chunker.Chunk, vectors [][]float32) error
	Delete(ctx context.Context, videoID string) error
}

// Manager serializes ingestion per video ID so the membership check and the
// batch write behave as one operation. Different video IDs proceed
// independently.
type Manager struct {
	store  Store
	logger *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(store Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}

	return &Manager{
		store:  store,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Ingest writes all chunks for a video as one batch, unless the video is
// already indexed, in which case it is a no-op. A failed write leaves the
// video absent, so the next call retries from scratch.
func (m *Manager) Ingest(ctx context.Context, source Source, chunks []chunker.Chunk, vectors [][]float32) (Result, error) {
	if source.VideoID == "" {
		return Result{}, fmt.Errorf("source has no video id")
	}
	if len(chunks) == 0 {
		return Result{}, fmt.Errorf("no chunks to ingest for %s", source.VideoID)
	}
	if len(vectors) != len(chunks) {
		return Result{}, fmt.Errorf("vector count mismatch: have %d chunks, %d vectors", len(chunks), len(vectors))
	}

	lock := m.sourceLock(source.VideoID)
	lock.Lock()
	defer lock.Unlock()

	present, err := m.store.Contains(ctx, source.VideoID)
	if err != nil {
		return Result{}, fmt.Errorf("check indexed videos: %w", err)
	}
	if present {
		m.logger.Printf("video %s already indexed, skipping", source.VideoID)
		return Result{Status: StatusSkipped}, nil
	}

	if err := m.store.WriteBatch(ctx, source, chunks, vectors); err != nil {
		return Result{}, fmt.Errorf("write chunk batch for %s: %w", source.VideoID, err)
	}

	m.logger.Printf("indexed video %s (%d chunks)", source.VideoID, len(chunks))
	return Result{Status: StatusIngested, Chunks: len(chunks)}, nil
}

// Purge removes a video's chunks and its presence marker.
func (m *Manager) Purge(ctx context.Context, videoID string) error {
	if videoID == "" {
		return fmt.Errorf("video id is empty")
	}

	lock := m.sourceLock(videoID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.Delete(ctx, videoID); err != nil {
		return fmt.Errorf("purge video %s: %w", videoID, err)
	}
	return nil
}

// Indexed reports whether a video is present in the index.
func (m *Manager) Indexed(ctx context.Context, videoID string) (bool, error) {
	return m.store.Contains(ctx, videoID)
}

func (m *Manager) sourceLock(videoID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[videoID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[videoID] = lock
	}
	return lock
}
