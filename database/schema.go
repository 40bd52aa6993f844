package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the vector extension and the tables backing the index.
// video_sources doubles as the dedup presence marker: a video ID is indexed
// exactly when a row exists for it.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE IF NOT EXISTS video_sources (
			video_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			chunk_count INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS video_chunks (
			id UUID PRIMARY KEY,
			video_id TEXT NOT NULL REFERENCES video_sources(video_id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			start_time INT NOT NULL,
			url TEXT NOT NULL,
			word_count INT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(video_id, chunk_index)
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_video_chunks_video ON video_chunks(video_id)",
		"CREATE INDEX IF NOT EXISTS idx_video_chunks_embedding ON video_chunks USING ivfflat (embedding vector_l2_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}
