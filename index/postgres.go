package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fabfab/tube-agent/chunker"
)

// PostgresStore persists chunks and presence markers in Postgres with
// pgvector embeddings. Batch atomicity comes from a single transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Contains(ctx context.Context, videoID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM video_sources WHERE video_id = $1)", videoID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query video_sources: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) WriteBatch(ctx context.Context, source Source, chunks []chunker.Chunk, vectors [][]float32) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		INSERT INTO video_sources (video_id, title, url, chunk_count, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, source.VideoID, source.Title, source.URL, len(chunks)); err != nil {
		return fmt.Errorf("insert video source: %w", err)
	}

	for idx, chunk := range chunks {
		if _, err = tx.Exec(ctx, `
			INSERT INTO video_chunks (id, video_id, chunk_index, content, start_time, url, word_count, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		`, uuid.New(), source.VideoID, idx, chunk.Text, chunk.StartTime, chunk.URL, chunk.WordCount,
			pgvector.NewVector(vectors[idx])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", idx, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunk batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, videoID string) error {
	// video_chunks rows go with the source via ON DELETE CASCADE.
	if _, err := s.pool.Exec(ctx, "DELETE FROM video_sources WHERE video_id = $1", videoID); err != nil {
		return fmt.Errorf("delete video source: %w", err)
	}
	return nil
}
