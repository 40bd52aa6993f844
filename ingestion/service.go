// Package ingestion runs the pipeline from a video URL to indexed chunks:
// cache lookup, audio download, transcription, chunking, embedding, and the
// deduplicated batch write into the vector index.
package ingestion

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/fabfab/tube-agent/cache"
	"github.com/fabfab/tube-agent/chunker"
	"github.com/fabfab/tube-agent/embeddings"
	"github.com/fabfab/tube-agent/index"
	"github.com/fabfab/tube-agent/transcript"
)

type Service struct {
	cache       *cache.TranscriptCache
	downloader  transcript.Downloader
	transcriber transcript.Transcriber
	embedder    embeddings.Embedder
	index       *index.Manager
	chunking    chunker.Options
	logger      *log.Logger
}

func NewService(
	transcriptCache *cache.TranscriptCache,
	downloader transcript.Downloader,
	transcriber transcript.Transcriber,
	embedder embeddings.Embedder,
	indexManager *index.Manager,
	chunking chunker.Options,
	logger *log.Logger,
) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		cache:       transcriptCache,
		downloader:  downloader,
		transcriber: transcriber,
		embedder:    embedder,
		index:       indexManager,
		chunking:    chunking,
		logger:      logger,
	}
}

// IngestVideo makes the video behind rawURL queryable. Already-indexed videos
// are skipped; cached transcripts are reused without calling the
// transcription backend.
func (s *Service) IngestVideo(ctx context.Context, rawURL string) (index.Result, error) {
	if s.embedder == nil {
		return index.Result{}, fmt.Errorf("embedder not configured")
	}

	videoID, err := transcript.ExtractVideoID(rawURL)
	if err != nil {
		return index.Result{}, err
	}

	// Cheap pre-check to avoid transcribing an already-indexed video. The
	// manager re-checks under its per-video lock, so this is advisory only.
	if present, err := s.index.Indexed(ctx, videoID); err == nil && present {
		s.logger.Printf("video %s already indexed, nothing to do", videoID)
		return index.Result{Status: index.StatusSkipped}, nil
	}

	tr, ok := s.cache.Get(ctx, videoID)
	if ok {
		s.logger.Printf("transcript cache hit for %s (%d segments)", videoID, len(tr.Segments))
	} else {
		tr, err = s.fetchTranscript(ctx, videoID)
		if err != nil {
			return index.Result{}, err
		}
		if err := s.cache.Put(ctx, tr); err != nil {
			// The transcript is in hand; a cache write failure only costs a
			// future re-transcription.
			s.logger.Printf("cache transcript for %s failed: %v", videoID, err)
		}
	}

	chunks := chunker.Build(tr, s.chunking)
	if len(chunks) == 0 {
		return index.Result{}, fmt.Errorf("transcript for %s produced no chunks", videoID)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return index.Result{}, fmt.Errorf("generate embeddings: %w", err)
	}

	source := index.Source{VideoID: tr.VideoID, Title: tr.Title, URL: tr.URL}
	return s.index.Ingest(ctx, source, chunks, vectors)
}

// Purge removes a video from the index. The cached transcript is kept; a
// later re-ingest reuses it.
func (s *Service) Purge(ctx context.Context, videoID string) error {
	return s.index.Purge(ctx, videoID)
}

func (s *Service) fetchTranscript(ctx context.Context, videoID string) (transcript.Transcript, error) {
	audioPath, title, err := s.downloader.DownloadAudio(ctx, videoID)
	if err != nil {
		return transcript.Transcript{}, &transcript.TranscriptionError{VideoID: videoID, Err: err}
	}
	defer func() {
		if removeErr := os.Remove(audioPath); removeErr != nil {
			s.logger.Printf("remove temp audio %s: %v", audioPath, removeErr)
		}
	}()

	segments, err := s.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return transcript.Transcript{}, &transcript.TranscriptionError{VideoID: videoID, Err: err}
	}

	s.logger.Printf("transcribed %s (%d segments)", videoID, len(segments))

	return transcript.Transcript{
		VideoID:  videoID,
		Title:    title,
		URL:      transcript.CanonicalURL(videoID),
		Segments: segments,
	}, nil
}
