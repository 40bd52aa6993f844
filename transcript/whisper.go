package transcript

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Transcriber converts a local audio file into timestamped segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]Segment, error)
}

type whisperTranscriber struct {
	client *openai.Client
	model  string
}

// NewWhisperTranscriber returns a Transcriber backed by the OpenAI Whisper API.
// Verbose JSON output is requested so segment timestamps are preserved.
func NewWhisperTranscriber(apiKey, baseURL string) Transcriber {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &whisperTranscriber{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.Whisper1,
	}
}

func (t *whisperTranscriber) Transcribe(ctx context.Context, audioPath string) ([]Segment, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("create whisper transcription: %w", err)
	}

	if len(resp.Segments) == 0 {
		return nil, fmt.Errorf("whisper returned no segments")
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Text:  text,
			Start: seg.Start,
			End:   seg.End,
		})
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("whisper segments contained no usable text")
	}

	return segments, nil
}
