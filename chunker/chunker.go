// Package chunker groups transcript segments into overlapping retrieval
// chunks while keeping every chunk anchored to a real segment timestamp.
package chunker

import (
	"fmt"
	"strings"

	"github.com/fabfab/tube-agent/transcript"
)

const (
	DefaultTargetWords     = 400
	DefaultOverlapSegments = 1
)

// Chunk is an immutable retrieval unit built from consecutive transcript
// segments. StartTime is the truncated start of the first segment, so a
// citation built from it always lands at a spoken boundary.
type Chunk struct {
	VideoID    string
	VideoTitle string
	Text       string
	StartTime  int
	URL        string
	WordCount  int
}

// Options controls chunk sizing. TargetWords is a soft bound: a chunk closes
// once it reaches the target, but segments are never split, so a single long
// segment can exceed it.
type Options struct {
	TargetWords     int
	OverlapSegments int
}

func (o Options) withDefaults() Options {
	if o.TargetWords <= 0 {
		o.TargetWords = DefaultTargetWords
	}
	if o.OverlapSegments <= 0 {
		o.OverlapSegments = DefaultOverlapSegments
	}
	return o
}

// Build converts a transcript's segments into chunks. Adjacent chunks share
// the closing chunk's trailing OverlapSegments segments. Trailing segments
// below the target still form a final chunk. Output is deterministic for a
// given input.
func Build(tr transcript.Transcript, opts Options) []Chunk {
	opts = opts.withDefaults()

	segments := make([]transcript.Segment, 0, len(tr.Segments))
	for _, seg := range tr.Segments {
		if strings.TrimSpace(seg.Text) != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return nil
	}

	chunks := make([]Chunk, 0)
	start := 0

	for start < len(segments) {
		words := 0
		end := start
		for end < len(segments) && words < opts.TargetWords {
			words += wordCount(segments[end].Text)
			end++
		}

		chunks = append(chunks, newChunk(tr, segments[start:end], words))

		if end >= len(segments) {
			break
		}

		// Seed the next chunk with the tail of this one so boundary context
		// is shared, while guaranteeing forward progress.
		next := end - opts.OverlapSegments
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

func newChunk(tr transcript.Transcript, segments []transcript.Segment, words int) Chunk {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		parts[i] = strings.TrimSpace(seg.Text)
	}

	startTime := int(segments[0].Start)

	return Chunk{
		VideoID:    tr.VideoID,
		VideoTitle: tr.Title,
		Text:       strings.Join(parts, " "),
		StartTime:  startTime,
		URL:        DeepLink(tr.URL, startTime),
		WordCount:  words,
	}
}

// DeepLink appends the start-time parameter to a watch URL.
func DeepLink(baseURL string, startTime int) string {
	if baseURL == "" {
		return ""
	}
	separator := "&"
	if !strings.Contains(baseURL, "?") {
		separator = "?"
	}
	return fmt.Sprintf("%s%st=%ds", baseURL, separator, startTime)
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
