// Package transcript defines the timestamped transcript model and the
// collaborators that produce it (audio download and speech-to-text).
package transcript

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Segment is the smallest timestamped unit of a transcript, as emitted by
// speech-to-text. Start and End are offsets in seconds from the beginning of
// the recording.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the full timestamped transcript of one video.
type Transcript struct {
	VideoID  string    `json:"video_id"`
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	Segments []Segment `json:"segments"`
}

// TranscriptionError reports a failed transcription attempt for a video. The
// cache is never written on this path, so a retry starts from scratch.
type TranscriptionError struct {
	VideoID string
	Err     error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcribe video %s: %v", e.VideoID, e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractVideoID pulls the 11-character video ID out of the common YouTube URL
// shapes (watch?v=, youtu.be/, /shorts/, /embed/) or accepts a raw ID.
func ExtractVideoID(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("youtube url is empty")
	}

	if videoIDPattern.MatchString(value) {
		return value, nil
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("parse youtube url %q: %w", raw, err)
	}

	host := strings.ToLower(parsed.Hostname())
	path := parsed.Path

	if strings.Contains(host, "youtu.be") {
		candidate := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]
		if videoIDPattern.MatchString(candidate) {
			return candidate, nil
		}
		return "", fmt.Errorf("no video id in youtu.be url %q", raw)
	}

	if strings.Contains(host, "youtube.com") {
		if path == "/watch" {
			if candidate := parsed.Query().Get("v"); videoIDPattern.MatchString(candidate) {
				return candidate, nil
			}
			return "", fmt.Errorf("no video id in watch url %q", raw)
		}
		for _, prefix := range []string{"/shorts/", "/embed/"} {
			if strings.HasPrefix(path, prefix) {
				candidate := strings.SplitN(strings.TrimPrefix(path, prefix), "/", 2)[0]
				if videoIDPattern.MatchString(candidate) {
					return candidate, nil
				}
			}
		}
	}

	if candidate := parsed.Query().Get("v"); videoIDPattern.MatchString(candidate) {
		return candidate, nil
	}

	return "", fmt.Errorf("could not extract a video id from %q", raw)
}

// CanonicalURL returns the normalised watch URL for a video ID.
func CanonicalURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
