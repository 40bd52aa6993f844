package transcript

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Downloader fetches the audio track of a video to local disk and reports the
// video title. The returned path is a temporary file the caller must remove.
type Downloader interface {
	DownloadAudio(ctx context.Context, videoID string) (audioPath, title string, err error)
}

type ytdlpDownloader struct {
	binary  string
	workDir string
}

// NewYtdlpDownloader returns a Downloader that shells out to yt-dlp. Audio is
// downloaded in its native container (m4a/webm); Whisper accepts both, so no
// ffmpeg post-processing is needed.
func NewYtdlpDownloader(workDir string) Downloader {
	return &ytdlpDownloader{binary: "yt-dlp", workDir: workDir}
}

func (d *ytdlpDownloader) DownloadAudio(ctx context.Context, videoID string) (string, string, error) {
	if err := os.MkdirAll(d.workDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create download directory: %w", err)
	}

	target := filepath.Join(d.workDir, videoID+".%(ext)s")
	cmd := exec.CommandContext(ctx, d.binary,
		"--quiet",
		"--no-warnings",
		"--no-playlist",
		"--format", "bestaudio/best",
		"--output", target,
		"--print", "after_move:filepath",
		"--print", "title",
		CanonicalURL(videoID),
	)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return "", "", fmt.Errorf("yt-dlp: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", "", fmt.Errorf("run yt-dlp: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) < 2 {
		return "", "", fmt.Errorf("unexpected yt-dlp output: %q", string(output))
	}

	// --print emits in declaration order: title first, then the moved filepath.
	title := strings.TrimSpace(lines[0])
	audioPath := strings.TrimSpace(lines[len(lines)-1])
	if title == "" {
		title = "Untitled video"
	}

	if _, err := os.Stat(audioPath); err != nil {
		return "", "", fmt.Errorf("downloaded audio missing: %w", err)
	}

	return audioPath, title, nil
}
