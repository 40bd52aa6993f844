package chat

import "fmt"

// FormatTimestamp renders seconds as MM:SS, or H:MM:SS past one hour.
// 872 -> "14:32".
func FormatTimestamp(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// Citation renders a chunk's deep link as a clickable markdown timestamp.
// Pure string work, so citations embedded in a prompt are reproducible and
// checkable without a model call.
func Citation(chunk ChunkResult) string {
	return fmt.Sprintf("[%s](%s)", FormatTimestamp(chunk.StartTime), chunk.URL)
}
