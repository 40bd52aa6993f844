// Package memory keeps a bounded sliding window of question/answer turns per
// conversation session.
package memory

import (
	"context"
	"strings"
	"sync"
)

// DefaultWindow is how many recent turns a session retains.
const DefaultWindow = 5

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Store holds per-session conversation windows. Append evicts the oldest turn
// once a session is at capacity. Sessions are created lazily and are invisible
// to each other.
type Store interface {
	Append(ctx context.Context, sessionID string, turn Turn) error
	Turns(ctx context.Context, sessionID string) ([]Turn, error)
}

// Render serializes turns for inclusion in a prompt, oldest first.
func Render(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}

	lines := make([]string, 0, len(turns)*2)
	for _, turn := range turns {
		lines = append(lines, "Human: "+turn.Question)
		lines = append(lines, "Assistant: "+turn.Answer)
	}
	return strings.Join(lines, "\n")
}

// LocalStore is an in-process Store. Suitable for a single instance; use
// RedisStore when several instances must share sessions.
type LocalStore struct {
	window int

	mu       sync.Mutex
	sessions map[string][]Turn
}

func NewLocalStore(window int) *LocalStore {
	if window <= 0 {
		window = DefaultWindow
	}

	return &LocalStore{
		window:   window,
		sessions: make(map[string][]Turn),
	}
}

var _ Store = (*LocalStore)(nil)

func (s *LocalStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[normalizeSession(sessionID)], turn)
	if len(turns) > s.window {
		turns = turns[len(turns)-s.window:]
	}
	s.sessions[normalizeSession(sessionID)] = turns
	return nil
}

func (s *LocalStore) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.sessions[normalizeSession(sessionID)]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func normalizeSession(sessionID string) string {
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return "default"
	}
	return trimmed
}
