package memory

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
)

// fakeRedisHook serves list commands from an in-process map so the
// RPUSH+LTRIM windowing can be exercised without a running server. The
// process hooks never call next, so the client never dials.
type fakeRedisHook struct {
	mu    sync.Mutex
	lists map[string][]string
	trims [][2]int64
}

func newFakeRedisClient(h *fakeRedisHook) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	client.AddHook(h)
	return client
}

func (h *fakeRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *fakeRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		return h.apply(cmd)
	}
}

func (h *fakeRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			if err := h.apply(cmd); err != nil {
				return err
			}
		}
		return nil
	}
}

func (h *fakeRedisHook) apply(cmd redis.Cmder) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lists == nil {
		h.lists = make(map[string][]string)
	}

	args := cmd.Args()
	switch args[0] {
	case "rpush":
		key := args[1].(string)
		for _, v := range args[2:] {
			h.lists[key] = append(h.lists[key], argString(v))
		}
		cmd.(*redis.IntCmd).SetVal(int64(len(h.lists[key])))
	case "ltrim":
		key := args[1].(string)
		start, stop := args[2].(int64), args[3].(int64)
		h.trims = append(h.trims, [2]int64{start, stop})
		h.lists[key] = sliceRange(h.lists[key], start, stop)
		cmd.(*redis.StatusCmd).SetVal("OK")
	case "lrange":
		key := args[1].(string)
		start, stop := args[2].(int64), args[3].(int64)
		cmd.(*redis.StringSliceCmd).SetVal(sliceRange(h.lists[key], start, stop))
	}
	return nil
}

func argString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return ""
	}
}

// sliceRange applies Redis list range semantics, including negative offsets.
func sliceRange(list []string, start, stop int64) []string {
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out
}

func TestRedisStoreWindowsTurns(t *testing.T) {
	hook := &fakeRedisHook{}
	store := NewRedisStore(newFakeRedisClient(hook), 5)
	ctx := context.Background()

	questions := []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7"}
	for _, q := range questions {
		if err := store.Append(ctx, "s1", Turn{Question: q, Answer: "a-" + q}); err != nil {
			t.Fatalf("append %s: %v", q, err)
		}
	}

	turns, err := store.Turns(ctx, "s1")
	if err != nil {
		t.Fatalf("turns: %v", err)
	}
	if len(turns) != 5 {
		t.Fatalf("expected window of 5 turns, got %d", len(turns))
	}
	if turns[0].Question != "q3" || turns[4].Question != "q7" {
		t.Fatalf("expected q3..q7 oldest-first, got %+v", turns)
	}

	if len(hook.trims) != len(questions) {
		t.Fatalf("expected a trim per append, got %d", len(hook.trims))
	}
	for _, trim := range hook.trims {
		if trim != [2]int64{-5, -1} {
			t.Fatalf("expected LTRIM -5 -1, got %v", trim)
		}
	}
}

func TestRedisStoreDefaultWindow(t *testing.T) {
	hook := &fakeRedisHook{}
	store := NewRedisStore(newFakeRedisClient(hook), 0)

	if err := store.Append(context.Background(), "s1", Turn{Question: "q", Answer: "a"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(hook.trims) != 1 || hook.trims[0] != [2]int64{-int64(DefaultWindow), -1} {
		t.Fatalf("expected default window trim, got %v", hook.trims)
	}
}

func TestRedisStoreSessionsAreIsolated(t *testing.T) {
	hook := &fakeRedisHook{}
	store := NewRedisStore(newFakeRedisClient(hook), 5)
	ctx := context.Background()

	if err := store.Append(ctx, "a", Turn{Question: "for a", Answer: "x"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, "b", Turn{Question: "for b", Answer: "y"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	turns, err := store.Turns(ctx, "a")
	if err != nil {
		t.Fatalf("turns: %v", err)
	}
	if len(turns) != 1 || turns[0].Question != "for a" {
		t.Fatalf("unexpected turns for session a: %+v", turns)
	}
}

func TestRedisStoreEmptySession(t *testing.T) {
	store := NewRedisStore(newFakeRedisClient(&fakeRedisHook{}), 5)

	turns, err := store.Turns(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("turns: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected no turns, got %d", len(turns))
	}
}

func TestRedisStoreBlankSessionUsesDefaultKey(t *testing.T) {
	store := NewRedisStore(newFakeRedisClient(&fakeRedisHook{}), 5)
	ctx := context.Background()

	if err := store.Append(ctx, "", Turn{Question: "q", Answer: "a"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	turns, err := store.Turns(ctx, "default")
	if err != nil {
		t.Fatalf("turns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected blank session to share the default key, got %d turns", len(turns))
	}
}
