package cache

import (
	"context"
	"database/sql"
	"io"
	"log"
	"path/filepath"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/fabfab/tube-agent/transcript"
)

func openTestCache(t *testing.T) (*TranscriptCache, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(dir, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, dir
}

func sampleTranscript() transcript.Transcript {
	return transcript.Transcript{
		VideoID: "dQw4w9WgXcQ",
		Title:   "Test Video",
		URL:     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Segments: []transcript.Segment{
			{Text: "hello", Start: 0, End: 2.5},
			{Text: "world", Start: 2.5, End: 5},
		},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()
	tr := sampleTranscript()

	if err := c.Put(ctx, tr); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok := c.Get(ctx, tr.VideoID)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !reflect.DeepEqual(got, tr) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, tr)
	}
}

func TestGetMissingIsMiss(t *testing.T) {
	c, _ := openTestCache(t)

	if _, ok := c.Get(context.Background(), "nope-missing"); ok {
		t.Fatal("expected miss for unknown video id")
	}
}

func TestPutIsIdempotent(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()
	tr := sampleTranscript()

	if err := c.Put(ctx, tr); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.Put(ctx, tr); err != nil {
		t.Fatalf("second put: %v", err)
	}

	if _, ok := c.Get(ctx, tr.VideoID); !ok {
		t.Fatal("expected hit after re-put")
	}
}

func TestCorruptEntryDegradesToMiss(t *testing.T) {
	c, dir := openTestCache(t)
	ctx := context.Background()
	tr := sampleTranscript()

	if err := c.Put(ctx, tr); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Clobber the stored payload behind the cache's back.
	db, err := sql.Open("sqlite", filepath.Join(dir, "transcripts.db"))
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec("UPDATE transcripts SET payload = ? WHERE video_id = ?", []byte("{not json"), tr.VideoID); err != nil {
		t.Fatalf("corrupt entry: %v", err)
	}

	if _, ok := c.Get(ctx, tr.VideoID); ok {
		t.Fatal("corrupt entry must read as a miss, not a hit")
	}
}

func TestPutRejectsMissingVideoID(t *testing.T) {
	c, _ := openTestCache(t)
	if err := c.Put(context.Background(), transcript.Transcript{}); err == nil {
		t.Fatal("expected error for transcript without video id")
	}
}
