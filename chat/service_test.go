package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/fabfab/tube-agent/embeddings"
	"github.com/fabfab/tube-agent/llm"
	"github.com/fabfab/tube-agent/memory"
)

type stubEmbedder struct {
	vectors [][]float32
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors, nil
}

var _ embeddings.Embedder = (*stubEmbedder)(nil)

type stubVectorStore struct {
	results   []ChunkResult
	err       error
	lastLimit int
}

func (s *stubVectorStore) SimilarChunks(ctx context.Context, embedding []float32, limit int) ([]ChunkResult, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

var _ VectorStore = (*stubVectorStore)(nil)

type stubLLM struct {
	answer     string
	err        error
	lastPrompt string
}

func (s *stubLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	if len(messages) > 0 {
		s.lastPrompt = messages[len(messages)-1].Content
	}
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

var _ llm.Client = (*stubLLM)(nil)

func testService(store VectorStore, client llm.Client, mem memory.Store) *Service {
	retriever := NewRetriever(&stubEmbedder{vectors: [][]float32{{0.1, 0.2}}}, store)
	return NewService(retriever, mem, client, 4, log.New(io.Discard, "", 0))
}

func resultChunk(id string, start int) ChunkResult {
	return ChunkResult{
		ChunkID:    id,
		VideoID:    "dQw4w9WgXcQ",
		VideoTitle: "Test Video",
		Content:    "Something relevant was said here.",
		StartTime:  start,
		URL:        "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=872s",
		Score:      0.8,
	}
}

func TestAskReturnsAnswerWithCitations(t *testing.T) {
	client := &stubLLM{answer: "The speaker explains it at [14:32]."}
	svc := testService(
		&stubVectorStore{results: []ChunkResult{resultChunk("c1", 872)}},
		client,
		memory.NewLocalStore(5),
	)

	resp, err := svc.Ask(context.Background(), "s1", "What was said?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Answer != "The speaker explains it at [14:32]." {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if len(resp.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(resp.Citations))
	}
	if resp.Citations[0] != "[14:32](https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=872s)" {
		t.Fatalf("unexpected citation: %s", resp.Citations[0])
	}
	if !strings.Contains(client.lastPrompt, "citation=[14:32]") {
		t.Fatalf("expected pre-built citation in prompt, got:\n%s", client.lastPrompt)
	}
}

func TestAskRecordsExchangeInMemory(t *testing.T) {
	mem := memory.NewLocalStore(5)
	svc := testService(
		&stubVectorStore{results: []ChunkResult{resultChunk("c1", 10)}},
		&stubLLM{answer: "An answer."},
		mem,
	)

	if _, err := svc.Ask(context.Background(), "s1", "First?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	turns, err := mem.Turns(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 1 || turns[0].Question != "First?" || turns[0].Answer != "An answer." {
		t.Fatalf("unexpected memory contents: %+v", turns)
	}
}

func TestAskHistoryAppearsInPrompt(t *testing.T) {
	mem := memory.NewLocalStore(5)
	client := &stubLLM{answer: "Second answer."}
	svc := testService(
		&stubVectorStore{results: []ChunkResult{resultChunk("c1", 10)}},
		client,
		mem,
	)

	if _, err := svc.Ask(context.Background(), "s1", "First?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Ask(context.Background(), "s1", "Second?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(client.lastPrompt, "Human: First?") {
		t.Fatalf("expected prior turn in prompt, got:\n%s", client.lastPrompt)
	}
}

func TestAskEmptyRetrievalStillAnswers(t *testing.T) {
	client := &stubLLM{answer: "I don't know based on the provided video transcripts."}
	svc := testService(&stubVectorStore{results: []ChunkResult{}}, client, memory.NewLocalStore(5))

	resp, err := svc.Ask(context.Background(), "s1", "What is X?")
	if err != nil {
		t.Fatalf("expected degraded success, got error: %v", err)
	}
	if len(resp.Citations) != 0 {
		t.Fatalf("expected no citations, got %d", len(resp.Citations))
	}
	if !strings.Contains(client.lastPrompt, noContextMarker) {
		t.Fatalf("expected empty-context marker in prompt, got:\n%s", client.lastPrompt)
	}
}

func TestAskGenerationFailureLeavesMemoryUntouched(t *testing.T) {
	mem := memory.NewLocalStore(5)
	svc := testService(
		&stubVectorStore{results: []ChunkResult{resultChunk("c1", 10)}},
		&stubLLM{err: errors.New("rate limited")},
		mem,
	)

	_, err := svc.Ask(context.Background(), "s1", "Will this fail?")
	if err == nil {
		t.Fatal("expected generation error")
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %T: %v", err, err)
	}

	turns, memErr := mem.Turns(context.Background(), "s1")
	if memErr != nil {
		t.Fatalf("unexpected error: %v", memErr)
	}
	if len(turns) != 0 {
		t.Fatalf("failed exchange must not be recorded, got %d turns", len(turns))
	}
}

func TestAskWithKOverridesRetrieveK(t *testing.T) {
	store := &stubVectorStore{results: []ChunkResult{resultChunk("c1", 10)}}
	svc := testService(store, &stubLLM{answer: "ok"}, memory.NewLocalStore(5))

	if _, err := svc.AskWithK(context.Background(), "s1", "How many?", 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastLimit != 2 {
		t.Fatalf("expected per-request k=2 to reach the store, got %d", store.lastLimit)
	}

	// Zero and negative fall back to the configured default.
	if _, err := svc.AskWithK(context.Background(), "s1", "How many?", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastLimit != 4 {
		t.Fatalf("expected configured k=4 for k<=0, got %d", store.lastLimit)
	}
}

func TestAskValidatesQuestion(t *testing.T) {
	svc := testService(&stubVectorStore{}, &stubLLM{}, memory.NewLocalStore(5))
	if _, err := svc.Ask(context.Background(), "s1", "   "); err == nil {
		t.Fatal("expected error for empty question")
	}
}

func TestRetrieveEmptyIndexReturnsEmpty(t *testing.T) {
	retriever := NewRetriever(&stubEmbedder{vectors: [][]float32{{0.3}}}, &stubVectorStore{results: []ChunkResult{}})

	chunks, err := retriever.Retrieve(context.Background(), "what is X?", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected empty result, got %d", len(chunks))
	}
}

func TestRetrieveValidatesQuery(t *testing.T) {
	retriever := NewRetriever(&stubEmbedder{}, &stubVectorStore{})
	if _, err := retriever.Retrieve(context.Background(), " ", 4); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestRetrieveSurfacesEmbedderFailure(t *testing.T) {
	retriever := NewRetriever(&stubEmbedder{err: errors.New("down")}, &stubVectorStore{})
	if _, err := retriever.Retrieve(context.Background(), "query", 4); err == nil {
		t.Fatal("expected error when embedder fails")
	}
}
