package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/fabfab/tube-agent/llm"
	"github.com/fabfab/tube-agent/memory"
)

// noContextMarker is sent to the model when retrieval finds nothing, so an
// empty index degrades to an honest "I don't know" instead of an error.
const noContextMarker = "No relevant transcript chunks were retrieved."

// GenerationError reports a failed call to the generation collaborator. The
// exchange is not recorded in conversation memory, so a retry is safe.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate answer: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Service answers questions about indexed videos. Each answer is grounded in
// retrieved chunks whose citations are handed to the model pre-built, so it
// never has to reconstruct a URL.
type Service struct {
	retriever *Retriever
	memory    memory.Store
	llm       llm.Client
	logger    *log.Logger
	retrieveK int
}

func NewService(retriever *Retriever, memoryStore memory.Store, llmClient llm.Client, retrieveK int, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if retrieveK <= 0 {
		retrieveK = defaultRetrieveK
	}

	return &Service{
		retriever: retriever,
		memory:    memoryStore,
		llm:       llmClient,
		logger:    logger,
		retrieveK: retrieveK,
	}
}

// Ask retrieves context for the question, generates a grounded answer, and
// records the exchange in the session's memory. Citations cover every chunk
// the model saw, in relevance order.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (Response, error) {
	return s.AskWithK(ctx, sessionID, question, 0)
}

// AskWithK answers like Ask but retrieves k chunks for this request only.
// k <= 0 falls back to the configured default.
func (s *Service) AskWithK(ctx context.Context, sessionID, question string, k int) (Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Response{}, fmt.Errorf("question cannot be empty")
	}
	if s.retriever == nil {
		return Response{}, fmt.Errorf("retriever is not configured")
	}
	if s.memory == nil {
		return Response{}, fmt.Errorf("memory store is not configured")
	}
	if s.llm == nil {
		return Response{}, fmt.Errorf("llm client is not configured")
	}

	if k <= 0 {
		k = s.retrieveK
	}

	chunks, err := s.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return Response{}, fmt.Errorf("retrieve context: %w", err)
	}

	citations := make([]string, len(chunks))
	for i, chunk := range chunks {
		citations[i] = Citation(chunk)
	}

	if len(chunks) == 0 {
		s.logger.Printf("no indexed context for question, answering with empty-context marker")
	}

	turns, err := s.memory.Turns(ctx, sessionID)
	if err != nil {
		return Response{}, fmt.Errorf("load conversation history: %w", err)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt()},
		{Role: llm.RoleUser, Content: formatUserPrompt(question, memory.Render(turns), buildContextBlock(chunks))},
	}

	answer, err := s.llm.Generate(ctx, messages)
	if err != nil {
		return Response{}, &GenerationError{Err: err}
	}
	answer = strings.TrimSpace(answer)

	if err := s.memory.Append(ctx, sessionID, memory.Turn{Question: question, Answer: answer}); err != nil {
		// The answer is already generated; losing one turn of history is the
		// lesser failure, so report it and return the answer anyway.
		s.logger.Printf("append turn to session %s failed: %v", sessionID, err)
	}

	return Response{Answer: answer, Citations: citations}, nil
}

// buildContextBlock pairs every chunk's text with its ready-made citation
// link. Giving the model finished links is what keeps cited URLs real.
func buildContextBlock(chunks []ChunkResult) string {
	if len(chunks) == 0 {
		return noContextMarker
	}

	var sb strings.Builder
	for idx, chunk := range chunks {
		sb.WriteString(fmt.Sprintf("[Chunk %d] video=%q start=%s citation=%s\n",
			idx+1, chunk.VideoTitle, FormatTimestamp(chunk.StartTime), Citation(chunk)))
		sb.WriteString(strings.TrimSpace(chunk.Content))
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

func systemPrompt() string {
	return "You are a helpful assistant answering questions about one or more videos.\n" +
		"You MUST answer only using the provided CONTEXT.\n" +
		"If the answer is not in the context, say: \"I don't know based on the provided video transcripts.\"\n" +
		"When you reference information, cite it with the clickable markdown timestamp links given as citation= in the context, exactly as provided.\n" +
		"Prefer citing the most relevant chunk(s); multiple citations are fine."
}

func formatUserPrompt(question, history, contextBlock string) string {
	var sb strings.Builder
	sb.WriteString("CHAT HISTORY:\n")
	sb.WriteString(history)
	sb.WriteString("\n\nQUESTION:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nCONTEXT:\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}
