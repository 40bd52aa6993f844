package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/fabfab/tube-agent/embeddings"
)

const defaultRetrieveK = 4

// Retriever embeds a query and looks up the most relevant chunks across all
// indexed videos. An empty index yields an empty result, not an error.
type Retriever struct {
	embedder embeddings.Embedder
	store    VectorStore
}

func NewRetriever(embedder embeddings.Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]ChunkResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		k = defaultRetrieveK
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	chunks, err := r.store.SimilarChunks(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	return chunks, nil
}
