package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/manualqa/manualqa/internal/index"
)

// Retriever answers nearest-neighbor lookups over the persisted index with a
// fixed result count.
type Retriever struct {
	embedder Embedder
	store    *index.Store
	k        int
}

// NewRetriever returns a retriever that embeds questions with embedder and
// searches store for the top k chunks.
func NewRetriever(embedder Embedder, store *index.Store, k int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("retriever requires an embedder")
	}
	if store == nil {
		return nil, fmt.Errorf("retriever requires an index store")
	}
	if k < 1 {
		return nil, fmt.Errorf("retriever requires k >= 1, got %d", k)
	}
	return &Retriever{embedder: embedder, store: store, k: k}, nil
}

// Retrieve embeds question and returns the k most similar chunks, scores
// descending. An empty question is rejected; an empty index yields an empty
// slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]index.Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	results, err := r.store.Query(ctx, vec, r.k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	return results, nil
}
