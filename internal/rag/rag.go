// Package rag implements the question-answering chain: embed the question,
// retrieve the nearest chunks from the index, and generate an answer grounded
// exclusively in that retrieved context.
package rag

import (
	"context"
	"errors"
)

// ErrInsufficientContext indicates retrieval produced no usable context for
// the question. The chain fails fast instead of letting the model answer
// from its own knowledge.
var ErrInsufficientContext = errors.New("no relevant context found for question")

// Embedder turns text into a fixed-dimension vector. Implementations wrap a
// concrete provider; the chain never depends on one directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// ModelName identifies the embedding model, used to key the index.
	ModelName() string
}

// Generator produces a completion for a system/user prompt pair. Generation
// is deterministic: implementations pin temperature to zero.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	ModelName() string
}

// Source identifies one chunk an answer was grounded in, in retrieval rank
// order.
type Source struct {
	SourcePath string
	Page       int
	Excerpt    string
}

// Answer is the result of one question-answering run.
type Answer struct {
	Text      string
	Sources   []Source
	Model     string
	Truncated bool
}
