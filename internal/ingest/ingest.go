// Package ingest runs the offline indexing pipeline: load documents, split
// them into chunks, embed each chunk, and persist the result to the vector
// index.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/manualqa/manualqa/internal/chunker"
	"github.com/manualqa/manualqa/internal/document"
	"github.com/manualqa/manualqa/internal/index"
	"github.com/manualqa/manualqa/internal/log"
	"github.com/manualqa/manualqa/internal/rag"
)

// Stats summarizes one ingestion run.
type Stats struct {
	Documents int
	Chunks    int
	Duration  time.Duration
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	loader   *document.Loader
	splitter *chunker.Splitter
	embedder rag.Embedder
	store    *index.Store
	logger   log.Logger
}

// New creates a pipeline. All stages are required.
func New(loader *document.Loader, splitter *chunker.Splitter, embedder rag.Embedder, store *index.Store, logger log.Logger) (*Pipeline, error) {
	if loader == nil || splitter == nil || embedder == nil || store == nil {
		return nil, fmt.Errorf("pipeline requires loader, splitter, embedder and store")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}, nil
}

// Run ingests every supported document under dir into the store. Chunks are
// embedded one at a time, in document order, so a provider failure surfaces
// with the chunk that caused it and the store is never partially written.
func (p *Pipeline) Run(ctx context.Context, dir string, mode index.Mode) (*Stats, error) {
	start := time.Now()

	docs, err := p.loader.Load(ctx, dir)
	if err != nil {
		return nil, err
	}
	p.logger.Info("documents loaded", "dir", dir, "documents", len(docs))

	chunks := p.splitter.SplitAll(docs)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("documents under %q produced no chunks", dir)
	}
	p.logger.Info("documents split", "chunks", len(chunks))

	docsByID := make(map[string]document.Document, len(docs))
	for _, d := range docs {
		docsByID[d.ID] = d
	}

	entries := make([]index.Entry, 0, len(chunks))
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vec, err := p.embedder.Embed(ctx, c.Text)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk %d of %d (%s): %w", i+1, len(chunks), c.ID, err)
		}

		doc := docsByID[c.DocumentID]
		entries = append(entries, index.Entry{
			ID:          c.ID,
			Content:     c.Text,
			SourcePath:  doc.SourcePath,
			Page:        doc.Page,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
			Embedding:   vec,
		})

		if (i+1)%50 == 0 {
			p.logger.Info("embedding progress", "done", i+1, "total", len(chunks))
		}
	}

	if err := p.store.Build(ctx, entries, mode); err != nil {
		return nil, err
	}

	stats := &Stats{
		Documents: len(docs),
		Chunks:    len(chunks),
		Duration:  time.Since(start),
	}
	p.logger.Info("ingestion complete",
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"mode", string(mode),
		"duration", stats.Duration.Round(time.Millisecond))
	return stats, nil
}
