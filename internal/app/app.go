// Package app wires configuration, provider clients, the vector index and
// the question-answering chain into one initialized container.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/manualqa/manualqa/internal/chunker"
	"github.com/manualqa/manualqa/internal/config"
	"github.com/manualqa/manualqa/internal/document"
	"github.com/manualqa/manualqa/internal/index"
	"github.com/manualqa/manualqa/internal/ingest"
	"github.com/manualqa/manualqa/internal/log"
	"github.com/manualqa/manualqa/internal/provider"
	"github.com/manualqa/manualqa/internal/rag"
)

// ErrIndexMissing indicates no persisted index exists at the configured
// path. Run the ingest command first.
var ErrIndexMissing = errors.New("no index found; run ingestion first")

// App is the initialized application container. Exactly one of Engine or
// Pipeline is set, depending on which Setup variant built it.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Store     *index.Store
	Embedder  rag.Embedder
	Generator rag.Generator
	Engine    *rag.Engine
	Pipeline  *ingest.Pipeline
}

// Close releases the index handle.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// Setup builds the query-side application. The persisted index must already
// exist; a store recorded under a different embedding model is rejected.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a, err := setupCommon(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if retErr != nil {
			_ = a.Close()
		}
	}()

	if !index.Exists(cfg.IndexPath) {
		return nil, fmt.Errorf("%w (looked at %q)", ErrIndexMissing, cfg.IndexPath)
	}

	store, err := index.Open(cfg.IndexPath, a.Embedder.ModelName(), a.Logger)
	if err != nil {
		return nil, err
	}
	a.Store = store

	retriever, err := rag.NewRetriever(a.Embedder, store, cfg.TopK)
	if err != nil {
		return nil, err
	}
	engine, err := rag.NewEngine(retriever, a.Generator, cfg.MaxContextChars, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Engine = engine

	return a, nil
}

// SetupIngest builds the ingestion-side application. The index file is
// created if absent.
func SetupIngest(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a, err := setupCommon(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if retErr != nil {
			_ = a.Close()
		}
	}()

	store, err := index.Open(cfg.IndexPath, a.Embedder.ModelName(), a.Logger)
	if err != nil {
		return nil, err
	}
	a.Store = store

	splitter, err := chunker.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	pipeline, err := ingest.New(document.NewLoader(a.Logger), splitter, a.Embedder, store, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Pipeline = pipeline

	return a, nil
}

// setupCommon validates configuration and credentials and builds the
// provider clients shared by both setup paths.
func setupCommon(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}

	embedder, generator, err := provider.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Embedder:  embedder,
		Generator: generator,
	}, nil
}
