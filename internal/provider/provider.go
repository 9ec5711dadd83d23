// Package provider builds the concrete embedding and generation clients for
// the configured AI provider. Mistral speaks its OpenAI-compatible API
// directly; gemini and ollama go through Genkit plugins.
package provider

import (
	"context"
	"fmt"

	"github.com/manualqa/manualqa/internal/config"
	"github.com/manualqa/manualqa/internal/log"
	"github.com/manualqa/manualqa/internal/rag"
)

// New returns the embedder and generator for cfg.Provider. Credentials are
// read from the environment; missing ones fail here, before any document is
// touched.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (rag.Embedder, rag.Generator, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	switch cfg.Provider {
	case config.ProviderMistral:
		return newMistral(cfg, logger)
	case config.ProviderGemini, config.ProviderOllama:
		return newGenkit(ctx, cfg, logger)
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
