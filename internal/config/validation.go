package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidChunking indicates chunk_size/chunk_overlap are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidTopK indicates top_k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidDataDir indicates the ingestion data directory is invalid.
	ErrInvalidDataDir = errors.New("invalid data directory")

	// ErrInvalidIndexPath indicates the index path is invalid.
	ErrInvalidIndexPath = errors.New("invalid index path")
)

// Validate checks configuration invariants shared by every command.
// Returns a sentinel-wrapped error on the first violation found.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderMistral, ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("%w: %q (supported: mistral, gemini, ollama)", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model_name is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model is empty", ErrInvalidModelName)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap must be non-negative, got %d", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	if c.TopK < 1 {
		return fmt.Errorf("%w: top_k must be at least 1, got %d", ErrInvalidTopK, c.TopK)
	}

	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("%w: data_dir is empty", ErrInvalidDataDir)
	}
	if strings.TrimSpace(c.IndexPath) == "" {
		return fmt.Errorf("%w: index_path is empty", ErrInvalidIndexPath)
	}

	return nil
}

// ValidateCredentials checks that the credential required by the selected
// provider is present in the environment. Called by commands that will hit
// the remote embedding/generation APIs (ingest, ask, serve); a missing
// credential is a fatal configuration error, never a per-request one.
func (c *Config) ValidateCredentials() error {
	switch c.Provider {
	case ProviderMistral:
		if os.Getenv("MISTRAL_API_KEY") == "" {
			return fmt.Errorf("%w: MISTRAL_API_KEY environment variable not set", ErrMissingAPIKey)
		}
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable not set", ErrMissingAPIKey)
		}
	case ProviderOllama:
		// Local provider, no credential.
	}
	return nil
}
