package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/manualqa/manualqa/internal/config"
	"github.com/manualqa/manualqa/internal/log"
)

// newGenkit initializes Genkit with the gemini or ollama plugin and wraps
// its embedder and generation entry points behind the chain interfaces.
func newGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkitEmbedder, *genkitGenerator, error) {
	var (
		g        *genkit.Genkit
		embedder ai.Embedder
		modelRef string
	)

	switch cfg.Provider {
	case config.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		plugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		plugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		embedder = ollama.Embedder(g, cfg.OllamaHost)
		modelRef = "ollama/" + cfg.ModelName
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderGemini:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, nil, errors.New("initializing genkit with gemini provider")
		}
		embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
		modelRef = "googleai/" + cfg.ModelName
		logger.Info("initialized genkit with gemini provider", "model", cfg.ModelName)

	default:
		return nil, nil, fmt.Errorf("provider %q is not genkit-backed", cfg.Provider)
	}

	return &genkitEmbedder{embedder: embedder, model: cfg.EmbedderModel},
		&genkitGenerator{g: g, modelRef: modelRef, model: cfg.ModelName}, nil
}

type genkitEmbedder struct {
	embedder ai.Embedder
	model    string
}

func (e *genkitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("genkit embed request: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("genkit returned no embeddings")
	}
	return resp.Embeddings[0].Embedding, nil
}

func (e *genkitEmbedder) ModelName() string { return e.model }

type genkitGenerator struct {
	g        *genkit.Genkit
	modelRef string
	model    string
}

func (g *genkitGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, g.g,
		ai.WithModelName(g.modelRef),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
		ai.WithConfig(map[string]any{"temperature": 0.0}),
	)
	if err != nil {
		return "", fmt.Errorf("genkit generate: %w", err)
	}
	return resp.Text(), nil
}

func (g *genkitGenerator) ModelName() string { return g.model }
