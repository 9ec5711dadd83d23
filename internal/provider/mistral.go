package provider

import (
	"context"
	"fmt"
	"math"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/manualqa/manualqa/internal/config"
	"github.com/manualqa/manualqa/internal/log"
)

// pinnedTemperature requests temperature 0. The client library drops a
// literal zero from the request body, so the smallest positive float stands
// in for it.
const pinnedTemperature = math.SmallestNonzeroFloat32

// newMistral builds the embedder and generator against Mistral's
// OpenAI-compatible API.
func newMistral(cfg *config.Config, logger log.Logger) (*mistralEmbedder, *mistralGenerator, error) {
	key := os.Getenv("MISTRAL_API_KEY")
	if key == "" {
		return nil, nil, fmt.Errorf("MISTRAL_API_KEY environment variable not set")
	}

	clientCfg := openai.DefaultConfig(key)
	clientCfg.BaseURL = cfg.MistralBaseURL
	client := openai.NewClientWithConfig(clientCfg)

	logger.Info("initialized mistral provider",
		"model", cfg.ModelName, "embedder", cfg.EmbedderModel, "base_url", cfg.MistralBaseURL)

	return &mistralEmbedder{client: client, model: cfg.EmbedderModel},
		&mistralGenerator{client: client, model: cfg.ModelName}, nil
}

type mistralEmbedder struct {
	client *openai.Client
	model  string
}

func (e *mistralEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("mistral embeddings request: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("mistral returned no embedding data")
	}
	return resp.Data[0].Embedding, nil
}

func (e *mistralEmbedder) ModelName() string { return e.model }

type mistralGenerator struct {
	client *openai.Client
	model  string
}

func (g *mistralGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: pinnedTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("mistral chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("mistral returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *mistralGenerator) ModelName() string { return g.model }
