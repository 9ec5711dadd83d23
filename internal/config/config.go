// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables
//  2. Config file (~/.manualqa/config.yaml, or ./config.yaml)
//  3. Default values
//
// Defaults match the constants the service has always shipped with:
// chunk size 500, chunk overlap 50, top-k 3, and the Mistral provider at
// deterministic (temperature 0) decoding.
//
// Error handling uses sentinel errors so callers can check causes with
// errors.Is (see validation.go).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Provider identifiers used in Config.Provider.
const (
	ProviderMistral = "mistral"
	ProviderGemini  = "gemini"
	ProviderOllama  = "ollama"
)

// Default model identifiers per provider.
const (
	DefaultMistralModel    = "mistral-large-latest"
	DefaultMistralEmbedder = "mistral-embed"
	DefaultGeminiModel     = "gemini-2.5-flash"
	DefaultGeminiEmbedder  = "gemini-embedding-001"
)

// ServiceName identifies this service in health responses and logs.
const ServiceName = "manualqa"

// Config stores application configuration.
type Config struct {
	// Provider and model selection
	Provider      string `mapstructure:"provider" json:"provider"`
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Mistral configuration (only used when provider is "mistral")
	MistralBaseURL string `mapstructure:"mistral_base_url" json:"mistral_base_url"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Ingestion configuration
	DataDir      string `mapstructure:"data_dir" json:"data_dir"`
	IndexPath    string `mapstructure:"index_path" json:"index_path"`
	ChunkSize    int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval and generation configuration
	TopK            int `mapstructure:"top_k" json:"top_k"`
	MaxContextChars int `mapstructure:"max_context_chars" json:"max_context_chars"`

	// Serve configuration
	CORSOrigins           []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy            bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst             int      `mapstructure:"rate_burst" json:"rate_burst"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds" json:"request_timeout_seconds"`
	MaxConcurrentQueries  int      `mapstructure:"max_concurrent_queries" json:"max_concurrent_queries"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".manualqa")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	applyProviderDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("provider", ProviderMistral)
	viper.SetDefault("mistral_base_url", "https://api.mistral.ai/v1")
	viper.SetDefault("ollama_host", "http://localhost:11434")

	viper.SetDefault("data_dir", "data")
	viper.SetDefault("index_path", filepath.Join("models", "index.db"))
	viper.SetDefault("chunk_size", 500)
	viper.SetDefault("chunk_overlap", 50)

	viper.SetDefault("top_k", 3)
	viper.SetDefault("max_context_chars", 8000)

	viper.SetDefault("cors_origins", []string{})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 60)
	viper.SetDefault("request_timeout_seconds", 60)
	viper.SetDefault("max_concurrent_queries", 8)
}

// bindEnvVariables binds environment overrides explicitly.
// API keys (MISTRAL_API_KEY, GEMINI_API_KEY) are read directly by the
// provider clients, not via Viper; Validate checks their presence.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "MANUALQA_PROVIDER")
	mustBind("model_name", "MANUALQA_MODEL_NAME")
	mustBind("embedder_model", "MANUALQA_EMBEDDER_MODEL")
	mustBind("mistral_base_url", "MANUALQA_MISTRAL_BASE_URL")
	mustBind("ollama_host", "MANUALQA_OLLAMA_HOST")
	mustBind("data_dir", "MANUALQA_DATA_DIR")
	mustBind("index_path", "MANUALQA_INDEX_PATH")
	mustBind("cors_origins", "MANUALQA_CORS_ORIGINS")
	mustBind("trust_proxy", "MANUALQA_TRUST_PROXY")
	mustBind("rate_burst", "MANUALQA_RATE_BURST")
}

// applyProviderDefaults fills model names that depend on the selected provider.
func applyProviderDefaults(cfg *Config) {
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.ModelName == "" {
			cfg.ModelName = DefaultGeminiModel
		}
		if cfg.EmbedderModel == "" {
			cfg.EmbedderModel = DefaultGeminiEmbedder
		}
	case ProviderOllama:
		if cfg.ModelName == "" {
			cfg.ModelName = "llama3.3"
		}
		if cfg.EmbedderModel == "" {
			cfg.EmbedderModel = "nomic-embed-text"
		}
	default:
		if cfg.ModelName == "" {
			cfg.ModelName = DefaultMistralModel
		}
		if cfg.EmbedderModel == "" {
			cfg.EmbedderModel = DefaultMistralEmbedder
		}
	}
}
