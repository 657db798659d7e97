package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/skyrag-assistant/server/internal/agent/model"
	"github.com/skyrag-assistant/server/internal/core"
	pkgredis "github.com/skyrag-assistant/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the assistant, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`
	HTTPAddr    string           `envconfig:"HTTP_ADDR" default:":8080"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Classifier   model.ClassifierModelConfig
	Response     model.ResponseModelConfig
	Embedding    model.EmbeddingConfig
	Weather      model.WeatherConfig
	VectorStore  model.VectorStoreConfig
	Ingestion    model.IngestionConfig
	TurnLog      model.TurnLogConfig
	Conversation model.ConversationConfig
}

// LoadConfig reads envFile when it exists and binds the environment.
func LoadConfig(envFile string) (*AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings needed to answer queries.
func (c *AppConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("GEMINI_API_KEY is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.VectorStore.TopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive, got %d", c.VectorStore.TopK)
	}
	return nil
}
