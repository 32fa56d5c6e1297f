package provider

import (
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/scholar/config"
	"github.com/mohammad-safakhou/scholar/provider/llm"
	offline_provider "github.com/mohammad-safakhou/scholar/provider/offline"
	openai_provider "github.com/mohammad-safakhou/scholar/provider/openai"
)

// Client names a text analysis backend
type Client string

const (
	OpenAI  Client = "openai"
	Offline Client = "offline"
)

// NewProvider creates the text analysis backend selected by cfg.Type
func NewProvider(cfg config.LLMConfig) (llm.Provider, error) {
	switch Client(cfg.Type) {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key not set")
		}
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.BaseURL,
			cfg.Model,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
			cfg.MaxRetries,
		), nil
	case Offline:
		return offline_provider.New(), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Type)
	}
}
