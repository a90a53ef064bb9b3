package gateway

import (
	"context"
	"fmt"

	"shellpilot/internal/config"
)

// NewClient constructs the gateway client selected by configuration.
func NewClient(ctx context.Context, cfg *config.Config) (Client, error) {
	timeout, err := cfg.LLMTimeout()
	if err != nil {
		return nil, err
	}

	switch cfg.LLM.Provider {
	case "openai", "":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: timeout,
		}), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
