package models

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tendant/ecosort-api/internal/config"
)

// New builds the configured provider wrapped with bounded retries
func New(ctx context.Context, cfg config.ModelConfig, logger *zap.Logger) (VisionModel, error) {
	base, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.MaxRetries == 0 {
		return base, nil
	}
	return WithRetry(base, cfg.MaxRetries, defaultRetryBackoff, logger), nil
}

func newProvider(ctx context.Context, cfg config.ModelConfig) (VisionModel, error) {
	apiKey := cfg.ResolveAPIKey()

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIModel(OpenAIConfig{
			APIKey:      apiKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Name,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}), nil
	case config.ProviderAnthropic:
		return NewAnthropicModel(AnthropicConfig{
			APIKey:      apiKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Name,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}), nil
	case config.ProviderGemini:
		m, err := NewGeminiModel(ctx, GeminiConfig{
			APIKey:      apiKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Name,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
