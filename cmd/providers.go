package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/astralhq/astral-assist/internal/ai"
	"github.com/astralhq/astral-assist/internal/config"
)

// buildEmbedder selects the embedding adapter from configuration.
func buildEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ai.Embedder, error) {
	key := config.APIKeyFor(cfg.EmbeddingProvider, cfg.EmbeddingAPIKey)

	switch cfg.EmbeddingProvider {
	case config.ProviderGemini:
		return ai.NewGeminiClient(ctx, ai.GeminiConfig{APIKey: key, Model: cfg.EmbeddingModel}, logger)
	case config.ProviderJina, config.ProviderOpenAI:
		baseURL := cfg.EmbeddingBaseURL
		if baseURL == "" && cfg.EmbeddingProvider == config.ProviderJina {
			baseURL = config.DefaultJinaBaseURL
		}
		return ai.NewOpenAIEmbedder(ai.OpenAIConfig{
			APIKey:  key,
			BaseURL: baseURL,
			Model:   cfg.EmbeddingModel,
		}, logger), nil
	default:
		return nil, fmt.Errorf("%w: embedding provider %q", config.ErrInvalidProvider, cfg.EmbeddingProvider)
	}
}

// buildGenerator selects the generation adapter from configuration.
func buildGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ai.Generator, error) {
	key := config.APIKeyFor(cfg.GenerationProvider, cfg.GenerationAPIKey)

	switch cfg.GenerationProvider {
	case config.ProviderGemini:
		return ai.NewGeminiClient(ctx, ai.GeminiConfig{APIKey: key, Model: cfg.GenerationModel}, logger)
	case config.ProviderGroq, config.ProviderOpenAI:
		baseURL := cfg.GenerationBaseURL
		if baseURL == "" && cfg.GenerationProvider == config.ProviderGroq {
			baseURL = config.DefaultGroqBaseURL
		}
		return ai.NewOpenAIGenerator(ai.OpenAIConfig{
			APIKey:  key,
			BaseURL: baseURL,
			Model:   cfg.GenerationModel,
		}, logger), nil
	default:
		return nil, fmt.Errorf("%w: generation provider %q", config.ErrInvalidProvider, cfg.GenerationProvider)
	}
}
