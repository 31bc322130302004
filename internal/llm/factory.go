package llm

import (
	"context"
	"fmt"

	"reelnotes/internal/config"
	"reelnotes/internal/services"
)

// FromConfig builds the Completer selected by llm.provider.
func FromConfig(ctx context.Context, cfg config.LLMConfig) (Completer, error) {
	switch cfg.Provider {
	case config.LLMVertex:
		client, err := NewVertexClient(ctx, VertexConfig{
			Project:           cfg.VertexProject,
			Region:            cfg.VertexRegion,
			Model:             cfg.Model,
			MaxAttempts:       cfg.MaxAttempts,
			RequestsPerMinute: cfg.RequestsPerMin,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.LLMOpenRouter, "":
		return NewClient(Config{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Referer:           cfg.Referer,
			Title:             cfg.Title,
			Timeout:           cfg.Timeout,
			MaxAttempts:       cfg.MaxAttempts,
			RequestsPerMinute: cfg.RequestsPerMin,
		}), nil
	default:
		return nil, fmt.Errorf("llm provider %q: %w", cfg.Provider, services.ErrConfiguration)
	}
}
