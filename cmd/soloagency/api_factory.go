package main

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/soloagency/internal/api"
	"github.com/ShayCichocki/soloagency/internal/config"
)

// createCompleter builds the completion client selected by provider.name.
func createCompleter(ctx context.Context, cfg *config.Config) (api.Completer, error) {
	switch cfg.Provider.Name {
	case api.ProviderGemini:
		key, err := config.GetAPIKey(cfg, "gemini")
		if err != nil {
			return nil, err
		}
		client, err := api.NewGeminiClient(ctx, api.GeminiConfig{
			APIKey: key,
			Model:  cfg.Provider.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("create Gemini client: %w", err)
		}
		return client, nil

	case api.ProviderBedrock:
		client, err := api.NewClient(api.ClientConfig{
			Model:         anthropic.Model(cfg.Provider.Model),
			UseAWSBedrock: true,
			AWSRegion:     cfg.Provider.AWSRegion,
			AWSProfile:    cfg.Provider.AWSProfile,
		})
		if err != nil {
			return nil, fmt.Errorf("create Bedrock client: %w", err)
		}
		return client, nil

	default:
		key, err := config.GetAPIKey(cfg, "anthropic")
		if err != nil {
			return nil, err
		}
		client, err := api.NewClient(api.ClientConfig{
			Model:  anthropic.Model(cfg.Provider.Model),
			APIKey: key,
		})
		if err != nil {
			return nil, fmt.Errorf("create API client: %w", err)
		}
		return client, nil
	}
}
