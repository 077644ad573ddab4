package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured for the provider.
var ErrNoAPIKey = errors.New("no API key configured")

// provider key sources: environment variable and config field.
func keyInputs(cfg *Config, provider string) (env string, configured string, ok bool) {
	switch provider {
	case "anthropic":
		env = "ANTHROPIC_API_KEY"
		if cfg != nil {
			configured = cfg.Anthropic.APIKey
		}
	case "gemini":
		env = "GEMINI_API_KEY"
		if cfg != nil {
			configured = cfg.Gemini.APIKey
		}
	default:
		return "", "", false
	}
	return env, configured, true
}

// GetAPIKey returns the API key for provider ("anthropic" or "gemini").
// It checks in order: environment variable, config file.
func GetAPIKey(cfg *Config, provider string) (string, error) {
	env, configured, ok := keyInputs(cfg, provider)
	if !ok {
		return "", fmt.Errorf("provider %q does not use an API key", provider)
	}

	if key := os.Getenv(env); key != "" {
		return key, nil
	}

	if configured != "" {
		// Expand any remaining env var references
		key := os.ExpandEnv(configured)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}

	return "", fmt.Errorf("%s: %w", provider, ErrNoAPIKey)
}

// ValidateAPIKey performs basic format validation on an API key.
// It does not verify the key with the provider.
func ValidateAPIKey(provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return errors.New("invalid API key format: expected 'sk-ant-' prefix")
		}
	case "gemini":
		if strings.ContainsAny(key, " \t\n") {
			return errors.New("invalid API key format: contains whitespace")
		}
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the provider's API key was sourced from.
func GetAPIKeySource(cfg *Config, provider string) KeySource {
	env, configured, ok := keyInputs(cfg, provider)
	if !ok {
		return KeySourceNone
	}

	if os.Getenv(env) != "" {
		return KeySourceEnv
	}

	if configured != "" {
		key := os.ExpandEnv(configured)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}
