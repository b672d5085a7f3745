package llm

import (
	"context"
	"fmt"
	"os"
)

// APIKeyEnvVar returns the environment variable holding the key for provider.
func APIKeyEnvVar(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}

// NewProvider creates a new LLM provider based on the given provider type and model.
// Supported provider types: "anthropic", "openai", "google".
func NewProvider(providerType string, model string) (Provider, error) {
	env := APIKeyEnvVar(providerType)
	if env == "" {
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
	apiKey := os.Getenv(env)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is not set", env)
	}

	switch providerType {
	case "anthropic":
		return NewAnthropicProvider(apiKey, model, os.Getenv("ANTHROPIC_BASE_URL")), nil
	case "openai":
		return NewOpenAIProvider(apiKey, model, os.Getenv("OPENAI_BASE_URL")), nil
	default:
		p, err := NewGoogleProvider(context.Background(), apiKey, model, os.Getenv("GOOGLE_BASE_URL"))
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
