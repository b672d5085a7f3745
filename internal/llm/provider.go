package llm

import (
	"context"
	"fmt"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}

// upstream marks a provider failure as retryable while keeping the cause.
func upstream(provider string, err error) error {
	return fmt.Errorf("%s completion: %w: %w", provider, apperr.ErrUpstreamUnavailable, err)
}
