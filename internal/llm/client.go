// Package llm provides assistant reply generation over hosted model APIs.
package llm

import (
	"context"
	"fmt"
)

// Roles used in ChatMessage.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

// FromKeys picks a provider from the configured API keys, preferring
// preferred when its key is set. It returns nil when no key is set.
func FromKeys(preferred Provider, anthropicKey, openaiKey string) (Client, error) {
	keys := map[Provider]string{
		ProviderAnthropic: anthropicKey,
		ProviderOpenAI:    openaiKey,
	}
	if key := keys[preferred]; key != "" {
		return NewClient(preferred, key)
	}
	for _, p := range []Provider{ProviderAnthropic, ProviderOpenAI} {
		if keys[p] != "" {
			return NewClient(p, keys[p])
		}
	}
	return nil, nil
}
