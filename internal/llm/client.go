// Package llm provides generation clients for the supported model providers.
package llm

import (
	"context"
	"fmt"

	"github.com/capitalize-ai/gemini-chat/internal/model"
)

// GenerationConfig holds per-request model settings.
type GenerationConfig struct {
	Model           string
	Temperature     *float32
	MaxOutputTokens int
	IncludeThoughts bool
	ThinkingBudget  int
}

// GenerateRequest is one generation call: the prior turns plus the parts of
// the latest user message.
type GenerateRequest struct {
	History []model.Content
	Latest  []model.Part
	Config  GenerationConfig
}

// GenerateResponse is the outcome of a generation call. An empty Text with a
// nil error means the provider produced no usable content; FinishReason and
// FinishMessage then explain why, when the provider says.
type GenerateResponse struct {
	Text          string
	FinishReason  string
	FinishMessage string
	Model         string
	TokensIn      int
	TokensOut     int
	LatencyMs     int64
}

// TokenCount reports the size of a conversation.
type TokenCount struct {
	TotalTokens             int
	CachedContentTokenCount int
}

// Client is the interface for LLM providers.
type Client interface {
	// GenerateContent sends the history and latest message and returns the reply.
	GenerateContent(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// CountTokens reports the token size of contents.
	CountTokens(ctx context.Context, contents []model.Content) (*TokenCount, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// Factory builds a client for a credential.
type Factory func(ctx context.Context, apiKey string) (Client, error)

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new LLM client based on provider.
func NewClient(ctx context.Context, provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderGemini, "":
		return NewGeminiClient(ctx, apiKey)
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}

// NewFactory returns a Factory for provider.
func NewFactory(provider Provider) Factory {
	return func(ctx context.Context, apiKey string) (Client, error) {
		return NewClient(ctx, provider, apiKey)
	}
}

// Sanitize drops inline parts with no data, which providers reject, and any
// content left without parts.
func Sanitize(contents []model.Content) []model.Content {
	out := make([]model.Content, 0, len(contents))
	for _, c := range contents {
		parts := make([]model.Part, 0, len(c.Parts))
		for _, p := range c.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) == 0 {
				continue
			}
			parts = append(parts, p)
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, model.Content{Role: c.Role, Parts: parts})
	}
	return out
}

// EstimateTokens approximates a token count from text length, for providers
// without a counting endpoint.
func EstimateTokens(contents []model.Content) int {
	n := 0
	for _, c := range contents {
		for _, p := range c.Parts {
			if p.InlineData != nil {
				n += len(p.InlineData.Data) / 4
				continue
			}
			n += len(p.Text) / 4
		}
	}
	return n
}

func resolveModel(requested, fallback string) string {
	if requested == "" {
		return fallback
	}
	return requested
}

func placeholder(d *model.InlineData) string {
	return fmt.Sprintf("[attachment %s, %d bytes]", d.MIMEType, len(d.Data))
}
