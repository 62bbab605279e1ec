package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/capitalize-ai/gemini-chat/internal/model"
)

// DefaultGeminiModel is used when a request names no model.
const DefaultGeminiModel = "gemini-2.5-pro"

// GeminiClient is the Google Gemini LLM client.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("Gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client}, nil
}

// Name returns the provider name.
func (c *GeminiClient) Name() string {
	return "gemini"
}

// Models returns available models.
func (c *GeminiClient) Models() []string {
	return []string{
		"gemini-2.5-pro",
		"gemini-2.5-flash",
		"gemini-2.0-flash",
	}
}

// GenerateContent sends the conversation to Gemini.
func (c *GeminiClient) GenerateContent(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()
	modelName := resolveModel(req.Config.Model, DefaultGeminiModel)

	contents := toGeminiContents(req.History)
	contents = append(contents, &genai.Content{
		Role:  string(model.RoleUser),
		Parts: toGeminiParts(req.Latest),
	})

	config := &genai.GenerateContentConfig{
		Temperature: req.Config.Temperature,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: req.Config.IncludeThoughts,
			ThinkingBudget:  genai.Ptr(int32(req.Config.ThinkingBudget)),
		},
	}
	if req.Config.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(req.Config.MaxOutputTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		return nil, err
	}

	out := &GenerateResponse{
		Text:      resp.Text(),
		Model:     modelName,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
		out.FinishMessage = resp.Candidates[0].FinishMessage
	} else if resp.PromptFeedback != nil {
		out.FinishReason = string(resp.PromptFeedback.BlockReason)
		out.FinishMessage = resp.PromptFeedback.BlockReasonMessage
	}
	if resp.UsageMetadata != nil {
		out.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		out.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return out, nil
}

// CountTokens reports the token size of contents.
func (c *GeminiClient) CountTokens(ctx context.Context, contents []model.Content) (*TokenCount, error) {
	resp, err := c.client.Models.CountTokens(ctx, DefaultGeminiModel, toGeminiContents(Sanitize(contents)), nil)
	if err != nil {
		return nil, err
	}
	return &TokenCount{
		TotalTokens:             int(resp.TotalTokens),
		CachedContentTokenCount: int(resp.CachedContentTokenCount),
	}, nil
}

func toGeminiContents(contents []model.Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(contents)+1)
	for _, c := range contents {
		out = append(out, &genai.Content{
			Role:  string(c.Role),
			Parts: toGeminiParts(c.Parts),
		})
	}
	return out
}

func toGeminiParts(parts []model.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.InlineData != nil {
			out = append(out, &genai.Part{InlineData: &genai.Blob{
				MIMEType: p.InlineData.MIMEType,
				Data:     p.InlineData.Data,
			}})
			continue
		}
		out = append(out, &genai.Part{Text: p.Text})
	}
	return out
}
