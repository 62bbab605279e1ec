package llm

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/capitalize-ai/gemini-chat/internal/model"
)

// AnthropicClient is the Anthropic LLM client.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &AnthropicClient{
		client: client,
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Models returns available models.
func (c *AnthropicClient) Models() []string {
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
	}
}

// GenerateContent sends a messages request.
func (c *AnthropicClient) GenerateContent(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()
	modelName := resolveModel(req.Config.Model, "claude-3-5-sonnet-20241022")

	maxTokens := req.Config.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, content := range req.History {
		messages = append(messages, toAnthropicMessage(content))
	}
	messages = append(messages, toAnthropicMessage(model.Content{Role: model.RoleUser, Parts: req.Latest}))

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(modelName),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(messages),
	}
	if req.Config.Temperature != nil {
		params.Temperature = anthropic.F(float64(*req.Config.Temperature))
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text += block.Text
		}
	}

	return &GenerateResponse{
		Text:         text,
		FinishReason: string(resp.StopReason),
		Model:        resp.Model,
		TokensIn:     int(resp.Usage.InputTokens),
		TokensOut:    int(resp.Usage.OutputTokens),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// CountTokens estimates the token size of contents.
func (c *AnthropicClient) CountTokens(_ context.Context, contents []model.Content) (*TokenCount, error) {
	return &TokenCount{TotalTokens: EstimateTokens(Sanitize(contents))}, nil
}

func toAnthropicMessage(c model.Content) anthropic.MessageParam {
	role := anthropic.MessageParamRoleUser
	if c.Role == model.RoleModel {
		role = anthropic.MessageParamRoleAssistant
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(c.Parts))
	for _, p := range c.Parts {
		text := p.Text
		if p.InlineData != nil {
			text = placeholder(p.InlineData)
		}
		blocks = append(blocks, anthropic.TextBlockParam{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(text),
		})
	}

	return anthropic.MessageParam{
		Role:    anthropic.F(role),
		Content: anthropic.F(blocks),
	}
}
