package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/capitalize-ai/gemini-chat/internal/model"
)

// OpenAIClient is the OpenAI LLM client.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	client := openai.NewClient(apiKey)

	return &OpenAIClient{
		client: client,
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Models returns available models.
func (c *OpenAIClient) Models() []string {
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
	}
}

// GenerateContent sends a chat completion request.
func (c *OpenAIClient) GenerateContent(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()
	modelName := resolveModel(req.Config.Model, "gpt-4o")

	maxTokens := req.Config.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+1)
	for _, content := range req.History {
		messages = append(messages, toOpenAIMessage(content))
	}
	messages = append(messages, toOpenAIMessage(model.Content{Role: model.RoleUser, Parts: req.Latest}))

	chatReq := openai.ChatCompletionRequest{
		Model:     modelName,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if req.Config.Temperature != nil {
		chatReq.Temperature = *req.Config.Temperature
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	out := &GenerateResponse{
		Model:     resp.Model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if len(resp.Choices) > 0 {
		out.Text = resp.Choices[0].Message.Content
		out.FinishReason = string(resp.Choices[0].FinishReason)
	}
	return out, nil
}

// CountTokens estimates the token size of contents; the chat API has no
// counting endpoint.
func (c *OpenAIClient) CountTokens(_ context.Context, contents []model.Content) (*TokenCount, error) {
	return &TokenCount{TotalTokens: EstimateTokens(Sanitize(contents))}, nil
}

// toOpenAIMessage maps a content to a chat message. Images travel as data
// URLs; other attachments are described in text.
func toOpenAIMessage(c model.Content) openai.ChatCompletionMessage {
	role := openai.ChatMessageRoleUser
	if c.Role == model.RoleModel {
		role = openai.ChatMessageRoleAssistant
	}

	hasImage := false
	for _, p := range c.Parts {
		if p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "image/") {
			hasImage = true
			break
		}
	}

	if !hasImage || role != openai.ChatMessageRoleUser {
		var sb strings.Builder
		for _, p := range c.Parts {
			if p.InlineData != nil {
				sb.WriteString(placeholder(p.InlineData))
				sb.WriteString("\n")
				continue
			}
			sb.WriteString(p.Text)
		}
		return openai.ChatCompletionMessage{Role: role, Content: sb.String()}
	}

	parts := make([]openai.ChatMessagePart, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch {
		case p.InlineData == nil:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: p.Text,
			})
		case strings.HasPrefix(p.InlineData.MIMEType, "image/"):
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:" + p.InlineData.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.InlineData.Data),
				},
			})
		default:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: placeholder(p.InlineData),
			})
		}
	}
	return openai.ChatCompletionMessage{Role: role, MultiContent: parts}
}
