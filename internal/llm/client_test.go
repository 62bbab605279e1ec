package llm

import (
	"context"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/gemini-chat/internal/model"
)

func TestSanitize(t *testing.T) {
	contents := []model.Content{
		{Role: model.RoleUser, Parts: []model.Part{
			model.InlinePart("image/png", nil),
			model.TextPart("what is this"),
		}},
		{Role: model.RoleModel, Parts: []model.Part{model.InlinePart("image/png", []byte{})}},
		{Role: model.RoleUser, Parts: []model.Part{model.InlinePart("image/png", []byte{1, 2})}},
	}

	got := Sanitize(contents)
	require.Len(t, got, 2)
	require.Len(t, got[0].Parts, 1)
	assert.Equal(t, "what is this", got[0].Parts[0].Text)
	assert.Equal(t, []byte{1, 2}, got[1].Parts[0].InlineData.Data)

	assert.Len(t, contents[0].Parts, 2)
}

func TestEstimateTokens(t *testing.T) {
	contents := []model.Content{
		{Role: model.RoleUser, Parts: []model.Part{model.TextPart("12345678")}},
		{Role: model.RoleModel, Parts: []model.Part{model.TextPart("1234")}},
	}
	assert.Equal(t, 3, EstimateTokens(contents))
}

func TestNewClientRequiresKey(t *testing.T) {
	for _, p := range []Provider{ProviderGemini, ProviderOpenAI, ProviderAnthropic} {
		_, err := NewClient(context.Background(), p, "")
		assert.Error(t, err, string(p))
	}

	_, err := NewClient(context.Background(), "mistral", "key")
	assert.Error(t, err)
}

func TestToOpenAIMessage(t *testing.T) {
	msg := toOpenAIMessage(model.Content{Role: model.RoleUser, Parts: []model.Part{
		model.InlinePart("image/png", []byte{0x89}),
		model.InlinePart("application/pdf", []byte{1, 2, 3}),
		model.TextPart("compare"),
	}})

	assert.Equal(t, openai.ChatMessageRoleUser, msg.Role)
	require.Len(t, msg.MultiContent, 3)
	assert.Equal(t, "data:image/png;base64,iQ==", msg.MultiContent[0].ImageURL.URL)
	assert.Equal(t, "[attachment application/pdf, 3 bytes]", msg.MultiContent[1].Text)
	assert.Equal(t, "compare", msg.MultiContent[2].Text)

	reply := toOpenAIMessage(model.Content{Role: model.RoleModel, Parts: []model.Part{model.TextPart("sure")}})
	assert.Equal(t, openai.ChatMessageRoleAssistant, reply.Role)
	assert.Equal(t, "sure", reply.Content)
	assert.Empty(t, reply.MultiContent)
}

func TestToGeminiParts(t *testing.T) {
	parts := toGeminiParts([]model.Part{
		model.InlinePart("image/jpeg", []byte{1}),
		model.TextPart("hi"),
	})
	require.Len(t, parts, 2)
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MIMEType)
	assert.Equal(t, "hi", parts[1].Text)
}
