package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartJSON(t *testing.T) {
	data, err := json.Marshal(TextPart(""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":""}`, string(data))

	data, err = json.Marshal(InlinePart("image/png", []byte{0x89, 0x50}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"inlineData":{"mimeType":"image/png","data":"iVA="}}`, string(data))

	var p Part
	require.NoError(t, json.Unmarshal([]byte(`{"inlineData":{"mimeType":"text/plain","data":"aGk="}}`), &p))
	require.NotNil(t, p.InlineData)
	assert.Equal(t, []byte("hi"), p.InlineData.Data)
	assert.False(t, p.IsText())
}

func TestNewUserMessagePartOrder(t *testing.T) {
	msg := NewUserMessage("describe these", []FileBlob{
		{Name: "a.png", MIMEType: "image/png", Data: []byte{1}},
		{Name: "b.pdf", MIMEType: "application/pdf", Data: []byte{2}},
	})

	require.Len(t, msg.Content.Parts, 3)
	assert.Equal(t, "image/png", msg.Content.Parts[0].InlineData.MIMEType)
	assert.Equal(t, "application/pdf", msg.Content.Parts[1].InlineData.MIMEType)
	assert.Equal(t, "describe these", msg.Content.Parts[2].Text)
	assert.Equal(t, RoleUser, msg.Role())
	assert.Nil(t, msg.ResponseTo)
	assert.NotEmpty(t, msg.ID)
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "**Error:** boom", ErrorText("boom", ""))
	assert.Equal(t, "**Error:** boom\n\n**Reason:** SAFETY", ErrorText("boom", "SAFETY"))
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name    string
		content Content
		want    string
	}{
		{
			name:    "short",
			content: Content{Parts: []Part{TextPart("Hello")}},
			want:    "Hello",
		},
		{
			name:    "exactly forty",
			content: Content{Parts: []Part{TextPart("0123456789012345678901234567890123456789")}},
			want:    "0123456789012345678901234567890123456789",
		},
		{
			name:    "truncated",
			content: Content{Parts: []Part{TextPart("01234567890123456789012345678901234567890")}},
			want:    "0123456789012345678901234567890123456789...",
		},
		{
			name:    "skips inline data",
			content: Content{Parts: []Part{InlinePart("image/png", []byte{1}), TextPart("What is this?")}},
			want:    "What is this?",
		},
		{
			name:    "counts runes",
			content: Content{Parts: []Part{TextPart("Привет, как дела? Расскажи мне про погоду сегодня")}},
			want:    "Привет, как дела? Расскажи мне про погод...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.content))
		})
	}
}

func TestPartnerOf(t *testing.T) {
	userID := "u1"
	dangling := "gone"
	conv := Conversation{
		ID: "c",
		Messages: []Message{
			{ID: "u1", Content: Content{Role: RoleUser}},
			{ID: "m1", ResponseTo: &userID, Content: Content{Role: RoleModel}},
			{ID: "u2", Content: Content{Role: RoleUser}},
			{ID: "m2", ResponseTo: &dangling, Content: Content{Role: RoleModel}},
		},
	}

	partner, ok := conv.PartnerOf("u1")
	assert.True(t, ok)
	assert.Equal(t, "m1", partner)

	partner, ok = conv.PartnerOf("m1")
	assert.True(t, ok)
	assert.Equal(t, "u1", partner)

	_, ok = conv.PartnerOf("u2")
	assert.False(t, ok)

	_, ok = conv.PartnerOf("m2")
	assert.False(t, ok)

	_, ok = conv.PartnerOf("missing")
	assert.False(t, ok)
}

func TestContentsFiltersErrors(t *testing.T) {
	conv := Conversation{Messages: []Message{
		{ID: "u1", Content: Content{Role: RoleUser, Parts: []Part{TextPart("a")}}},
		{ID: "m1", Content: Content{Role: RoleModel, Parts: []Part{TextPart("b")}}},
		{ID: "u2", Content: Content{Role: RoleUser, Parts: []Part{TextPart("c")}}, IsErrorAssociated: true},
		{ID: "m2", Content: Content{Role: RoleModel, Parts: []Part{TextPart("d")}}, IsErrorAssociated: true},
	}}

	assert.Len(t, conv.Contents(false), 2)
	assert.Len(t, conv.Contents(true), 4)
}
