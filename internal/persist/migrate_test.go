package persist

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/internal/state"
)

const legacyShapeA = `{
  "conversations": [{
    "id": "c1",
    "title": "Old chat",
    "messages": [
      {"role": "user", "parts": [{"text": "hi"}]},
      {"role": "model", "parts": [{"text": "hello"}]}
    ],
    "totalTokens": 12
  }],
  "currentConversationId": "c1"
}`

const legacyShapeB = `{
  "conversations": [{
    "id": "c1",
    "title": "Paired later",
    "messages": [
      {"id": "u1", "content": {"role": "user", "parts": [{"text": "one"}]}},
      {"id": "m1", "content": {"role": "model", "parts": [{"text": "uno"}]}},
      {"id": "u2", "content": {"role": "user", "parts": [{"text": "two"}]}},
      {"id": "m2", "content": {"role": "model", "parts": [{"text": "dos"}]}, "isErrorAssociated": true},
      {"id": "u3", "content": {"role": "user", "parts": [{"text": "three"}]}}
    ]
  }],
  "currentConversationId": "c1",
  "troubleshootingMode": true
}`

const messyBlob = `{
  "conversations": [
    42,
    {"id": "c1", "messages": [
      "garbage",
      {"id": "u1", "responseTo": null, "content": {"role": "user", "parts": [
        {"inlineData": {"mimeType": "image/png", "data": "!!!not base64!!!"}},
        {"inlineData": {"mimeType": "image/png", "data": "iVBO"}},
        {"text": "look"}
      ]}},
      {"id": "u1", "responseTo": "u1", "content": {"role": "model", "parts": [{"text": "nice"}]}},
      {"id": "x", "content": {"role": "system", "parts": [{"text": "nope"}]}},
      {"id": "y", "content": {"role": "user", "parts": [{"bogus": true}]}}
    ]},
    {"id": "c1", "title": "duplicate", "messages": []},
    {"title": "", "messages": null}
  ],
  "currentConversationId": "deleted"
}`

func TestMigrateLegacyShapeA(t *testing.T) {
	s, warnings, err := Migrate([]byte(legacyShapeA))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Len(t, s.Conversations, 1)
	conv := s.Conversations[0]
	assert.Equal(t, "Old chat", conv.Title)
	assert.Equal(t, 12, conv.TotalTokens)
	require.Len(t, conv.Messages, 2)

	for _, m := range conv.Messages {
		assert.NotEmpty(t, m.ID)
		assert.Nil(t, m.ResponseTo)
		assert.False(t, m.IsErrorAssociated)
	}
	assert.NotEqual(t, conv.Messages[0].ID, conv.Messages[1].ID)
	assert.Equal(t, "hello", conv.Messages[1].Content.Text())
	assert.Equal(t, "c1", *s.CurrentConversationID)
}

func TestMigrateLegacyShapeB(t *testing.T) {
	s, warnings, err := Migrate([]byte(legacyShapeB))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, s.TroubleshootingMode)

	msgs := s.Conversations[0].Messages
	require.Len(t, msgs, 5)
	require.NotNil(t, msgs[1].ResponseTo)
	assert.Equal(t, "u1", *msgs[1].ResponseTo)
	require.NotNil(t, msgs[3].ResponseTo)
	assert.Equal(t, "u2", *msgs[3].ResponseTo)
	assert.True(t, msgs[3].IsErrorAssociated)
	assert.Nil(t, msgs[0].ResponseTo)
	assert.Nil(t, msgs[4].ResponseTo)

	conv := s.Conversations[0]
	partner, ok := conv.PartnerOf("m2")
	assert.True(t, ok)
	assert.Equal(t, "u2", partner)
}

func TestMigrateCurrentShapePassesThrough(t *testing.T) {
	ref := "u1"
	want := state.Persisted{
		Conversations: []model.Conversation{{
			ID:      "c1",
			Title:   "Current",
			Renamed: true,
			Messages: []model.Message{
				{ID: "u1", Content: model.Content{Role: model.RoleUser, Parts: []model.Part{
					model.InlinePart("text/plain", []byte("attached")),
					model.TextPart("read this"),
				}}},
				{ID: "m1", ResponseTo: &ref, Content: model.Content{Role: model.RoleModel, Parts: []model.Part{model.TextPart("done")}}},
			},
			TotalTokens:             30,
			CachedContentTokenCount: 4,
		}},
		CurrentConversationID: stringPtr("c1"),
	}

	data, err := json.Marshal(want)
	require.NoError(t, err)

	got, warnings, err := Migrate(data)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, want, got)
}

func TestMigrateSalvagesMalformedRecords(t *testing.T) {
	s, warnings, err := Migrate([]byte(messyBlob))
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)

	require.Len(t, s.Conversations, 2)

	first := s.Conversations[0]
	assert.Equal(t, "c1", first.ID)
	assert.Equal(t, model.DefaultTitle, first.Title)
	require.Len(t, first.Messages, 2)

	user := first.Messages[0]
	assert.Equal(t, "u1", user.ID)
	require.Len(t, user.Content.Parts, 2)
	assert.Equal(t, "image/png", user.Content.Parts[0].InlineData.MIMEType)
	assert.Equal(t, "look", user.Content.Parts[1].Text)

	reply := first.Messages[1]
	assert.NotEqual(t, "u1", reply.ID)
	require.NotNil(t, reply.ResponseTo)
	assert.Equal(t, "u1", *reply.ResponseTo)

	second := s.Conversations[1]
	assert.NotEmpty(t, second.ID)
	assert.Equal(t, model.DefaultTitle, second.Title)
	assert.NotNil(t, second.Messages)
	assert.Empty(t, second.Messages)

	require.NotNil(t, s.CurrentConversationID)
	assert.Equal(t, "c1", *s.CurrentConversationID)
}

func TestMigrateIsIdempotent(t *testing.T) {
	for name, blob := range map[string]string{
		"shape A": legacyShapeA,
		"shape B": legacyShapeB,
		"messy":   messyBlob,
	} {
		t.Run(name, func(t *testing.T) {
			once, _, err := Migrate([]byte(blob))
			require.NoError(t, err)

			data, err := json.Marshal(once)
			require.NoError(t, err)

			twice, warnings, err := Migrate(data)
			require.NoError(t, err)
			assert.Empty(t, warnings)
			assert.Equal(t, once, twice)
		})
	}
}

func TestMigrateRejectsNonObjects(t *testing.T) {
	for _, blob := range []string{``, `not json`, `[]`, `"text"`, `{"conversations": [`} {
		_, _, err := Migrate([]byte(blob))
		assert.ErrorIs(t, err, ErrMalformedBlob, blob)
	}
}

func TestMigrateEmptyObject(t *testing.T) {
	s, warnings, err := Migrate([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.NotNil(t, s.Conversations)
	assert.Empty(t, s.Conversations)
	assert.Nil(t, s.CurrentConversationID)
}

func TestParseImport(t *testing.T) {
	t.Run("state blob", func(t *testing.T) {
		s, _, err := ParseImport([]byte(legacyShapeB))
		require.NoError(t, err)
		assert.Len(t, s.Conversations, 1)
	})

	t.Run("full export", func(t *testing.T) {
		s, _, err := ParseImport([]byte(`{"chat": ` + legacyShapeA + `, "settings": {"apiKey": null}, "locale": {"locale": "en"}}`))
		require.NoError(t, err)
		require.Len(t, s.Conversations, 1)
		assert.Equal(t, "Old chat", s.Conversations[0].Title)
	})

	t.Run("single conversation", func(t *testing.T) {
		s, _, err := ParseImport([]byte(`{"id": "solo", "title": "Solo", "messages": [
			{"id": "u1", "responseTo": null, "content": {"role": "user", "parts": [{"text": "hey"}]}}
		]}`))
		require.NoError(t, err)
		require.Len(t, s.Conversations, 1)
		assert.Equal(t, "solo", *s.CurrentConversationID)
	})

	t.Run("unknown document", func(t *testing.T) {
		_, _, err := ParseImport([]byte(`{"hello": "world"}`))
		assert.ErrorIs(t, err, ErrMalformedBlob)
	})
}

func stringPtr(s string) *string {
	return &s
}
