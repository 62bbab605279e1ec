package export

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/gemini-chat/internal/i18n"
	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/internal/persist"
	"github.com/capitalize-ai/gemini-chat/internal/state"
)

func sampleConversation() model.Conversation {
	userID := "u1"
	return model.Conversation{
		ID:    "c1",
		Title: "Capital: France?",
		Messages: []model.Message{
			{ID: "u1", Content: model.Content{Role: model.RoleUser, Parts: []model.Part{
				model.InlinePart("image/png", []byte{1, 2, 3, 4}),
				model.TextPart("What is this?"),
			}}},
			{ID: "m1", ResponseTo: &userID, Content: model.Content{Role: model.RoleModel, Parts: []model.Part{
				model.TextPart("A map of Paris."),
			}}},
		},
	}
}

func TestMarkdown(t *testing.T) {
	want := "# Capital: France?\n\n" +
		"**You:**\n\n" +
		"<inlineData mimeType=image/png size=4 />\n\n" +
		"What is this?\n\n" +
		"**Gemini:**\n\n" +
		"A map of Paris.\n\n"

	assert.Equal(t, want, Markdown(sampleConversation()))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c_d_e_f_g_h_i_", SanitizeFilename(`a\b/c:d*e?f"g<h>i|`))
	assert.Equal(t, "Capital_ France_.md", Filename(sampleConversation(), FormatMarkdown))
	assert.Equal(t, "c1.json", Filename(model.Conversation{ID: "c1"}, FormatJSON))
}

func TestConversationJSON(t *testing.T) {
	data, err := Conversation(sampleConversation(), FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"id\": \"c1\"")

	var back model.Conversation
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, sampleConversation(), back)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("md")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)

	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestFullStateRoundTrip(t *testing.T) {
	s := state.FromPersisted(state.Persisted{
		Conversations:         []model.Conversation{sampleConversation()},
		CurrentConversationID: func() *string { id := "c1"; return &id }(),
		TroubleshootingMode:   true,
	})

	full := NewFullState(s, "secret", false, i18n.Russian)
	assert.Nil(t, full.Settings.APIKey)

	data, err := JSON(full)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	imported, warnings, err := persist.ParseImport(data)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, s.Persisted(), imported)

	withKey := NewFullState(s, "secret", true, i18n.English)
	require.NotNil(t, withKey.Settings.APIKey)
	assert.Equal(t, "secret", *withKey.Settings.APIKey)
}
