package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/gemini-chat/internal/model"
)

func reduce(t *testing.T, s State, actions ...Action) State {
	t.Helper()
	for _, a := range actions {
		var err error
		s, err = Reduce(s, a)
		require.NoError(t, err, a.Kind())
	}
	return s
}

func userMsg(id, text string) model.Message {
	return model.Message{
		ID:      id,
		Content: model.Content{Role: model.RoleUser, Parts: []model.Part{model.TextPart(text)}},
	}
}

func modelMsg(id, text string) model.Message {
	return model.Message{
		ID:      id,
		Content: model.Content{Role: model.RoleModel, Parts: []model.Part{model.TextPart(text)}},
	}
}

func emptyState() State {
	return FromPersisted(Persisted{})
}

func TestStartNewChat(t *testing.T) {
	s := reduce(t, emptyState(),
		StartNewChat{ID: "a", Title: "New Chat"},
		StartNewChat{ID: "b", Title: "New Chat"},
	)

	require.Len(t, s.Conversations, 2)
	assert.Equal(t, "b", s.Conversations[0].ID)
	assert.Equal(t, "a", s.Conversations[1].ID)
	require.NotNil(t, s.CurrentConversationID)
	assert.Equal(t, "b", *s.CurrentConversationID)
	assert.Empty(t, s.Conversations[0].Messages)
	assert.NotNil(t, s.Conversations[0].Messages)

	_, err := Reduce(s, StartNewChat{ID: "a"})
	assert.ErrorIs(t, err, ErrDuplicateConversation)
}

func TestSwitchConversation(t *testing.T) {
	s := reduce(t, emptyState(),
		StartNewChat{ID: "a"},
		StartNewChat{ID: "b"},
		CompleteGeneration{User: userMsg("u1", "hi"), Model: modelMsg("m1", "hello")},
		ToggleMessageSelection{MessageID: "u1"},
	)
	require.Len(t, s.SelectedMessageIDs, 2)

	t.Run("unknown id is a no-op", func(t *testing.T) {
		next := reduce(t, s, SwitchConversation{ID: "missing"})
		assert.Equal(t, "b", *next.CurrentConversationID)
		assert.Len(t, next.SelectedMessageIDs, 2)
	})

	t.Run("known id clears selection", func(t *testing.T) {
		next := reduce(t, s, SwitchConversation{ID: "a"})
		assert.Equal(t, "a", *next.CurrentConversationID)
		assert.Empty(t, next.SelectedMessageIDs)
	})
}

func TestDeleteConversation(t *testing.T) {
	t.Run("deleting the active conversation activates the head", func(t *testing.T) {
		s := reduce(t, emptyState(),
			StartNewChat{ID: "a"},
			StartNewChat{ID: "b"},
			StartNewChat{ID: "c"},
			SwitchConversation{ID: "b"},
			DeleteConversation{ID: "b"},
		)
		require.Len(t, s.Conversations, 2)
		assert.Equal(t, "c", *s.CurrentConversationID)
	})

	t.Run("deleting another conversation keeps the active one", func(t *testing.T) {
		s := reduce(t, emptyState(),
			StartNewChat{ID: "a"},
			StartNewChat{ID: "b"},
			DeleteConversation{ID: "a"},
		)
		assert.Equal(t, "b", *s.CurrentConversationID)
	})

	t.Run("deleting the last conversation clears the active id", func(t *testing.T) {
		s := reduce(t, emptyState(),
			StartNewChat{ID: "a"},
			DeleteConversation{ID: "a"},
		)
		assert.Empty(t, s.Conversations)
		assert.Nil(t, s.CurrentConversationID)
	})

	t.Run("unknown id is ignored", func(t *testing.T) {
		before := reduce(t, emptyState(), StartNewChat{ID: "a"})
		after := reduce(t, before, DeleteConversation{ID: "zzz"})
		assert.Equal(t, before, after)
	})
}

func TestRenamePreventsDerivedTitle(t *testing.T) {
	s := reduce(t, emptyState(),
		StartNewChat{ID: "a", Title: "New Chat"},
		RenameConversation{ID: "a", Title: "Travel plans"},
		CompleteGeneration{User: userMsg("u1", "Where should I go in spring?"), Model: modelMsg("m1", "Kyoto.")},
	)
	assert.Equal(t, "Travel plans", s.Conversations[0].Title)
}

func TestBeginGeneration(t *testing.T) {
	_, err := Reduce(emptyState(), BeginGeneration{})
	assert.ErrorIs(t, err, ErrNoActiveConversation)

	s := reduce(t, emptyState(), StartNewChat{ID: "a"}, BeginGeneration{})
	assert.True(t, s.IsLoading)

	again, err := Reduce(s, BeginGeneration{})
	assert.ErrorIs(t, err, ErrGenerationInFlight)
	assert.True(t, again.IsLoading)
}

func TestCompleteGeneration(t *testing.T) {
	s := reduce(t, emptyState(),
		StartNewChat{ID: "a", Title: "New Chat"},
		BeginGeneration{},
		CompleteGeneration{User: userMsg("u1", "What's the capital of France?"), Model: modelMsg("m1", "Paris.")},
	)

	assert.False(t, s.IsLoading)
	conv := s.Conversations[0]
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role())
	assert.Equal(t, model.RoleModel, conv.Messages[1].Role())
	require.NotNil(t, conv.Messages[1].ResponseTo)
	assert.Equal(t, "u1", *conv.Messages[1].ResponseTo)
	assert.False(t, conv.Messages[0].IsErrorAssociated)
	assert.Equal(t, "What's the capital of France?", conv.Title)

	s = reduce(t, s, CompleteGeneration{User: userMsg("u2", "And of Spain?"), Model: modelMsg("m2", "Madrid.")})
	assert.Equal(t, "What's the capital of France?", s.Conversations[0].Title)
	assert.Len(t, s.Conversations[0].Messages, 4)
}

func TestCompleteGenerationTargetsCapturedConversation(t *testing.T) {
	s := reduce(t, emptyState(),
		StartNewChat{ID: "a"},
		BeginGeneration{},
		StartNewChat{ID: "b"},
		CompleteGeneration{ConversationID: "a", User: userMsg("u1", "hi"), Model: modelMsg("m1", "hello")},
	)

	a, _ := s.Conversation("a")
	b, _ := s.Conversation("b")
	assert.Len(t, a.Messages, 2)
	assert.Empty(t, b.Messages)
	assert.Equal(t, "b", *s.CurrentConversationID)
}

func TestCompleteGenerationMissingConversation(t *testing.T) {
	s := reduce(t, emptyState(), StartNewChat{ID: "a"}, BeginGeneration{})

	next, err := Reduce(s, CompleteGeneration{ConversationID: "gone", User: userMsg("u1", "hi"), Model: modelMsg("m1", "hello")})
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.False(t, next.IsLoading)
	assert.Empty(t, next.Conversations[0].Messages)
}

func TestDerivedTitleTruncation(t *testing.T) {
	prompt := "Tell me everything about the history of the Roman Empire"
	s := reduce(t, emptyState(),
		StartNewChat{ID: "a", Title: "New Chat"},
		CompleteGeneration{User: userMsg("u1", prompt), Model: modelMsg("m1", "...")},
	)
	assert.Equal(t, "Tell me everything about the history of ...", s.Conversations[0].Title)

	s = reduce(t, emptyState(),
		StartNewChat{ID: "a", Title: "New Chat"},
		CompleteGeneration{User: userMsg("u1", "Short question"), Model: modelMsg("m1", "ok")},
	)
	assert.Equal(t, "Short question", s.Conversations[0].Title)
}

func TestFailGeneration(t *testing.T) {
	s := reduce(t, emptyState(),
		StartNewChat{ID: "a", Title: "New Chat"},
		BeginGeneration{},
		FailGeneration{User: userMsg("u1", "hi"), ErrorMessage: "Quota exceeded", FinishReason: "SAFETY"},
	)

	assert.False(t, s.IsLoading)
	conv := s.Conversations[0]
	require.Len(t, conv.Messages, 2)
	assert.True(t, conv.Messages[0].IsErrorAssociated)
	assert.True(t, conv.Messages[1].IsErrorAssociated)
	assert.NotEmpty(t, conv.Messages[1].ID)
	assert.Equal(t, "u1", *conv.Messages[1].ResponseTo)
	assert.Equal(t, "**Error:** Quota exceeded\n\n**Reason:** SAFETY", conv.Messages[1].Content.Text())
	assert.Equal(t, "New Chat", conv.Title)
}

func TestToggleMessageSelectionSelectsPairs(t *testing.T) {
	s := reduce(t, emptyState(),
		StartNewChat{ID: "a"},
		CompleteGeneration{User: userMsg("u1", "one"), Model: modelMsg("m1", "uno")},
		CompleteGeneration{User: userMsg("u2", "two"), Model: modelMsg("m2", "dos")},
	)

	s = reduce(t, s, ToggleMessageSelection{MessageID: "m1"})
	assert.ElementsMatch(t, []string{"u1", "m1"}, s.SelectedMessageIDs)

	s = reduce(t, s, ToggleMessageSelection{MessageID: "u2"})
	assert.ElementsMatch(t, []string{"u1", "m1", "u2", "m2"}, s.SelectedMessageIDs)

	s = reduce(t, s, ToggleMessageSelection{MessageID: "u1"})
	assert.ElementsMatch(t, []string{"u2", "m2"}, s.SelectedMessageIDs)

	s = reduce(t, s, ToggleMessageSelection{MessageID: "nope"})
	assert.ElementsMatch(t, []string{"u2", "m2"}, s.SelectedMessageIDs)
}

func TestToggleMessageSelectionUnpaired(t *testing.T) {
	orphan := modelMsg("m0", "legacy reply")
	p := Persisted{
		Conversations: []model.Conversation{{
			ID:       "a",
			Title:    "Legacy",
			Messages: []model.Message{userMsg("u0", "legacy"), orphan},
		}},
		CurrentConversationID: stringPtr("a"),
	}

	s := reduce(t, FromPersisted(p), ToggleMessageSelection{MessageID: "m0"})
	assert.Equal(t, []string{"m0"}, s.SelectedMessageIDs)
}

func TestDeleteSelectedMessages(t *testing.T) {
	s := reduce(t, emptyState(),
		StartNewChat{ID: "a"},
		CompleteGeneration{User: userMsg("u1", "one"), Model: modelMsg("m1", "uno")},
		CompleteGeneration{User: userMsg("u2", "two"), Model: modelMsg("m2", "dos")},
		ToggleMessageSelection{MessageID: "m1"},
		DeleteSelectedMessages{},
	)

	conv := s.Conversations[0]
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "u2", conv.Messages[0].ID)
	assert.Equal(t, "m2", conv.Messages[1].ID)
	assert.Empty(t, s.SelectedMessageIDs)
}

func TestUpdateTokenCount(t *testing.T) {
	s := reduce(t, emptyState(),
		StartNewChat{ID: "a"},
		UpdateTokenCount{ConversationID: "a", TotalTokens: 120, CachedContentTokenCount: 8},
		UpdateTokenCount{ConversationID: "missing", TotalTokens: 1},
	)
	assert.Equal(t, 120, s.Conversations[0].TotalTokens)
	assert.Equal(t, 8, s.Conversations[0].CachedContentTokenCount)
}

func TestImportStateKeepsLoading(t *testing.T) {
	s := reduce(t, emptyState(), StartNewChat{ID: "a"}, BeginGeneration{})

	s = reduce(t, s, ImportState{State: Persisted{
		Conversations:         []model.Conversation{model.NewConversation("x", "Imported")},
		CurrentConversationID: stringPtr("x"),
		TroubleshootingMode:   true,
	}})

	assert.True(t, s.IsLoading)
	assert.True(t, s.TroubleshootingMode)
	require.Len(t, s.Conversations, 1)
	assert.Equal(t, "x", *s.CurrentConversationID)
}

func TestReduceDoesNotModifyInput(t *testing.T) {
	before := reduce(t, emptyState(),
		StartNewChat{ID: "a"},
		CompleteGeneration{User: userMsg("u1", "one"), Model: modelMsg("m1", "uno")},
	)
	snapshot := before.Clone()

	_ = reduce(t, before,
		CompleteGeneration{User: userMsg("u2", "two"), Model: modelMsg("m2", "dos")},
		RenameConversation{ID: "a", Title: "changed"},
		ToggleMessageSelection{MessageID: "u1"},
		DeleteSelectedMessages{},
	)

	assert.Equal(t, snapshot, before)
}

func TestFromPersisted(t *testing.T) {
	convs := []model.Conversation{model.NewConversation("a", "A"), model.NewConversation("b", "B")}

	s := FromPersisted(Persisted{Conversations: convs, CurrentConversationID: stringPtr("b")})
	assert.Equal(t, "b", *s.CurrentConversationID)
	assert.False(t, s.IsLoading)
	assert.Empty(t, s.SelectedMessageIDs)

	s = FromPersisted(Persisted{Conversations: convs, CurrentConversationID: stringPtr("gone")})
	assert.Equal(t, "a", *s.CurrentConversationID)

	s = FromPersisted(Persisted{Conversations: convs})
	assert.Nil(t, s.CurrentConversationID)

	s = FromPersisted(Persisted{CurrentConversationID: stringPtr("gone")})
	assert.Nil(t, s.CurrentConversationID)
	assert.NotNil(t, s.Conversations)
}

func TestAbortGeneration(t *testing.T) {
	s := reduce(t, emptyState(), StartNewChat{ID: "a"}, BeginGeneration{}, AbortGeneration{})
	assert.False(t, s.IsLoading)
	assert.Empty(t, s.Conversations[0].Messages)

	s = reduce(t, s, BeginGeneration{})
	assert.True(t, s.IsLoading)
}

func TestClearSelectionAndTroubleshooting(t *testing.T) {
	s := reduce(t, emptyState(),
		StartNewChat{ID: "a"},
		CompleteGeneration{User: userMsg("u1", "one"), Model: modelMsg("m1", "uno")},
		ToggleMessageSelection{MessageID: "u1"},
		ClearMessageSelection{},
		ToggleTroubleshootingMode{},
	)
	assert.Empty(t, s.SelectedMessageIDs)
	assert.True(t, s.TroubleshootingMode)
	assert.True(t, s.Persisted().TroubleshootingMode)

	s = reduce(t, s, ToggleTroubleshootingMode{})
	assert.False(t, s.TroubleshootingMode)
}

func TestDerivedTitleKeepsTitleForAttachmentOnlyPrompt(t *testing.T) {
	user := model.Message{
		ID: "u1",
		Content: model.Content{
			Role:  model.RoleUser,
			Parts: []model.Part{model.InlinePart("image/png", []byte{0x89, 0x50})},
		},
	}
	s := reduce(t, emptyState(),
		StartNewChat{ID: "a", Title: "New Chat"},
		CompleteGeneration{User: user, Model: modelMsg("m1", "a picture")},
	)
	assert.Equal(t, "New Chat", s.Conversations[0].Title)
}
