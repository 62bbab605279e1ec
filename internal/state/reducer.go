package state

import (
	"fmt"

	"github.com/capitalize-ai/gemini-chat/internal/model"
)

// Reduce applies an action to a state and returns the next state. It never
// modifies its input. The returned state is always the one to commit; a
// non-nil error reports that the intent of the action could not be carried
// out (the state may still change, e.g. a failed append clears the loading
// flag).
func Reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case StartNewChat:
		return startNewChat(s, a)
	case SwitchConversation:
		return switchConversation(s, a), nil
	case DeleteConversation:
		return deleteConversation(s, a), nil
	case RenameConversation:
		return renameConversation(s, a), nil
	case BeginGeneration:
		return beginGeneration(s)
	case AbortGeneration:
		s.IsLoading = false
		return s, nil
	case CompleteGeneration:
		return completeGeneration(s, a)
	case FailGeneration:
		return failGeneration(s, a)
	case ToggleMessageSelection:
		return toggleMessageSelection(s, a), nil
	case DeleteSelectedMessages:
		return deleteSelectedMessages(s), nil
	case ClearMessageSelection:
		s.SelectedMessageIDs = []string{}
		return s, nil
	case UpdateTokenCount:
		return updateTokenCount(s, a), nil
	case ToggleTroubleshootingMode:
		s.TroubleshootingMode = !s.TroubleshootingMode
		return s, nil
	case ImportState:
		return importState(s, a), nil
	default:
		return s, fmt.Errorf("unknown action %T", a)
	}
}

func startNewChat(s State, a StartNewChat) (State, error) {
	if s.indexOf(a.ID) >= 0 {
		return s, ErrDuplicateConversation
	}

	convs := make([]model.Conversation, 0, len(s.Conversations)+1)
	convs = append(convs, model.NewConversation(a.ID, a.Title))
	convs = append(convs, s.Conversations...)

	s.Conversations = convs
	s.CurrentConversationID = stringPtr(a.ID)
	s.SelectedMessageIDs = []string{}
	return s, nil
}

func switchConversation(s State, a SwitchConversation) State {
	if s.indexOf(a.ID) < 0 {
		return s
	}
	s.CurrentConversationID = stringPtr(a.ID)
	s.SelectedMessageIDs = []string{}
	return s
}

func deleteConversation(s State, a DeleteConversation) State {
	i := s.indexOf(a.ID)
	if i < 0 {
		return s
	}

	convs := make([]model.Conversation, 0, len(s.Conversations)-1)
	convs = append(convs, s.Conversations[:i]...)
	convs = append(convs, s.Conversations[i+1:]...)
	s.Conversations = convs

	if s.CurrentConversationID != nil && *s.CurrentConversationID == a.ID {
		if len(convs) > 0 {
			s.CurrentConversationID = stringPtr(convs[0].ID)
		} else {
			s.CurrentConversationID = nil
		}
	}
	s.SelectedMessageIDs = []string{}
	return s
}

func renameConversation(s State, a RenameConversation) State {
	i := s.indexOf(a.ID)
	if i < 0 {
		return s
	}
	return withConversation(s, i, func(c *model.Conversation) {
		c.Title = a.Title
		c.Renamed = true
	})
}

func beginGeneration(s State) (State, error) {
	if s.IsLoading {
		return s, ErrGenerationInFlight
	}
	if _, ok := s.Current(); !ok {
		return s, ErrNoActiveConversation
	}
	s.IsLoading = true
	return s, nil
}

// target resolves the conversation an append action applies to.
func target(s State, conversationID string) (int, error) {
	if conversationID == "" {
		if s.CurrentConversationID == nil {
			return -1, ErrNoActiveConversation
		}
		conversationID = *s.CurrentConversationID
	}
	i := s.indexOf(conversationID)
	if i < 0 {
		return -1, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	return i, nil
}

func completeGeneration(s State, a CompleteGeneration) (State, error) {
	s.IsLoading = false

	i, err := target(s, a.ConversationID)
	if err != nil {
		return s, err
	}

	user := a.User
	user.Content.Role = model.RoleUser
	reply := a.Model
	reply.Content.Role = model.RoleModel
	reply.ResponseTo = stringPtr(user.ID)

	return withConversation(s, i, func(c *model.Conversation) {
		c.Messages = appendPair(c.Messages, user, reply)
		if len(c.Messages) == 2 && !c.Renamed {
			if title := model.DeriveTitle(user.Content); title != "" {
				c.Title = title
			}
		}
	}), nil
}

func failGeneration(s State, a FailGeneration) (State, error) {
	s.IsLoading = false

	i, err := target(s, a.ConversationID)
	if err != nil {
		return s, err
	}

	user := a.User
	user.Content.Role = model.RoleUser
	user.IsErrorAssociated = true

	modelID := a.ModelID
	if modelID == "" {
		modelID = model.NewID()
	}
	reply := model.Message{
		ID:         modelID,
		ResponseTo: stringPtr(user.ID),
		Content: model.Content{
			Role:  model.RoleModel,
			Parts: []model.Part{model.TextPart(model.ErrorText(a.ErrorMessage, a.FinishReason))},
		},
		IsErrorAssociated: true,
	}

	return withConversation(s, i, func(c *model.Conversation) {
		c.Messages = appendPair(c.Messages, user, reply)
	}), nil
}

func toggleMessageSelection(s State, a ToggleMessageSelection) State {
	conv, ok := s.Current()
	if !ok || !conv.HasMessage(a.MessageID) {
		return s
	}

	pair := []string{a.MessageID}
	if partner, ok := conv.PartnerOf(a.MessageID); ok {
		pair = append(pair, partner)
	}

	allSelected := true
	for _, id := range pair {
		if !s.IsSelected(id) {
			allSelected = false
			break
		}
	}

	selected := make([]string, 0, len(s.SelectedMessageIDs)+len(pair))
	if allSelected {
		for _, id := range s.SelectedMessageIDs {
			if !contains(pair, id) {
				selected = append(selected, id)
			}
		}
	} else {
		selected = append(selected, s.SelectedMessageIDs...)
		for _, id := range pair {
			if !contains(selected, id) {
				selected = append(selected, id)
			}
		}
	}

	s.SelectedMessageIDs = selected
	return s
}

func deleteSelectedMessages(s State) State {
	selection := s.SelectedMessageIDs
	s.SelectedMessageIDs = []string{}

	if len(selection) == 0 || s.CurrentConversationID == nil {
		return s
	}
	i := s.indexOf(*s.CurrentConversationID)
	if i < 0 {
		return s
	}

	return withConversation(s, i, func(c *model.Conversation) {
		kept := make([]model.Message, 0, len(c.Messages))
		for _, m := range c.Messages {
			if !contains(selection, m.ID) {
				kept = append(kept, m)
			}
		}
		c.Messages = kept
	})
}

func updateTokenCount(s State, a UpdateTokenCount) State {
	i := s.indexOf(a.ConversationID)
	if i < 0 {
		return s
	}
	return withConversation(s, i, func(c *model.Conversation) {
		c.TotalTokens = a.TotalTokens
		c.CachedContentTokenCount = a.CachedContentTokenCount
	})
}

func importState(s State, a ImportState) State {
	next := FromPersisted(a.State)
	next.IsLoading = s.IsLoading
	return next
}

// withConversation copies the conversation list, applies fn to a copy of the
// conversation at index i and returns the updated state. Message slices are
// replaced, never modified in place, so earlier snapshots stay intact.
func withConversation(s State, i int, fn func(c *model.Conversation)) State {
	convs := make([]model.Conversation, len(s.Conversations))
	copy(convs, s.Conversations)

	conv := convs[i]
	fn(&conv)
	convs[i] = conv

	s.Conversations = convs
	return s
}

func appendPair(messages []model.Message, user, reply model.Message) []model.Message {
	out := make([]model.Message, 0, len(messages)+2)
	out = append(out, messages...)
	return append(out, user, reply)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
