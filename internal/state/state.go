// Package state holds the conversation store: the application state, the
// typed actions that mutate it, and the single reducer that applies them.
package state

import (
	"errors"

	"github.com/capitalize-ai/gemini-chat/internal/model"
)

var (
	// ErrGenerationInFlight is returned when a generation is already pending.
	ErrGenerationInFlight = errors.New("generation already in progress")

	// ErrNoActiveConversation is returned when an action needs an active conversation.
	ErrNoActiveConversation = errors.New("no active conversation")

	// ErrConversationNotFound is returned when a named conversation does not exist.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrDuplicateConversation is returned when a new conversation reuses an id.
	ErrDuplicateConversation = errors.New("conversation id already exists")
)

// State is the complete client state. Values handed out by the Store share
// message data with the store and must be treated as read-only; use Clone
// before modifying.
type State struct {
	Conversations         []model.Conversation `json:"conversations"`
	CurrentConversationID *string              `json:"currentConversationId"`
	IsLoading             bool                 `json:"isLoading"`
	TroubleshootingMode   bool                 `json:"troubleshootingMode"`
	SelectedMessageIDs    []string             `json:"selectedMessageIds"`
}

// Persisted is the subset of State written to the blob store.
type Persisted struct {
	Conversations         []model.Conversation `json:"conversations"`
	CurrentConversationID *string              `json:"currentConversationId"`
	TroubleshootingMode   bool                 `json:"troubleshootingMode"`
}

// FromPersisted builds an idle state with an empty selection.
func FromPersisted(p Persisted) State {
	convs := p.Conversations
	if convs == nil {
		convs = []model.Conversation{}
	}
	s := State{
		Conversations:       convs,
		TroubleshootingMode: p.TroubleshootingMode,
		SelectedMessageIDs:  []string{},
	}
	if p.CurrentConversationID != nil && s.indexOf(*p.CurrentConversationID) >= 0 {
		s.CurrentConversationID = stringPtr(*p.CurrentConversationID)
	} else if len(convs) > 0 && p.CurrentConversationID != nil {
		s.CurrentConversationID = stringPtr(convs[0].ID)
	}
	return s
}

// Persisted returns the fields of the state that survive a restart.
func (s State) Persisted() Persisted {
	return Persisted{
		Conversations:         s.Conversations,
		CurrentConversationID: s.CurrentConversationID,
		TroubleshootingMode:   s.TroubleshootingMode,
	}
}

// Current returns the active conversation.
func (s State) Current() (model.Conversation, bool) {
	if s.CurrentConversationID == nil {
		return model.Conversation{}, false
	}
	i := s.indexOf(*s.CurrentConversationID)
	if i < 0 {
		return model.Conversation{}, false
	}
	return s.Conversations[i], true
}

// Conversation returns the conversation with the given id.
func (s State) Conversation(id string) (model.Conversation, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return model.Conversation{}, false
	}
	return s.Conversations[i], true
}

// IsSelected reports whether a message id is in the selection set.
func (s State) IsSelected(id string) bool {
	for _, sel := range s.SelectedMessageIDs {
		if sel == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Conversations = make([]model.Conversation, len(s.Conversations))
	for i, c := range s.Conversations {
		out.Conversations[i] = c.Clone()
	}
	if s.CurrentConversationID != nil {
		out.CurrentConversationID = stringPtr(*s.CurrentConversationID)
	}
	out.SelectedMessageIDs = append([]string{}, s.SelectedMessageIDs...)
	return out
}

func (s State) indexOf(id string) int {
	for i := range s.Conversations {
		if s.Conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func stringPtr(s string) *string {
	return &s
}
