package state

import (
	"github.com/capitalize-ai/gemini-chat/internal/model"
)

// Action is a typed store command. Every action is applied by Reduce.
type Action interface {
	// Kind names the action for logs.
	Kind() string

	// persisted reports whether the action may change persisted fields.
	persisted() bool
}

// StartNewChat prepends an empty conversation and makes it active.
type StartNewChat struct {
	ID    string
	Title string
}

// SwitchConversation activates an existing conversation.
type SwitchConversation struct {
	ID string
}

// DeleteConversation removes a conversation.
type DeleteConversation struct {
	ID string
}

// RenameConversation sets an explicit title.
type RenameConversation struct {
	ID    string
	Title string
}

// BeginGeneration marks a generation as pending.
type BeginGeneration struct{}

// AbortGeneration clears the pending flag without appending anything.
type AbortGeneration struct{}

// CompleteGeneration appends a successful user/model pair. An empty
// ConversationID targets the active conversation.
type CompleteGeneration struct {
	ConversationID string
	User           model.Message
	Model          model.Message
}

// FailGeneration appends an error-flagged user/model pair. An empty
// ConversationID targets the active conversation.
type FailGeneration struct {
	ConversationID string
	User           model.Message
	ModelID        string
	ErrorMessage   string
	FinishReason   string
}

// ToggleMessageSelection selects or deselects a message together with its pair partner.
type ToggleMessageSelection struct {
	MessageID string
}

// DeleteSelectedMessages removes the selected messages from the active conversation.
type DeleteSelectedMessages struct{}

// ClearMessageSelection empties the selection.
type ClearMessageSelection struct{}

// UpdateTokenCount stores refreshed token counters.
type UpdateTokenCount struct {
	ConversationID          string
	TotalTokens             int
	CachedContentTokenCount int
}

// ToggleTroubleshootingMode flips troubleshooting mode.
type ToggleTroubleshootingMode struct{}

// ImportState replaces all persisted fields.
type ImportState struct {
	State Persisted
}

func (StartNewChat) Kind() string              { return "start_new_chat" }
func (SwitchConversation) Kind() string        { return "switch_conversation" }
func (DeleteConversation) Kind() string        { return "delete_conversation" }
func (RenameConversation) Kind() string        { return "rename_conversation" }
func (BeginGeneration) Kind() string           { return "begin_generation" }
func (AbortGeneration) Kind() string           { return "abort_generation" }
func (CompleteGeneration) Kind() string        { return "complete_generation" }
func (FailGeneration) Kind() string            { return "fail_generation" }
func (ToggleMessageSelection) Kind() string    { return "toggle_message_selection" }
func (DeleteSelectedMessages) Kind() string    { return "delete_selected_messages" }
func (ClearMessageSelection) Kind() string     { return "clear_message_selection" }
func (UpdateTokenCount) Kind() string          { return "update_token_count" }
func (ToggleTroubleshootingMode) Kind() string { return "toggle_troubleshooting_mode" }
func (ImportState) Kind() string               { return "import_state" }

func (StartNewChat) persisted() bool              { return true }
func (SwitchConversation) persisted() bool        { return true }
func (DeleteConversation) persisted() bool        { return true }
func (RenameConversation) persisted() bool        { return true }
func (BeginGeneration) persisted() bool           { return false }
func (AbortGeneration) persisted() bool           { return false }
func (CompleteGeneration) persisted() bool        { return true }
func (FailGeneration) persisted() bool            { return true }
func (ToggleMessageSelection) persisted() bool    { return false }
func (DeleteSelectedMessages) persisted() bool    { return true }
func (ClearMessageSelection) persisted() bool     { return false }
func (UpdateTokenCount) persisted() bool          { return true }
func (ToggleTroubleshootingMode) persisted() bool { return true }
func (ImportState) persisted() bool               { return true }
