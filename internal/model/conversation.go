// Package model defines data structures for the chat client.
package model

// TitleMaxLength is the number of characters kept when deriving a title.
const TitleMaxLength = 40

// DefaultTitle is used when a record carries no title.
const DefaultTitle = "New Chat"

// Conversation represents a titled thread of messages.
type Conversation struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	// Renamed is set once the title was chosen explicitly; the title is then
	// never derived from the first exchange.
	Renamed bool `json:"renamed,omitempty"`

	Messages []Message `json:"messages"`

	TotalTokens             int `json:"totalTokens"`
	CachedContentTokenCount int `json:"cachedContentTokenCount"`
}

// NewConversation creates an empty conversation.
func NewConversation(id, title string) Conversation {
	return Conversation{
		ID:       id,
		Title:    title,
		Messages: []Message{},
	}
}

// FindMessage returns the index of the message with the given id.
func (c *Conversation) FindMessage(id string) (int, bool) {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// HasMessage reports whether the conversation contains a message id.
func (c *Conversation) HasMessage(id string) bool {
	_, ok := c.FindMessage(id)
	return ok
}

// PartnerOf returns the other half of the pair containing id: the model
// message answering a user message, or the user message a model message
// answers.
func (c *Conversation) PartnerOf(id string) (string, bool) {
	i, ok := c.FindMessage(id)
	if !ok {
		return "", false
	}
	msg := c.Messages[i]

	if msg.Role() == RoleModel {
		if msg.ResponseTo == nil || !c.HasMessage(*msg.ResponseTo) {
			return "", false
		}
		return *msg.ResponseTo, true
	}

	for _, m := range c.Messages {
		if m.Role() == RoleModel && m.ResponseTo != nil && *m.ResponseTo == id {
			return m.ID, true
		}
	}
	return "", false
}

// LastMessage returns the final message, if any.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Contents projects the messages to their content. When includeErrors is
// false, error-associated messages are left out.
func (c *Conversation) Contents(includeErrors bool) []Content {
	out := make([]Content, 0, len(c.Messages))
	for _, m := range c.Messages {
		if !includeErrors && m.IsErrorAssociated {
			continue
		}
		out = append(out, m.Content)
	}
	return out
}

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.Clone()
	}
	return out
}

// DeriveTitle builds a title from the text parts of a message: the first
// TitleMaxLength characters, with "..." appended when truncated.
func DeriveTitle(content Content) string {
	runes := []rune(content.Text())
	if len(runes) > TitleMaxLength {
		return string(runes[:TitleMaxLength]) + "..."
	}
	return string(runes)
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// RenameConversationRequest is the request to rename a conversation.
type RenameConversationRequest struct {
	Title string `json:"title"`
}

// TokenCountResponse reports refreshed token counters.
type TokenCountResponse struct {
	ConversationID          string `json:"conversationId"`
	TotalTokens             int    `json:"totalTokens"`
	CachedContentTokenCount int    `json:"cachedContentTokenCount"`
}
