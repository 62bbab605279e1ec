package model

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Valid reports whether r is one of the roles the remote API accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// InlineData is binary content tagged with a MIME type. Data holds raw bytes
// and is base64 encoded on the wire.
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// Part is a unit of message content: inline text or inline binary data.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// TextPart creates a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// InlinePart creates a binary part.
func InlinePart(mimeType string, data []byte) Part {
	return Part{InlineData: &InlineData{MIMEType: mimeType, Data: data}}
}

// IsText reports whether the part carries text rather than binary data.
func (p Part) IsText() bool {
	return p.InlineData == nil
}

// MarshalJSON always emits exactly one of "text" or "inlineData", so an empty
// text part survives a round trip.
func (p Part) MarshalJSON() ([]byte, error) {
	if p.InlineData != nil {
		return json.Marshal(struct {
			InlineData *InlineData `json:"inlineData"`
		}{p.InlineData})
	}
	return json.Marshal(struct {
		Text string `json:"text"`
	}{p.Text})
}

// Content is a role plus an ordered list of parts.
type Content struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Text concatenates the text parts of the content.
func (c Content) Text() string {
	var sb strings.Builder
	for _, p := range c.Parts {
		if p.IsText() {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Clone returns a deep copy of the content.
func (c Content) Clone() Content {
	out := Content{Role: c.Role, Parts: make([]Part, len(c.Parts))}
	for i, p := range c.Parts {
		out.Parts[i] = p
		if p.InlineData != nil {
			data := make([]byte, len(p.InlineData.Data))
			copy(data, p.InlineData.Data)
			out.Parts[i].InlineData = &InlineData{MIMEType: p.InlineData.MIMEType, Data: data}
		}
	}
	return out
}

// Message represents one turn of a conversation.
type Message struct {
	ID string `json:"id"`

	// ResponseTo is the id of the user message a model message answers.
	// Nil for user messages and unpaired legacy data.
	ResponseTo *string `json:"responseTo"`

	Content Content `json:"content"`

	// IsErrorAssociated marks messages produced on an error path.
	IsErrorAssociated bool `json:"isErrorAssociated"`
}

// Role returns the role of the message content.
func (m Message) Role() Role {
	return m.Content.Role
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	out.Content = m.Content.Clone()
	if m.ResponseTo != nil {
		ref := *m.ResponseTo
		out.ResponseTo = &ref
	}
	return out
}

// NewID returns a new time-ordered unique id.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewUserMessage builds the outbound user message. Attachments become inline
// parts placed before the single text part, in attachment order.
func NewUserMessage(prompt string, attachments []FileBlob) Message {
	parts := make([]Part, 0, len(attachments)+1)
	for _, a := range attachments {
		parts = append(parts, InlinePart(a.MIMEType, a.Data))
	}
	parts = append(parts, TextPart(prompt))

	return Message{
		ID:      NewID(),
		Content: Content{Role: RoleUser, Parts: parts},
	}
}

// NewModelMessage builds a model message answering userID.
func NewModelMessage(text, userID string) Message {
	return Message{
		ID:         NewID(),
		ResponseTo: &userID,
		Content:    Content{Role: RoleModel, Parts: []Part{TextPart(text)}},
	}
}

// ErrorText renders the body of a synthetic error model message.
func ErrorText(errorMessage, finishReason string) string {
	text := "**Error:** " + errorMessage
	if finishReason != "" {
		text += "\n\n**Reason:** " + finishReason
	}
	return text
}

// FileBlob is an attachment ready to be sent as inline data.
type FileBlob struct {
	Name     string `json:"name,omitempty"`
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// GenerateRequest is the request to send a prompt in the active conversation.
type GenerateRequest struct {
	Prompt      string     `json:"prompt"`
	Attachments []FileBlob `json:"attachments,omitempty"`
}

// GenerateResponse is the outcome of a generate or regenerate call.
type GenerateResponse struct {
	ConversationID string   `json:"conversationId"`
	UserMessage    *Message `json:"userMessage,omitempty"`
	ModelMessage   *Message `json:"modelMessage,omitempty"`
	Error          string   `json:"error,omitempty"`
	ErrorKind      string   `json:"errorKind,omitempty"`
	FinishReason   string   `json:"finishReason,omitempty"`
}
