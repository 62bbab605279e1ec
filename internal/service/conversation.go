// Package service provides the operations of the chat client on top of the
// conversation store.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/export"
	"github.com/capitalize-ai/gemini-chat/internal/llm"
	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/internal/persist"
	"github.com/capitalize-ai/gemini-chat/internal/state"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
	"github.com/capitalize-ai/gemini-chat/pkg/tracing"
)

var (
	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoAPIKey is returned when an operation needs a credential and none is set.
	ErrNoAPIKey = errors.New("API key is not set")
)

// ConversationService handles conversation operations.
type ConversationService struct {
	store    *state.Store
	settings *SettingsService
	clients  llm.Factory
	logger   *logger.Logger
	tracer   trace.Tracer
}

// NewConversationService creates a new conversation service.
func NewConversationService(store *state.Store, settings *SettingsService, clients llm.Factory, log *logger.Logger) *ConversationService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ConversationService{
		store:    store,
		settings: settings,
		clients:  clients,
		logger:   log.Named("conversations"),
		tracer:   tracing.Tracer("service"),
	}
}

// State returns the current store snapshot.
func (s *ConversationService) State() state.State {
	return s.store.Snapshot()
}

// Get returns a conversation by id.
func (s *ConversationService) Get(id string) (model.Conversation, error) {
	conv, ok := s.store.Snapshot().Conversation(id)
	if !ok {
		return model.Conversation{}, fmt.Errorf("%w: %s", state.ErrConversationNotFound, id)
	}
	return conv, nil
}

// Create starts a new conversation and makes it active.
func (s *ConversationService) Create(ctx context.Context, title string) (model.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = s.settings.T(ctx, "app.newChat", nil)
	}

	id, err := s.store.StartNewChat(title)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}

	s.logger.Info("conversation created", zap.String("conversation_id", id))
	return s.Get(id)
}

// Switch activates a conversation.
func (s *ConversationService) Switch(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	s.store.SwitchConversation(id)
	return nil
}

// Rename sets an explicit title.
func (s *ConversationService) Rename(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if _, err := s.Get(id); err != nil {
		return err
	}
	s.store.RenameConversation(id, title)
	return nil
}

// Delete removes a conversation. Unknown ids are ignored.
func (s *ConversationService) Delete(id string) {
	s.store.DeleteConversation(id)
	s.logger.Info("conversation deleted", zap.String("conversation_id", id))
}

// ToggleSelection selects or deselects a message and its pair partner in
// the active conversation, and returns the new selection.
func (s *ConversationService) ToggleSelection(messageID string) ([]string, error) {
	conv, ok := s.store.Current()
	if !ok {
		return nil, state.ErrNoActiveConversation
	}
	if !conv.HasMessage(messageID) {
		return nil, fmt.Errorf("%w: message %s not in active conversation", ErrInvalidInput, messageID)
	}
	s.store.ToggleMessageSelection(messageID)
	return s.store.Snapshot().SelectedMessageIDs, nil
}

// ClearSelection empties the selection.
func (s *ConversationService) ClearSelection() {
	s.store.ClearMessageSelection()
}

// DeleteSelected removes the selected messages from the active conversation
// and returns how many were removed.
func (s *ConversationService) DeleteSelected() int {
	before := s.store.Snapshot()
	conv, ok := before.Current()
	if !ok {
		s.store.ClearMessageSelection()
		return 0
	}

	s.store.DeleteSelectedMessages()

	after, _ := s.store.Snapshot().Conversation(conv.ID)
	removed := len(conv.Messages) - len(after.Messages)
	s.logger.Info("messages deleted",
		zap.String("conversation_id", conv.ID),
		zap.Int("count", removed),
	)
	return removed
}

// DeleteMessages removes the given messages of the active conversation
// together with their pair partners, and returns how many were removed. Any
// earlier selection is discarded. Unknown ids leave the conversation
// untouched.
func (s *ConversationService) DeleteMessages(ids []string) (int, error) {
	s.store.ClearMessageSelection()
	for _, id := range ids {
		if s.store.Snapshot().IsSelected(id) {
			continue
		}
		if _, err := s.ToggleSelection(id); err != nil {
			s.store.ClearMessageSelection()
			return 0, err
		}
	}
	return s.DeleteSelected(), nil
}

// ToggleTroubleshooting flips troubleshooting mode and returns the new value.
func (s *ConversationService) ToggleTroubleshooting() bool {
	s.store.ToggleTroubleshootingMode()
	return s.store.Snapshot().TroubleshootingMode
}

// RefreshTokenCount asks the provider for the size of a conversation and
// stores the result. An empty id means the active conversation.
func (s *ConversationService) RefreshTokenCount(ctx context.Context, id string) (*model.TokenCountResponse, error) {
	conv, ok := s.store.Current()
	if id != "" {
		conv, ok = s.store.Snapshot().Conversation(id)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", state.ErrConversationNotFound, id)
	}

	key := s.settings.APIKey(ctx)
	if key == "" {
		return nil, ErrNoAPIKey
	}

	ctx, span := s.tracer.Start(ctx, "conversation.count_tokens",
		trace.WithAttributes(attribute.String("conversation_id", conv.ID)))
	defer span.End()

	client, err := s.clients(ctx, key)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	contents := make([]model.Content, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		contents = append(contents, m.Content)
	}

	count, err := client.CountTokens(ctx, llm.Sanitize(contents))
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("failed to count tokens", zap.String("conversation_id", conv.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to count tokens: %w", err)
	}

	s.store.UpdateTokenCount(conv.ID, count.TotalTokens, count.CachedContentTokenCount)

	return &model.TokenCountResponse{
		ConversationID:          conv.ID,
		TotalTokens:             count.TotalTokens,
		CachedContentTokenCount: count.CachedContentTokenCount,
	}, nil
}

// Export renders a conversation. An empty id means the active conversation.
func (s *ConversationService) Export(id string, format export.Format) ([]byte, string, error) {
	conv, ok := s.store.Current()
	if id != "" {
		conv, ok = s.store.Snapshot().Conversation(id)
	}
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", state.ErrConversationNotFound, id)
	}

	data, err := export.Conversation(conv, format)
	if err != nil {
		return nil, "", err
	}
	return data, export.Filename(conv, format), nil
}

// ExportState renders the full client state. The credential is included
// only when includeKey is set.
func (s *ConversationService) ExportState(ctx context.Context, includeKey bool) ([]byte, error) {
	full := export.NewFullState(
		s.store.Snapshot(),
		s.settings.APIKey(ctx),
		includeKey,
		s.settings.Locale(ctx),
	)
	return export.JSON(full)
}

// Import replaces all conversations with the contents of an exported
// document and returns the number of conversations imported.
func (s *ConversationService) Import(raw []byte) (int, error) {
	p, warnings, err := persist.ParseImport(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	for _, w := range warnings {
		s.logger.Warn("import migration", zap.String("detail", w))
	}

	s.store.Import(p)
	s.logger.Info("state imported", zap.Int("conversations", len(p.Conversations)))
	return len(p.Conversations), nil
}
