package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/attachment"
	"github.com/capitalize-ai/gemini-chat/internal/llm"
	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/internal/state"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
	"github.com/capitalize-ai/gemini-chat/pkg/metrics"
	"github.com/capitalize-ai/gemini-chat/pkg/tracing"
)

var (
	// ErrBusy is returned when a generation is already pending.
	ErrBusy = errors.New("a generation is already in progress")

	// ErrEmptyPrompt is returned for a prompt with no text and no attachments.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// ErrorKind classifies generation failures.
type ErrorKind string

const (
	KindPrecondition ErrorKind = "precondition"
	KindTransport    ErrorKind = "transport"
	KindContent      ErrorKind = "content"
	KindTimeout      ErrorKind = "timeout"
)

// GenerationError reports a failed generation. When Appended is set, the
// attempted user message and an error reply were recorded in the
// conversation.
type GenerationError struct {
	Kind           ErrorKind
	Message        string
	FinishReason   string
	ConversationID string
	UserMessage    model.Message
	Appended       bool
	Err            error
}

func (e *GenerationError) Error() string {
	if e.FinishReason != "" {
		return fmt.Sprintf("%s error: %s (%s)", e.Kind, e.Message, e.FinishReason)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Options configures generation.
type Options struct {
	Provider       llm.Provider
	Model          string
	Timeout        time.Duration
	ThinkingBudget int
}

// MessageService sends prompts to the model and records the outcome in the
// conversation store.
type MessageService struct {
	store    *state.Store
	settings *SettingsService
	clients  llm.Factory
	opts     Options
	logger   *logger.Logger
	tracer   trace.Tracer
}

// NewMessageService creates a new message service.
func NewMessageService(store *state.Store, settings *SettingsService, clients llm.Factory, opts Options, log *logger.Logger) *MessageService {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	return &MessageService{
		store:    store,
		settings: settings,
		clients:  clients,
		opts:     opts,
		logger:   log.Named("messages"),
		tracer:   tracing.Tracer("service"),
	}
}

// Generate sends a prompt with optional attachments in the active
// conversation. On success the user message and the reply are appended as a
// pair. Failures after the conversation is known are appended as an
// error-flagged pair and returned as *GenerationError.
func (s *MessageService) Generate(ctx context.Context, prompt string, attachments []model.FileBlob) (*model.GenerateResponse, error) {
	if strings.TrimSpace(prompt) == "" && len(attachments) == 0 {
		return nil, ErrEmptyPrompt
	}
	blobs, err := attachment.Normalize(attachments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user := model.NewUserMessage(prompt, blobs)

	ctx, span := s.tracer.Start(ctx, "message.generate",
		trace.WithAttributes(attribute.Int("attachments", len(blobs))))
	defer span.End()

	snap, err := s.begin(ctx, user)
	if err != nil {
		return nil, err
	}

	conv, _ := snap.Current()
	contents := append(conv.Contents(snap.TroubleshootingMode), user.Content)
	return s.run(ctx, span, conv.ID, user, contents)
}

// Regenerate asks the model again for the last prompt of the active
// conversation. The new exchange is appended; the previous one stays.
func (s *MessageService) Regenerate(ctx context.Context) (*model.GenerateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "message.regenerate")
	defer span.End()

	snap, err := s.store.BeginGeneration()
	if err != nil {
		return nil, s.beginError(ctx, err, model.Message{})
	}
	conv, _ := snap.Current()

	if len(conv.Messages) < 2 {
		return nil, s.abort(ctx, conv.ID, "errors.notEnoughHistory")
	}

	last := conv.Messages[len(conv.Messages)-1]
	userIdx := -1
	if last.Role() == model.RoleModel && last.ResponseTo != nil {
		userIdx, _ = conv.FindMessage(*last.ResponseTo)
	}
	if userIdx < 0 || conv.Messages[userIdx].Role() != model.RoleUser {
		return nil, s.abort(ctx, conv.ID, "errors.pairNotFound")
	}

	prev := conv.Messages[userIdx]
	user := model.Message{
		ID:      model.NewID(),
		Content: prev.Content.Clone(),
	}

	if key := s.settings.APIKey(ctx); key == "" {
		return nil, s.fail(ctx, conv.ID, user, KindPrecondition, s.settings.T(ctx, "errors.apiKeyNotSet", nil), "", ErrNoAPIKey)
	}

	history := model.Conversation{Messages: conv.Messages[:userIdx]}
	contents := append(history.Contents(snap.TroubleshootingMode), user.Content)

	span.SetAttributes(attribute.String("regenerated_from", prev.ID))
	return s.run(ctx, span, conv.ID, user, contents)
}

// begin marks the generation as pending. Precondition failures are returned
// as *GenerationError; a missing credential is recorded in the conversation.
func (s *MessageService) begin(ctx context.Context, user model.Message) (state.State, error) {
	snap, err := s.store.BeginGeneration()
	if err != nil {
		return snap, s.beginError(ctx, err, user)
	}

	if s.settings.APIKey(ctx) == "" {
		conv, _ := snap.Current()
		return snap, s.fail(ctx, conv.ID, user, KindPrecondition, s.settings.T(ctx, "errors.apiKeyNotSet", nil), "", ErrNoAPIKey)
	}
	return snap, nil
}

func (s *MessageService) beginError(ctx context.Context, err error, user model.Message) error {
	switch {
	case errors.Is(err, state.ErrGenerationInFlight):
		return ErrBusy
	case errors.Is(err, state.ErrNoActiveConversation):
		key := "errors.noActiveConversation"
		if s.settings.APIKey(ctx) == "" {
			key = "errors.apiKeyNotSet"
		}
		return &GenerationError{
			Kind:        KindPrecondition,
			Message:     s.settings.T(ctx, key, nil),
			UserMessage: user,
			Err:         err,
		}
	default:
		return err
	}
}

// abort releases the pending flag for a failure that has no user message to
// record.
func (s *MessageService) abort(ctx context.Context, convID, key string) error {
	_ = s.store.Dispatch(state.AbortGeneration{})
	return &GenerationError{
		Kind:           KindPrecondition,
		Message:        s.settings.T(ctx, key, nil),
		ConversationID: convID,
	}
}

// run calls the model and records the outcome in conversation convID.
func (s *MessageService) run(ctx context.Context, span trace.Span, convID string, user model.Message, contents []model.Content) (*model.GenerateResponse, error) {
	log := s.logger.WithConversation(convID)
	span.SetAttributes(attribute.String("conversation_id", convID))

	// The last content is the prompt itself; everything before it is history.
	history := llm.Sanitize(contents[:len(contents)-1])
	latest := contents[len(contents)-1].Parts

	client, err := s.clients(ctx, s.settings.APIKey(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, s.fail(ctx, convID, user, KindTransport, err.Error(), "", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := client.GenerateContent(callCtx, &llm.GenerateRequest{
		History: history,
		Latest:  latest,
		Config: llm.GenerationConfig{
			Model:           s.opts.Model,
			IncludeThoughts: false,
			ThinkingBudget:  s.opts.ThinkingBudget,
		},
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		// The caller went away; nothing failed remotely, so record nothing.
		if errors.Is(ctx.Err(), context.Canceled) {
			metrics.RecordGeneration(client.Name(), "canceled", elapsed)
			log.Info("generation canceled by caller")
			_ = s.store.Dispatch(state.AbortGeneration{})
			return nil, fmt.Errorf("generation canceled: %w", ctx.Err())
		}

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			metrics.RecordGeneration(client.Name(), string(KindTimeout), elapsed)
			log.Warn("generation timed out", zap.Duration("timeout", s.opts.Timeout))
			msg := s.settings.T(ctx, "errors.timeout", map[string]any{"seconds": int(s.opts.Timeout.Seconds())})
			return nil, s.fail(ctx, convID, user, KindTimeout, msg, "", err)
		}

		metrics.RecordGeneration(client.Name(), string(KindTransport), elapsed)
		log.Warn("generation failed", zap.Error(err))
		msg := err.Error()
		if msg == "" {
			msg = s.settings.T(ctx, "errors.unknownApiError", nil)
		}
		return nil, s.fail(ctx, convID, user, KindTransport, msg, "", err)
	}

	metrics.RecordTokens(resp.Model, resp.TokensIn, resp.TokensOut)

	if resp.Text == "" {
		metrics.RecordGeneration(client.Name(), string(KindContent), elapsed)
		log.Warn("generation returned no text", zap.String("finish_reason", resp.FinishReason))
		msg := resp.FinishMessage
		if msg == "" {
			msg = s.settings.T(ctx, "errors.unknownApiError", nil)
		}
		span.SetStatus(codes.Error, "empty response")
		return nil, s.fail(ctx, convID, user, KindContent, msg, resp.FinishReason, nil)
	}

	reply := model.NewModelMessage(resp.Text, user.ID)
	if err := s.store.Dispatch(state.CompleteGeneration{ConversationID: convID, User: user, Model: reply}); err != nil {
		log.Warn("conversation gone before reply arrived", zap.Error(err))
		metrics.RecordGeneration(client.Name(), "discarded", elapsed)
		return nil, fmt.Errorf("failed to record reply: %w", err)
	}

	metrics.RecordGeneration(client.Name(), "success", elapsed)
	log.Info("generation completed",
		zap.String("model", resp.Model),
		zap.Int("tokens_in", resp.TokensIn),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Int64("latency_ms", resp.LatencyMs),
	)

	return s.response(convID, user.ID, reply.ID, "", ""), nil
}

// fail records an error-flagged pair and returns the matching error.
func (s *MessageService) fail(ctx context.Context, convID string, user model.Message, kind ErrorKind, msg, finishReason string, cause error) error {
	replyID := model.NewID()
	err := s.store.Dispatch(state.FailGeneration{
		ConversationID: convID,
		User:           user,
		ModelID:        replyID,
		ErrorMessage:   msg,
		FinishReason:   finishReason,
	})
	if err != nil {
		s.logger.Warn("failed to record error reply", zap.String("conversation_id", convID), zap.Error(err))
	}

	user.IsErrorAssociated = true
	return &GenerationError{
		Kind:           kind,
		Message:        msg,
		FinishReason:   finishReason,
		ConversationID: convID,
		UserMessage:    user,
		Appended:       err == nil,
		Err:            cause,
	}
}

func (s *MessageService) response(convID, userID, replyID, errMsg, kind string) *model.GenerateResponse {
	out := &model.GenerateResponse{ConversationID: convID, Error: errMsg, ErrorKind: kind}
	if conv, ok := s.store.Snapshot().Conversation(convID); ok {
		if i, ok := conv.FindMessage(userID); ok {
			m := conv.Messages[i]
			out.UserMessage = &m
		}
		if i, ok := conv.FindMessage(replyID); ok {
			m := conv.Messages[i]
			out.ModelMessage = &m
		}
	}
	return out
}

// ResponseFor converts a generation failure into a response body.
func (s *MessageService) ResponseFor(gerr *GenerationError) *model.GenerateResponse {
	if !gerr.Appended {
		user := gerr.UserMessage
		out := &model.GenerateResponse{
			ConversationID: gerr.ConversationID,
			Error:          gerr.Message,
			ErrorKind:      string(gerr.Kind),
			FinishReason:   gerr.FinishReason,
		}
		if user.ID != "" {
			out.UserMessage = &user
		}
		return out
	}

	out := s.response(gerr.ConversationID, gerr.UserMessage.ID, "", gerr.Message, string(gerr.Kind))
	out.FinishReason = gerr.FinishReason
	if conv, ok := s.store.Snapshot().Conversation(gerr.ConversationID); ok {
		if partner, ok := conv.PartnerOf(gerr.UserMessage.ID); ok {
			if i, ok := conv.FindMessage(partner); ok {
				m := conv.Messages[i]
				out.ModelMessage = &m
			}
		}
	}
	return out
}

// ModelsResponse lists the models of the configured provider.
type ModelsResponse struct {
	Provider string   `json:"provider"`
	Default  string   `json:"default,omitempty"`
	Models   []string `json:"models"`
}

// Models reports the models the configured provider offers and the one
// generation uses.
func (s *MessageService) Models(ctx context.Context) (*ModelsResponse, error) {
	key := s.settings.APIKey(ctx)
	if key == "" {
		return nil, ErrNoAPIKey
	}

	client, err := s.clients(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	models := client.Models()
	def := s.opts.Model
	if def == "" && len(models) > 0 {
		def = models[0]
	}
	return &ModelsResponse{Provider: client.Name(), Default: def, Models: models}, nil
}
