package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/middleware"
	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/internal/service"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
)

// MessageHandler handles generation endpoints.
type MessageHandler struct {
	messageService *service.MessageService
	logger         *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(msgSvc *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: msgSvc,
		logger:         log,
	}
}

// Generate handles POST /api/v1/generate
func (h *MessageHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := middleware.ValidatePrompt(req.Prompt); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.messageService.Generate(r.Context(), req.Prompt, req.Attachments)
	h.respond(w, r, resp, err)
}

// Regenerate handles POST /api/v1/regenerate
func (h *MessageHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	resp, err := h.messageService.Regenerate(r.Context())
	h.respond(w, r, resp, err)
}

// Models handles GET /api/v1/models
func (h *MessageHandler) Models(w http.ResponseWriter, r *http.Request) {
	resp, err := h.messageService.Models(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MessageHandler) respond(w http.ResponseWriter, r *http.Request, resp *model.GenerateResponse, err error) {
	if err == nil {
		writeJSON(w, http.StatusCreated, resp)
		return
	}

	var gerr *service.GenerationError
	if errors.As(err, &gerr) {
		h.logger.Warn("generation failed",
			zap.String("kind", string(gerr.Kind)),
			zap.String("conversation_id", gerr.ConversationID),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		)
		writeJSON(w, statusFor(err), h.messageService.ResponseFor(gerr))
		return
	}

	writeServiceError(w, err)
}
