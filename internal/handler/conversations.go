// Package handler provides HTTP handlers for the API.
package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/export"
	"github.com/capitalize-ai/gemini-chat/internal/middleware"
	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/internal/service"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
)

// ConversationHandler handles conversation, selection and state endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// State handles GET /api/v1/state
func (h *ConversationHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.State())
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	if r.ContentLength != 0 {
		if !decode(w, r, &req) {
			return
		}
	}
	if req.Title != "" {
		if err := middleware.ValidateTitle(req.Title); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	conv, err := h.service.Create(r.Context(), req.Title)
	if err != nil {
		h.logger.Error("failed to create conversation", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

// Rename handles PATCH /api/v1/conversations/{id}
func (h *ConversationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req model.RenameConversationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Rename(id, req.Title); err != nil {
		writeServiceError(w, err)
		return
	}

	conv, err := h.service.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Delete handles DELETE /api/v1/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	h.service.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

// Activate handles PUT /api/v1/conversations/{id}/active
func (h *ConversationHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Switch(id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tokens handles POST /api/v1/conversations/{id}/tokens
func (h *ConversationHandler) Tokens(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	resp, err := h.service.RefreshTokenCount(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Export handles GET /api/v1/conversations/{id}/export?format=markdown|json
func (h *ConversationHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	format := export.FormatMarkdown
	if f := r.URL.Query().Get("format"); f != "" {
		parsed, err := export.ParseFormat(f)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = parsed
	}

	data, filename, err := h.service.Export(id, format)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ToggleSelection handles POST /api/v1/selection/{messageId}
func (h *ConversationHandler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "messageId")
	if !ok {
		return
	}

	selected, err := h.service.ToggleSelection(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"selectedMessageIds": selected})
}

// ClearSelection handles DELETE /api/v1/selection
func (h *ConversationHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.service.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSelected handles POST /api/v1/selection/delete
func (h *ConversationHandler) DeleteSelected(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"deleted": h.service.DeleteSelected()})
}

// Troubleshooting handles POST /api/v1/troubleshooting
func (h *ConversationHandler) Troubleshooting(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"troubleshootingMode": h.service.ToggleTroubleshooting()})
}

// ExportState handles GET /api/v1/export?includeKey=true
func (h *ConversationHandler) ExportState(w http.ResponseWriter, r *http.Request) {
	includeKey, _ := strconv.ParseBool(r.URL.Query().Get("includeKey"))

	data, err := h.service.ExportState(r.Context(), includeKey)
	if err != nil {
		h.logger.Error("failed to export state", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="gemini-chat-export.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Import handles POST /api/v1/import
func (h *ConversationHandler) Import(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := h.service.Import(raw)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := chi.URLParam(r, name)
	if err := middleware.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}
