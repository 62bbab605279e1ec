package handler

import (
	"net/http"

	"github.com/capitalize-ai/gemini-chat/internal/i18n"
	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/internal/service"
)

// SettingsHandler handles credential and locale endpoints.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(svc *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: svc}
}

// SettingsResponse describes the current settings. The key itself is never
// returned.
type SettingsResponse struct {
	HasAPIKey bool          `json:"hasApiKey"`
	Locale    i18n.Locale   `json:"locale"`
	Supported []i18n.Locale `json:"supportedLocales"`
}

// Get handles GET /api/v1/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, &SettingsResponse{
		HasAPIKey: h.settings.HasAPIKey(ctx),
		Locale:    h.settings.Locale(ctx),
		Supported: h.settings.Supported(),
	})
}

// SetAPIKey handles PUT /api/v1/settings/api-key
func (h *SettingsHandler) SetAPIKey(w http.ResponseWriter, r *http.Request) {
	var req model.SettingsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.settings.SetAPIKey(r.Context(), req.APIKey); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetLocale handles PUT /api/v1/settings/locale
func (h *SettingsHandler) SetLocale(w http.ResponseWriter, r *http.Request) {
	var req model.SettingsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.settings.SetLocale(r.Context(), req.Locale); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
