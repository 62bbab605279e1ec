package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/capitalize-ai/gemini-chat/internal/service"
	"github.com/capitalize-ai/gemini-chat/internal/state"
)

const maxBodyBytes = 64 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var gerr *service.GenerationError
	switch {
	case errors.As(err, &gerr):
		switch gerr.Kind {
		case service.KindTransport:
			return http.StatusBadGateway
		case service.KindTimeout:
			return http.StatusGatewayTimeout
		default:
			return http.StatusUnprocessableEntity
		}
	case errors.Is(err, service.ErrBusy), errors.Is(err, state.ErrGenerationInFlight):
		return http.StatusConflict
	case errors.Is(err, state.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, state.ErrNoActiveConversation):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoAPIKey):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with the status statusFor assigns. Internal
// errors are not echoed to the client.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
