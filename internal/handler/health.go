package handler

import (
	"context"
	"net/http"
	"time"

	natsclient "github.com/capitalize-ai/gemini-chat/internal/nats"
	"github.com/capitalize-ai/gemini-chat/internal/persist"
	"github.com/capitalize-ai/gemini-chat/internal/storage"
)

const readyTimeout = 2 * time.Second

// HealthHandler reports liveness and whether saved state can be reached.
type HealthHandler struct {
	blobs      storage.BlobStore
	natsClient *natsclient.Client
}

// NewHealthHandler creates a new health handler. natsClient is nil unless
// the NATS storage backend is in use.
func NewHealthHandler(blobs storage.BlobStore, natsClient *natsclient.Client) *HealthHandler {
	return &HealthHandler{
		blobs:      blobs,
		natsClient: natsClient,
	}
}

// ReadyResponse is the body of GET /ready.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. The blob store must answer a read of the
// saved chat state.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	resp := &ReadyResponse{Status: "ready", Checks: map[string]string{}}

	if h.natsClient != nil {
		if h.natsClient.IsConnected() {
			resp.Checks["nats"] = "ok"
		} else {
			resp.Checks["nats"] = "not connected"
			resp.Status = "not ready"
		}
	}

	if h.blobs != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if _, _, err := h.blobs.Get(ctx, persist.KeyState); err != nil {
			resp.Checks["storage"] = err.Error()
			resp.Status = "not ready"
		} else {
			resp.Checks["storage"] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
