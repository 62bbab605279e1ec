package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/internal/state"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
	"github.com/capitalize-ai/gemini-chat/pkg/metrics"
)

// HeartbeatInterval is how often an idle state feed sends a heartbeat.
var HeartbeatInterval = 30 * time.Second

// StreamHandler serves the state feed over SSE.
type StreamHandler struct {
	store  *state.Store
	logger *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(store *state.Store, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		store:  store,
		logger: log,
	}
}

// Events handles GET /api/v1/events. The current state is sent on connect
// and again after every committed mutation. A slow client only ever sees
// the latest snapshot.
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	updates := make(chan state.State, 1)
	unsubscribe := h.store.Subscribe(func(s state.State) {
		select {
		case <-updates:
		default:
		}
		updates <- s
	})
	defer unsubscribe()

	sendSSEEvent(w, flusher, string(model.EventTypeConnected), map[string]string{"status": "ok"})
	if err := sendSSEEvent(w, flusher, string(model.EventTypeState), h.store.Snapshot()); err != nil {
		h.logger.Warn("failed to send initial state", zap.Error(err))
		return
	}

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected")
			return

		case s := <-updates:
			if err := sendSSEEvent(w, flusher, string(model.EventTypeState), s); err != nil {
				h.logger.Warn("failed to send state", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, string(model.EventTypeHeartbeat), &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
