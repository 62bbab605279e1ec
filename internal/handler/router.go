package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/gemini-chat/internal/middleware"
	natsclient "github.com/capitalize-ai/gemini-chat/internal/nats"
	"github.com/capitalize-ai/gemini-chat/internal/service"
	"github.com/capitalize-ai/gemini-chat/internal/state"
	"github.com/capitalize-ai/gemini-chat/internal/storage"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
)

// Deps are the services the router exposes.
type Deps struct {
	Store         *state.Store
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Settings      *service.SettingsService
	Blobs         storage.BlobStore
	NATS          *natsclient.Client
	Logger        *logger.Logger

	JWTSecret         string
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = logger.NewNop()
	}

	healthHandler := NewHealthHandler(d.Blobs, d.NATS)
	conversationHandler := NewConversationHandler(d.Conversations, log.Named("http"))
	messageHandler := NewMessageHandler(d.Messages, log.Named("http"))
	settingsHandler := NewSettingsHandler(d.Settings)
	streamHandler := NewStreamHandler(d.Store, log.Named("sse"))

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log.Named("http")))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(d.AllowedOrigins...))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(d.JWTSecret))

		r.Get("/state", conversationHandler.State)
		r.Get("/events", streamHandler.Events)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", conversationHandler.Rename)
				r.Delete("/", conversationHandler.Delete)
				r.Put("/active", conversationHandler.Activate)
				r.Post("/tokens", conversationHandler.Tokens)
				r.Get("/export", conversationHandler.Export)
			})
		})

		r.Group(func(r chi.Router) {
			if d.RateLimitRequests > 0 {
				r.Use(middleware.RateLimit(d.RateLimitRequests, d.RateLimitWindow))
			}
			r.Post("/generate", messageHandler.Generate)
			r.Post("/regenerate", messageHandler.Regenerate)
		})

		r.Route("/selection", func(r chi.Router) {
			r.Delete("/", conversationHandler.ClearSelection)
			r.Post("/delete", conversationHandler.DeleteSelected)
			r.Post("/{messageId}", conversationHandler.ToggleSelection)
		})

		r.Post("/troubleshooting", conversationHandler.Troubleshooting)
		r.Get("/models", messageHandler.Models)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Get)
			r.Put("/api-key", settingsHandler.SetAPIKey)
			r.Put("/locale", settingsHandler.SetLocale)
		})

		r.Get("/export", conversationHandler.ExportState)
		r.Post("/import", conversationHandler.Import)
	})

	return r
}
