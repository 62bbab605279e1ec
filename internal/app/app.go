// Package app wires configuration, storage and services into a running
// chat client shared by the CLI and the HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/config"
	"github.com/capitalize-ai/gemini-chat/internal/handler"
	"github.com/capitalize-ai/gemini-chat/internal/i18n"
	"github.com/capitalize-ai/gemini-chat/internal/llm"
	natsclient "github.com/capitalize-ai/gemini-chat/internal/nats"
	"github.com/capitalize-ai/gemini-chat/internal/persist"
	"github.com/capitalize-ai/gemini-chat/internal/service"
	"github.com/capitalize-ai/gemini-chat/internal/state"
	"github.com/capitalize-ai/gemini-chat/internal/storage"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
)

// App holds the wired components.
type App struct {
	Config        *config.Config
	Logger        *logger.Logger
	Catalog       *i18n.Catalog
	Blobs         storage.BlobStore
	NATS          *natsclient.Client
	Store         *state.Store
	Settings      *service.SettingsService
	Conversations *service.ConversationService
	Messages      *service.MessageService
}

// New opens the configured blob store, loads the saved state and builds the
// services. A nil clients factory selects the configured provider.
func New(ctx context.Context, cfg *config.Config, clients llm.Factory, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}

	catalog, err := i18n.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load locales: %w", err)
	}

	a := &App{Config: cfg, Logger: log, Catalog: catalog}

	if err := a.openBlobs(ctx); err != nil {
		return nil, err
	}

	p := persist.New(a.Blobs, log)
	a.Store = state.NewStore(p.Load(ctx), p, log)

	if clients == nil {
		clients = llm.NewFactory(llm.Provider(cfg.Provider))
	}

	a.Settings = service.NewSettingsService(p, catalog, cfg.APIKey(), catalog.Match(cfg.DefaultLocale), log)
	a.Conversations = service.NewConversationService(a.Store, a.Settings, clients, log)
	a.Messages = service.NewMessageService(a.Store, a.Settings, clients, service.Options{
		Provider:       llm.Provider(cfg.Provider),
		Model:          cfg.Model,
		Timeout:        cfg.GenerationTimeout,
		ThinkingBudget: cfg.ThinkingBudget,
	}, log)

	log.Debug("client state loaded",
		zap.String("storage_backend", cfg.StorageBackend),
		zap.Int("conversations", len(a.Store.Snapshot().Conversations)),
	)
	return a, nil
}

func (a *App) openBlobs(ctx context.Context) error {
	backend := storage.Backend(a.Config.StorageBackend)

	if backend != storage.BackendNATS {
		if backend != storage.BackendMemory {
			if err := os.MkdirAll(a.Config.DataDir, 0o700); err != nil {
				return fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		blobs, err := storage.Open(backend, a.Config.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open %s store: %w", backend, err)
		}
		a.Blobs = blobs
		return nil
	}

	client, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      a.Config.NATSURL,
		CAFile:   a.Config.NATSCAFile,
		CertFile: a.Config.NATSCertFile,
		KeyFile:  a.Config.NATSKeyFile,
		Token:    a.Config.NATSToken,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	kv, err := natsclient.OpenKVStore(ctx, client, a.Config.NATSBucket)
	if err != nil {
		client.Close()
		return err
	}
	a.NATS = client
	a.Blobs = kv
	return nil
}

// Router builds the HTTP API over the app's services.
func (a *App) Router() http.Handler {
	return handler.NewRouter(handler.Deps{
		Store:             a.Store,
		Conversations:     a.Conversations,
		Messages:          a.Messages,
		Settings:          a.Settings,
		Blobs:             a.Blobs,
		NATS:              a.NATS,
		Logger:            a.Logger,
		JWTSecret:         a.Config.JWTSecret,
		RateLimitRequests: a.Config.RateLimitRequests,
		RateLimitWindow:   a.Config.RateLimitWindow,
	})
}

// Close releases the blob store.
func (a *App) Close() error {
	if a.Blobs == nil {
		return nil
	}
	return a.Blobs.Close()
}
