// Package persist saves and restores the conversation store, the API key,
// and the UI locale through a blob store.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/state"
	"github.com/capitalize-ai/gemini-chat/internal/storage"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
	"github.com/capitalize-ai/gemini-chat/pkg/metrics"
)

// Blob store keys.
const (
	KeyState  = "gemini-chat-history"
	KeyAPIKey = "gemini-api-key"
	KeyLocale = "gemini-chat-locale"
)

const saveTimeout = 5 * time.Second

// Persister reads and writes client state through a blob store.
type Persister struct {
	store  storage.BlobStore
	logger *logger.Logger
}

// New creates a persister over store.
func New(store storage.BlobStore, log *logger.Logger) *Persister {
	if log == nil {
		log = logger.NewNop()
	}
	return &Persister{store: store, logger: log.Named("persist")}
}

// Save serializes the persisted fields under the state key. Failures are
// logged and counted, never returned.
func (p *Persister) Save(s state.Persisted) {
	data, err := json.Marshal(s)
	if err != nil {
		p.logger.Warn("failed to serialize state", zap.Error(err))
		metrics.RecordPersistenceError("serialize")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := p.store.Set(ctx, KeyState, string(data)); err != nil {
		p.logger.Warn("failed to save state", zap.Error(err))
		metrics.RecordPersistenceError("save")
	}
}

// Load reads and migrates the stored state. A missing, unreadable or
// malformed blob yields empty defaults.
func (p *Persister) Load(ctx context.Context) state.Persisted {
	raw, ok, err := p.store.Get(ctx, KeyState)
	if err != nil {
		p.logger.Warn("failed to read state, starting empty", zap.Error(err))
		metrics.RecordPersistenceError("load")
		return state.Persisted{}
	}
	if !ok {
		return state.Persisted{}
	}

	s, warnings, err := Migrate([]byte(raw))
	if err != nil {
		p.logger.Warn("failed to parse state, starting empty", zap.Error(err))
		metrics.RecordPersistenceError("migrate")
		return state.Persisted{}
	}
	for _, w := range warnings {
		p.logger.Warn("state migration", zap.String("detail", w))
	}

	p.logger.Info("state loaded",
		zap.Int("conversations", len(s.Conversations)),
		zap.Int("warnings", len(warnings)),
	)
	return s
}

// APIKey returns the stored credential, or "" when none is set.
func (p *Persister) APIKey(ctx context.Context) (string, error) {
	return p.get(ctx, KeyAPIKey)
}

// SetAPIKey stores the credential. An empty key clears it.
func (p *Persister) SetAPIKey(ctx context.Context, key string) error {
	return p.set(ctx, KeyAPIKey, key)
}

// Locale returns the stored locale, or "" when none is set.
func (p *Persister) Locale(ctx context.Context) (string, error) {
	return p.get(ctx, KeyLocale)
}

// SetLocale stores the locale.
func (p *Persister) SetLocale(ctx context.Context, locale string) error {
	return p.set(ctx, KeyLocale, locale)
}

func (p *Persister) get(ctx context.Context, key string) (string, error) {
	v, _, err := p.store.Get(ctx, key)
	if err != nil {
		metrics.RecordPersistenceError("load")
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}

func (p *Persister) set(ctx context.Context, key, value string) error {
	if err := p.store.Set(ctx, key, value); err != nil {
		metrics.RecordPersistenceError("save")
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// ParseImport accepts a stored state blob, a full-state export with the
// state under "chat", or a single exported conversation, and migrates it.
func ParseImport(raw []byte) (state.Persisted, []string, error) {
	if !gjson.ValidBytes(raw) {
		return state.Persisted{}, nil, fmt.Errorf("%w: invalid JSON", ErrMalformedBlob)
	}
	root := gjson.ParseBytes(raw)

	switch {
	case root.Get("chat").IsObject():
		return Migrate([]byte(root.Get("chat").Raw))
	case root.Get("conversations").Exists():
		return Migrate(raw)
	case root.Get("messages").IsArray():
		wrapped := `{"conversations":[` + root.Raw + `]}`
		s, warnings, err := Migrate([]byte(wrapped))
		if err != nil {
			return s, warnings, err
		}
		if len(s.Conversations) > 0 {
			id := s.Conversations[0].ID
			s.CurrentConversationID = &id
		}
		return s, warnings, nil
	default:
		return state.Persisted{}, nil, fmt.Errorf("%w: no conversations found", ErrMalformedBlob)
	}
}
