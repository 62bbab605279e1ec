package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/gemini-chat/internal/i18n"
	"github.com/capitalize-ai/gemini-chat/internal/persist"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
)

// SettingsService manages the stored credential and UI locale.
type SettingsService struct {
	persister     *persist.Persister
	catalog       *i18n.Catalog
	fallbackKey   string
	defaultLocale i18n.Locale
	logger        *logger.Logger
}

// NewSettingsService creates a settings service. fallbackKey is used when no
// credential is stored.
func NewSettingsService(p *persist.Persister, catalog *i18n.Catalog, fallbackKey string, defaultLocale i18n.Locale, log *logger.Logger) *SettingsService {
	if log == nil {
		log = logger.NewNop()
	}
	if defaultLocale == "" {
		defaultLocale = i18n.DefaultLocale
	}
	return &SettingsService{
		persister:     p,
		catalog:       catalog,
		fallbackKey:   fallbackKey,
		defaultLocale: defaultLocale,
		logger:        log.Named("settings"),
	}
}

// APIKey returns the stored credential, or the fallback when none is stored.
func (s *SettingsService) APIKey(ctx context.Context) string {
	key, err := s.persister.APIKey(ctx)
	if err != nil {
		s.logger.Warn("failed to read API key", zap.Error(err))
	}
	if key == "" {
		return s.fallbackKey
	}
	return key
}

// HasAPIKey reports whether a credential is available.
func (s *SettingsService) HasAPIKey(ctx context.Context) bool {
	return s.APIKey(ctx) != ""
}

// SetAPIKey stores the credential. An empty key clears it.
func (s *SettingsService) SetAPIKey(ctx context.Context, key string) error {
	return s.persister.SetAPIKey(ctx, strings.TrimSpace(key))
}

// Locale returns the stored locale, or the default.
func (s *SettingsService) Locale(ctx context.Context) i18n.Locale {
	stored, err := s.persister.Locale(ctx)
	if err != nil {
		s.logger.Warn("failed to read locale", zap.Error(err))
	}
	if l, ok := i18n.Parse(stored); ok {
		return l
	}
	return s.defaultLocale
}

// SetLocale stores a supported locale.
func (s *SettingsService) SetLocale(ctx context.Context, locale string) error {
	l, ok := i18n.Parse(locale)
	if !ok {
		return fmt.Errorf("%w: unsupported locale %q", ErrInvalidInput, locale)
	}
	return s.persister.SetLocale(ctx, string(l))
}

// T translates key in the current locale.
func (s *SettingsService) T(ctx context.Context, key string, params map[string]any) string {
	return s.catalog.T(s.Locale(ctx), key, params)
}

// Supported returns the locales with a catalog.
func (s *SettingsService) Supported() []i18n.Locale {
	return s.catalog.Supported()
}
