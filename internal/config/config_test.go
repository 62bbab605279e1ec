package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PROVIDER", "")
	t.Setenv("GENERATION_TIMEOUT", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, "file", cfg.StorageBackend)
	assert.Equal(t, 2*time.Minute, cfg.GenerationTimeout)
	assert.Equal(t, 24576, cfg.ThinkingBudget)
	assert.False(t, cfg.AuthEnabled())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr = "0.0.0.0:9000"
storage_backend = "bolt"
provider = "openai"
generation_timeout = "45s"
default_locale = "ru"

[nats]
url = "nats://broker:4222"

[rate_limit]
requests = 5
window = "10s"
`), 0o600))

	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, "sqlite", cfg.StorageBackend)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "sk-test", cfg.APIKey())
	assert.Equal(t, 45*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, "nats://broker:4222", cfg.NATSURL)
	assert.Equal(t, 5, cfg.RateLimitRequests)
	assert.Equal(t, 10*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, "ru", cfg.DefaultLocale)
	assert.True(t, cfg.AuthEnabled())
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`generation_timeout = "soon"`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`listen_addr = `), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("GEMINICHAT_CONFIG", "/etc/geminichat.toml")
	assert.Equal(t, "/etc/geminichat.toml", DefaultPath())
}
