// Package config provides configuration for the chat client. Values come
// from environment variables, then an optional TOML file, then defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ListenAddr         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Storage
	StorageBackend string
	DataDir        string

	// NATS settings
	NATSURL      string
	NATSBucket   string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings; an empty secret disables auth
	JWTSecret string

	// LLM settings
	Provider          string
	Model             string
	GeminiAPIKey      string
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	GenerationTimeout time.Duration
	ThinkingBudget    int

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool

	// Locale
	DefaultLocale string
}

// File is the on-disk TOML configuration. Every field is optional.
type File struct {
	ListenAddr        string `toml:"listen_addr"`
	StorageBackend    string `toml:"storage_backend"`
	DataDir           string `toml:"data_dir"`
	Provider          string `toml:"provider"`
	Model             string `toml:"model"`
	GenerationTimeout string `toml:"generation_timeout"`
	ThinkingBudget    int    `toml:"thinking_budget"`
	LogLevel          string `toml:"log_level"`
	DefaultLocale     string `toml:"default_locale"`

	NATS struct {
		URL    string `toml:"url"`
		Bucket string `toml:"bucket"`
		Token  string `toml:"token"`
	} `toml:"nats"`

	RateLimit struct {
		Requests int    `toml:"requests"`
		Window   string `toml:"window"`
	} `toml:"rate_limit"`

	Tracing struct {
		Enabled  bool   `toml:"enabled"`
		Endpoint string `toml:"endpoint"`
	} `toml:"tracing"`
}

// DefaultPath returns the config file location: $GEMINICHAT_CONFIG, or
// ~/.geminichat/config.toml.
func DefaultPath() string {
	if p := os.Getenv("GEMINICHAT_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(homeDir(), "config.toml")
}

// Load reads the config file at path, if it exists, and applies environment
// overrides. An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	timeout, err := parseDuration(f.GenerationTimeout, 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid generation_timeout: %w", err)
	}
	window, err := parseDuration(f.RateLimit.Window, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid rate_limit.window: %w", err)
	}

	cfg := &Config{
		// Server
		ListenAddr:         getEnv("LISTEN_ADDR", or(f.ListenAddr, "127.0.0.1:8080")),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0),

		// Storage
		StorageBackend: getEnv("STORAGE_BACKEND", or(f.StorageBackend, "file")),
		DataDir:        getEnv("DATA_DIR", or(f.DataDir, homeDir())),

		// NATS
		NATSURL:      getEnv("NATS_URL", or(f.NATS.URL, "nats://localhost:4222")),
		NATSBucket:   getEnv("NATS_BUCKET", or(f.NATS.Bucket, "GEMINICHAT")),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", f.NATS.Token),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// LLM
		Provider:          getEnv("PROVIDER", or(f.Provider, "gemini")),
		Model:             getEnv("MODEL", f.Model),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		GenerationTimeout: getDurationEnv("GENERATION_TIMEOUT", timeout),
		ThinkingBudget:    getIntEnv("THINKING_BUDGET", orInt(f.ThinkingBudget, 24576)),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", orInt(f.RateLimit.Requests, 30)),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", window),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", or(f.LogLevel, "info")),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", or(f.Tracing.Endpoint, "localhost:4318")),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", f.Tracing.Enabled),

		// Locale
		DefaultLocale: getEnv("DEFAULT_LOCALE", or(f.DefaultLocale, "en")),
	}

	return cfg, nil
}

// APIKey returns the environment credential for the configured provider.
func (c *Config) APIKey() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return c.GeminiAPIKey
	}
}

// AuthEnabled reports whether API requests require a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".geminichat"
	}
	return filepath.Join(home, ".geminichat")
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func orInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
