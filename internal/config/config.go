// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the service configuration.
type Config struct {
	LLM       LLMConfig       `toml:"llm"`       // Generator settings
	Storage   StorageConfig   `toml:"storage"`   // Checkpoint store settings
	Server    ServerConfig    `toml:"server"`    // HTTP/SSE server settings
	Events    EventsConfig    `toml:"events"`    // Broadcast and mirroring settings
	Telemetry TelemetryConfig `toml:"telemetry"` // Trace export settings
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
	BaseURL   string `toml:"base_url"` // Custom API endpoint (OpenRouter, LiteLLM, Ollama)
}

// StorageConfig contains checkpoint store settings.
type StorageConfig struct {
	Path     string `toml:"path"`      // SQLite database file
	InMemory bool   `toml:"in_memory"` // true = no durability, checkpoints die with the process
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr string `toml:"addr"` // Listen address (e.g., :8080)
}

// EventsConfig contains broadcast settings.
type EventsConfig struct {
	Capacity         int    `toml:"capacity"`          // Per-subscriber buffer size
	KeepaliveSeconds int    `toml:"keepalive_seconds"` // Idle ping interval
	NATSURL          string `toml:"nats_url"`          // Optional NATS mirror; empty disables
	NATSSubject      string `toml:"nats_subject"`      // Subject prefix for mirrored events
}

// Keepalive returns the idle ping interval as a duration.
func (e EventsConfig) Keepalive() time.Duration {
	return time.Duration(e.KeepaliveSeconds) * time.Second
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string `toml:"protocol"` // grpc (default) or http
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Storage: StorageConfig{
			Path: "taskmill.db",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Events: EventsConfig{
			Capacity:         100,
			KeepaliveSeconds: 30,
			NATSSubject:      "taskmill.sessions",
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads configuration from taskmill.toml in the current
// directory, falling back to defaults when the file does not exist.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	path := filepath.Join(cwd, "taskmill.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// GetAPIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (c *Config) GetAPIKey() string {
	envVar := c.LLM.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(c.LLM.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}
