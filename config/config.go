// Package config provides configuration loading and management for sparqlpad.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Provider names accepted in ai.provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config represents the complete sparqlpad configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	AI     AIConfig     `yaml:"ai"`
}

// ServerConfig configures the HTTP endpoint
type ServerConfig struct {
	// Host is the interface to bind (default: 127.0.0.1)
	Host string `yaml:"host" env:"SPARQLPAD_HOST"`
	// Port is the listen port (default: 8000)
	Port int `yaml:"port" env:"SPARQLPAD_PORT"`
	// SessionTTL is how long an idle chat session is kept
	SessionTTL time.Duration `yaml:"session_ttl" env:"SPARQLPAD_SESSION_TTL"`
}

// AIConfig configures the query assistant
type AIConfig struct {
	// Enabled turns the assistant on; it also needs a key for the provider.
	// A pointer so layered merging can tell "set to false" apart from "not
	// mentioned in this layer"; nil means the default (enabled) applies.
	Enabled *bool `yaml:"enabled" env:"SPARQLPAD_AI_ENABLED"`
	// Provider selects the completion provider ("openai" or "anthropic");
	// empty picks whichever provider has a key configured
	Provider string `yaml:"provider" env:"SPARQLPAD_AI_PROVIDER"`
	// BaseURL overrides the provider API endpoint, e.g. to point at a local
	// mock server during development
	BaseURL string `yaml:"base_url" env:"SPARQLPAD_AI_BASE_URL"`

	// OpenAIKey is read from the environment, never from config files
	OpenAIKey   string `yaml:"-" env:"OPENAI_API_KEY"`
	OpenAIModel string `yaml:"openai_model" env:"SPARQLPAD_OPENAI_MODEL"`

	// AnthropicKey is read from the environment, never from config files
	AnthropicKey   string `yaml:"-" env:"ANTHROPIC_API_KEY"`
	AnthropicModel string `yaml:"anthropic_model" env:"SPARQLPAD_ANTHROPIC_MODEL"`

	// MaxTokens bounds completion length
	MaxTokens int `yaml:"max_tokens" env:"SPARQLPAD_AI_MAX_TOKENS"`
	// Temperature controls randomness (0.0-1.0)
	Temperature float64 `yaml:"temperature" env:"SPARQLPAD_AI_TEMPERATURE"`
	// Timeout is the maximum time to wait for a completion
	Timeout time.Duration `yaml:"timeout" env:"SPARQLPAD_AI_TIMEOUT"`
	// HistoryWindow is how many recent turns feed each prompt
	HistoryWindow int `yaml:"history_window" env:"SPARQLPAD_AI_HISTORY_WINDOW"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:       "127.0.0.1",
			Port:       8000,
			SessionTTL: 2 * time.Hour,
		},
		AI: AIConfig{
			Enabled:       boolPtr(true),
			Provider:      "", // Auto-select from configured keys
			MaxTokens:     2000,
			Temperature:   0.2,
			Timeout:       60 * time.Second,
			HistoryWindow: 6,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	switch c.AI.Provider {
	case "", ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("ai.provider must be %q or %q", ProviderOpenAI, ProviderAnthropic)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 1 {
		return fmt.Errorf("ai.temperature must be between 0 and 1")
	}
	if c.AI.MaxTokens < 1 {
		return fmt.Errorf("ai.max_tokens must be positive")
	}
	if c.AI.HistoryWindow < 1 {
		return fmt.Errorf("ai.history_window must be positive")
	}
	return nil
}

func boolPtr(v bool) *bool {
	return &v
}

// AssistantEnabled reports whether the assistant is switched on. An unset
// Enabled means no layer touched it and the default (on) applies.
func (a AIConfig) AssistantEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// ResolvedProvider returns the provider to use and its credentials. ok is
// false when the assistant cannot run: disabled, no key for the selected
// provider, or no key at all.
func (a AIConfig) ResolvedProvider() (name, apiKey, model string, ok bool) {
	if !a.AssistantEnabled() {
		return "", "", "", false
	}

	switch a.Provider {
	case ProviderOpenAI:
		return ProviderOpenAI, a.OpenAIKey, a.OpenAIModel, a.OpenAIKey != ""
	case ProviderAnthropic:
		return ProviderAnthropic, a.AnthropicKey, a.AnthropicModel, a.AnthropicKey != ""
	}

	// Auto-select: prefer whichever key is present, Anthropic first.
	if a.AnthropicKey != "" {
		return ProviderAnthropic, a.AnthropicKey, a.AnthropicModel, true
	}
	if a.OpenAIKey != "" {
		return ProviderOpenAI, a.OpenAIKey, a.OpenAIModel, true
	}
	return "", "", "", false
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	// Presence-tracked fields must start unset so that merging this layer
	// only overrides what the file actually says.
	config.AI.Enabled = nil
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overlays environment variables onto the config. Environment takes
// precedence over every file layer.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.Host != "" {
		c.Server.Host = other.Server.Host
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.SessionTTL != 0 {
		c.Server.SessionTTL = other.Server.SessionTTL
	}

	// AI
	if other.AI.Enabled != nil {
		c.AI.Enabled = other.AI.Enabled
	}
	if other.AI.Provider != "" {
		c.AI.Provider = other.AI.Provider
	}
	if other.AI.BaseURL != "" {
		c.AI.BaseURL = other.AI.BaseURL
	}
	if other.AI.OpenAIModel != "" {
		c.AI.OpenAIModel = other.AI.OpenAIModel
	}
	if other.AI.AnthropicModel != "" {
		c.AI.AnthropicModel = other.AI.AnthropicModel
	}
	if other.AI.MaxTokens != 0 {
		c.AI.MaxTokens = other.AI.MaxTokens
	}
	if other.AI.Temperature != 0 {
		c.AI.Temperature = other.AI.Temperature
	}
	if other.AI.Timeout != 0 {
		c.AI.Timeout = other.AI.Timeout
	}
	if other.AI.HistoryWindow != 0 {
		c.AI.HistoryWindow = other.AI.HistoryWindow
	}
}
