package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected default host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if !cfg.AI.AssistantEnabled() {
		t.Error("expected assistant enabled by default")
	}
	if cfg.AI.Temperature != 0.2 {
		t.Errorf("expected default temperature 0.2, got %f", cfg.AI.Temperature)
	}
	if cfg.AI.HistoryWindow != 6 {
		t.Errorf("expected default history window 6, got %d", cfg.AI.HistoryWindow)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing host",
			modify:  func(c *Config) { c.Server.Host = "" },
			wantErr: true,
		},
		{
			name:    "port too low",
			modify:  func(c *Config) { c.Server.Port = 0 },
			wantErr: true,
		},
		{
			name:    "port too high",
			modify:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "unknown provider",
			modify:  func(c *Config) { c.AI.Provider = "cohere" },
			wantErr: true,
		},
		{
			name:    "explicit openai provider",
			modify:  func(c *Config) { c.AI.Provider = ProviderOpenAI },
			wantErr: false,
		},
		{
			name:    "temperature too low",
			modify:  func(c *Config) { c.AI.Temperature = -0.1 },
			wantErr: true,
		},
		{
			name:    "temperature too high",
			modify:  func(c *Config) { c.AI.Temperature = 1.1 },
			wantErr: true,
		},
		{
			name:    "zero max tokens",
			modify:  func(c *Config) { c.AI.MaxTokens = 0 },
			wantErr: true,
		},
		{
			name:    "zero history window",
			modify:  func(c *Config) { c.AI.HistoryWindow = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
server:
  host: "0.0.0.0"
  port: 9090
ai:
  provider: "anthropic"
  anthropic_model: "claude-3-5-haiku-20241022"
  temperature: 0.5
  timeout: 30s
  history_window: 10
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.AI.Provider != ProviderAnthropic {
		t.Errorf("expected provider anthropic, got %s", cfg.AI.Provider)
	}
	if cfg.AI.AnthropicModel != "claude-3-5-haiku-20241022" {
		t.Errorf("unexpected model %s", cfg.AI.AnthropicModel)
	}
	if cfg.AI.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.AI.Timeout)
	}
	// Unset fields keep their defaults
	if cfg.AI.MaxTokens != 2000 {
		t.Errorf("expected default max_tokens 2000, got %d", cfg.AI.MaxTokens)
	}
}

func TestLoadFromFile_KeysNotReadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// API keys in a config file must be ignored; they only come from the
	// environment.
	content := `
ai:
  openaikey: "leaked"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.AI.OpenAIKey != "" {
		t.Errorf("expected key ignored, got %q", cfg.AI.OpenAIKey)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SPARQLPAD_PORT", "3030")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SPARQLPAD_AI_PROVIDER", "openai")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Server.Port != 3030 {
		t.Errorf("expected port 3030 from env, got %d", cfg.Server.Port)
	}
	if cfg.AI.OpenAIKey != "sk-test" {
		t.Errorf("expected key from env, got %q", cfg.AI.OpenAIKey)
	}
	if cfg.AI.Provider != ProviderOpenAI {
		t.Errorf("expected provider openai from env, got %s", cfg.AI.Provider)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Server: ServerConfig{
			Port: 9000,
		},
		AI: AIConfig{
			Provider: ProviderOpenAI,
		},
	}

	base.Merge(override)

	if base.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", base.Server.Port)
	}
	// Host should remain from base since override didn't set it
	if base.Server.Host != "127.0.0.1" {
		t.Errorf("expected host to remain default, got %s", base.Server.Host)
	}
	if base.AI.Provider != ProviderOpenAI {
		t.Errorf("expected provider openai, got %s", base.AI.Provider)
	}
	// Enabled was not set by the override, so the base value survives
	if !base.AI.AssistantEnabled() {
		t.Error("expected assistant to remain enabled")
	}
}

func TestConfigMerge_DisabledSurvivesSilentLayer(t *testing.T) {
	base := DefaultConfig()

	// User config switches the assistant off.
	userLayer := &Config{AI: AIConfig{Enabled: boolPtr(false)}}
	base.Merge(userLayer)

	// Project config only touches the port and never mentions ai.
	projectLayer := &Config{Server: ServerConfig{Port: 9090}}
	base.Merge(projectLayer)

	if base.AI.AssistantEnabled() {
		t.Error("a layer that never mentions ai must not re-enable it")
	}
	if base.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", base.Server.Port)
	}

	// An explicit later enable still wins.
	base.Merge(&Config{AI: AIConfig{Enabled: boolPtr(true)}})
	if !base.AI.AssistantEnabled() {
		t.Error("an explicit ai.enabled=true must override the earlier disable")
	}
}

func TestLoadFromFile_EnabledPresence(t *testing.T) {
	tmpDir := t.TempDir()

	// A file that never mentions ai.enabled leaves it unset, so merging the
	// layer cannot clobber a value a lower layer chose.
	silentPath := filepath.Join(tmpDir, "silent.yaml")
	if err := os.WriteFile(silentPath, []byte("server:\n  port: 9090\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	silent, err := LoadFromFile(silentPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if silent.AI.Enabled != nil {
		t.Error("expected ai.enabled unset for a file that does not mention it")
	}

	explicitPath := filepath.Join(tmpDir, "explicit.yaml")
	if err := os.WriteFile(explicitPath, []byte("ai:\n  enabled: false\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	explicit, err := LoadFromFile(explicitPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if explicit.AI.Enabled == nil || *explicit.AI.Enabled {
		t.Error("expected ai.enabled explicitly false")
	}
}

func TestResolvedProvider(t *testing.T) {
	tests := []struct {
		name     string
		ai       AIConfig
		wantName string
		wantOK   bool
	}{
		{
			name:   "disabled",
			ai:     AIConfig{Enabled: boolPtr(false), OpenAIKey: "sk"},
			wantOK: false,
		},
		{
			name:   "enabled but no keys",
			ai:     AIConfig{Enabled: boolPtr(true)},
			wantOK: false,
		},
		{
			name:     "explicit openai with key",
			ai:       AIConfig{Enabled: boolPtr(true), Provider: ProviderOpenAI, OpenAIKey: "sk"},
			wantName: ProviderOpenAI,
			wantOK:   true,
		},
		{
			name:   "explicit openai without key",
			ai:     AIConfig{Enabled: boolPtr(true), Provider: ProviderOpenAI, AnthropicKey: "ak"},
			wantOK: false,
		},
		{
			name:     "auto-select prefers anthropic",
			ai:       AIConfig{Enabled: boolPtr(true), OpenAIKey: "sk", AnthropicKey: "ak"},
			wantName: ProviderAnthropic,
			wantOK:   true,
		},
		{
			name:     "auto-select falls back to openai",
			ai:       AIConfig{Enabled: boolPtr(true), OpenAIKey: "sk"},
			wantName: ProviderOpenAI,
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, _, _, ok := tt.ai.ResolvedProvider()
			if ok != tt.wantOK {
				t.Errorf("ResolvedProvider() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && name != tt.wantName {
				t.Errorf("ResolvedProvider() name = %s, want %s", name, tt.wantName)
			}
		})
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Port = 9999

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", loaded.Server.Port)
	}
}
