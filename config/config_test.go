package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Backend.Kind != "ollama" {
		t.Errorf("expected default backend kind ollama, got %s", cfg.Backend.Kind)
	}
	if cfg.Backend.Model != "llama3.2" {
		t.Errorf("expected default model llama3.2, got %s", cfg.Backend.Model)
	}
	if cfg.Chunking.Strategy != "auto" {
		t.Errorf("expected default strategy auto, got %s", cfg.Chunking.Strategy)
	}
	if cfg.Chunking.OverlapLines != 10 {
		t.Errorf("expected default overlap 10, got %d", cfg.Chunking.OverlapLines)
	}
	if cfg.Batch.Size != 5 {
		t.Errorf("expected default batch size 5, got %d", cfg.Batch.Size)
	}
	if cfg.Parallel.Workers != 2 {
		t.Errorf("expected default workers 2, got %d", cfg.Parallel.Workers)
	}
	if cfg.Store.DSN != "" {
		t.Errorf("expected empty store DSN by default, got %s", cfg.Store.DSN)
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
			name:    "missing backend kind",
			modify:  func(c *Config) { c.Backend.Kind = "" },
			wantErr: true,
		},
		{
			name:    "missing model",
			modify:  func(c *Config) { c.Backend.Model = "" },
			wantErr: true,
		},
		{
			name:    "negative max tokens",
			modify:  func(c *Config) { c.Backend.MaxTokens = -1 },
			wantErr: true,
		},
		{
			name:    "unknown strategy",
			modify:  func(c *Config) { c.Chunking.Strategy = "semantic" },
			wantErr: true,
		},
		{
			name:    "unknown policy",
			modify:  func(c *Config) { c.Chunking.Policy = "retry" },
			wantErr: true,
		},
		{
			name:    "negative overlap",
			modify:  func(c *Config) { c.Chunking.OverlapLines = -1 },
			wantErr: true,
		},
		{
			name:    "zero batch size",
			modify:  func(c *Config) { c.Batch.Size = 0 },
			wantErr: true,
		},
		{
			name:    "zero workers",
			modify:  func(c *Config) { c.Parallel.Workers = 0 },
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
	// Create temp file with config
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
backend:
  kind: "openai"
  model: "gpt-4o"
  api_key_env: "MY_KEY"
  max_tokens: 64000
  timeout: 10m
chunking:
  strategy: "token"
  overlap_lines: 5
  policy: "truncate"
batch:
  size: 8
  delay: 2s
parallel:
  workers: 4
store:
  dsn: "postgres://localhost/docsift?sslmode=disable"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Backend.Kind != "openai" {
		t.Errorf("expected backend kind openai, got %s", cfg.Backend.Kind)
	}
	if cfg.Backend.Model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", cfg.Backend.Model)
	}
	if cfg.Backend.APIKeyEnv != "MY_KEY" {
		t.Errorf("expected api key env MY_KEY, got %s", cfg.Backend.APIKeyEnv)
	}
	if cfg.Backend.MaxTokens != 64000 {
		t.Errorf("expected max tokens 64000, got %d", cfg.Backend.MaxTokens)
	}
	if cfg.Backend.Timeout != 10*time.Minute {
		t.Errorf("expected timeout 10m, got %v", cfg.Backend.Timeout)
	}
	if cfg.Chunking.Strategy != "token" {
		t.Errorf("expected strategy token, got %s", cfg.Chunking.Strategy)
	}
	if cfg.Chunking.OverlapLines != 5 {
		t.Errorf("expected overlap 5, got %d", cfg.Chunking.OverlapLines)
	}
	if cfg.Batch.Size != 8 {
		t.Errorf("expected batch size 8, got %d", cfg.Batch.Size)
	}
	if cfg.Parallel.Workers != 4 {
		t.Errorf("expected workers 4, got %d", cfg.Parallel.Workers)
	}
	if cfg.Store.DSN == "" {
		t.Error("expected store DSN to be set")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Backend: BackendConfig{
			Model: "override-model",
		},
		Batch: BatchConfig{
			Size: 12,
		},
	}

	base.Merge(override)

	if base.Backend.Model != "override-model" {
		t.Errorf("expected model override-model, got %s", base.Backend.Model)
	}
	// Kind should remain from base since override didn't set it
	if base.Backend.Kind != "ollama" {
		t.Errorf("expected backend kind to remain default, got %s", base.Backend.Kind)
	}
	if base.Batch.Size != 12 {
		t.Errorf("expected batch size 12, got %d", base.Batch.Size)
	}
	if base.Parallel.Workers != 2 {
		t.Errorf("expected workers to remain default, got %d", base.Parallel.Workers)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Backend.Model = "saved-model"

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
	if loaded.Backend.Model != "saved-model" {
		t.Errorf("expected model saved-model, got %s", loaded.Backend.Model)
	}
}
