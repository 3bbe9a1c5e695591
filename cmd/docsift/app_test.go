package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes short", "y\n", true},
		{"yes long", "yes\n", true},
		{"uppercase", "Y\n", true},
		{"no", "n\n", false},
		{"empty line defaults to no", "\n", false},
		{"eof defaults to no", "", false},
		{"garbage", "maybe\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := confirm(strings.NewReader(tt.input), 3, "ollama/llama3.2")
			if err != nil {
				t.Fatalf("confirm() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docsift.yaml")
	content := `
backend:
  kind: "ollama"
  model: "file-model"
batch:
  size: 3
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	opts := &options{
		configPath: configPath,
		model:      "flag-model",
		workers:    6,
	}
	cfg, err := loadConfig(opts, slog.Default())
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Backend.Model != "flag-model" {
		t.Errorf("expected flag to override model, got %s", cfg.Backend.Model)
	}
	if cfg.Backend.Kind != "ollama" {
		t.Errorf("expected kind from file, got %s", cfg.Backend.Kind)
	}
	if cfg.Batch.Size != 3 {
		t.Errorf("expected batch size from file, got %d", cfg.Batch.Size)
	}
	if cfg.Parallel.Workers != 6 {
		t.Errorf("expected workers from flag, got %d", cfg.Parallel.Workers)
	}
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	opts := &options{
		configPath: "", // layered defaults
		strategy:   "semantic",
	}
	// Force file-less loading by running from a directory without a
	// project config.
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(cwd) }()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	if _, err := loadConfig(opts, slog.Default()); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestRootCmdFlags(t *testing.T) {
	cmd := rootCmd()
	for _, name := range []string{
		"tag", "keyword", "question", "list", "limit",
		"backend", "model", "endpoint", "max-tokens",
		"strategy", "policy", "batch-size", "batch-delay",
		"parallel", "max-workers", "yes", "verbose",
		"metrics-addr", "log-level", "config",
	} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing flag --%s", name)
		}
	}
}
