// Package config provides configuration loading and management for docsift.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/docsift/docsift/chunk"
	"github.com/docsift/docsift/llm"
	"github.com/docsift/docsift/schedule"
	"github.com/docsift/docsift/synthesis"
)

// Config represents the complete docsift configuration
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Batch    BatchConfig    `yaml:"batch"`
	Parallel ParallelConfig `yaml:"parallel"`
	Store    StoreConfig    `yaml:"store"`
}

// BackendConfig configures the LLM backend
type BackendConfig struct {
	// Kind selects the backend implementation (openai, ollama, runner, local)
	Kind string `yaml:"kind"`
	// Model is the model name (e.g., "llama3.2", "gpt-4o")
	Model string `yaml:"model"`
	// Endpoint overrides the backend's default API endpoint
	Endpoint string `yaml:"endpoint"`
	// APIKeyEnv names the environment variable holding the API key
	APIKeyEnv string `yaml:"api_key_env"`
	// Command is the subprocess invocation for the local backend
	Command []string `yaml:"command"`
	// MaxTokens overrides the introspected context window (0 = introspect)
	MaxTokens int `yaml:"max_tokens"`
	// Timeout is the maximum time to wait for model responses
	Timeout time.Duration `yaml:"timeout"`
}

// ChunkingConfig configures how oversized content is split
type ChunkingConfig struct {
	// Strategy selects the chunking strategy (auto, document, token, recursive)
	Strategy string `yaml:"strategy"`
	// OverlapLines is the line overlap carried between token chunks
	OverlapLines int `yaml:"overlap_lines"`
	// Policy selects the token-limit remediation (rechunk, truncate)
	Policy string `yaml:"policy"`
	// Pacing is the pause between sibling dispatches
	Pacing time.Duration `yaml:"pacing"`
}

// BatchConfig configures batched processing
type BatchConfig struct {
	// Size is the number of documents per batch
	Size int `yaml:"size"`
	// Delay is the pause between batches
	Delay time.Duration `yaml:"delay"`
}

// ParallelConfig configures concurrent processing
type ParallelConfig struct {
	// Workers bounds concurrent dispatches
	Workers int `yaml:"workers"`
}

// StoreConfig configures the document store
type StoreConfig struct {
	// DSN is the Postgres connection string (empty = in-memory store)
	DSN string `yaml:"dsn"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Kind:      string(llm.KindOllama),
			Model:     "llama3.2",
			APIKeyEnv: "OPENAI_API_KEY",
			Timeout:   5 * time.Minute,
		},
		Chunking: ChunkingConfig{
			Strategy:     string(chunk.StrategyAuto),
			OverlapLines: chunk.DefaultOverlapLines,
			Policy:       string(synthesis.PolicyRechunk),
			Pacing:       500 * time.Millisecond,
		},
		Batch: BatchConfig{
			Size:  5,
			Delay: time.Second,
		},
		Parallel: ParallelConfig{
			Workers: schedule.DefaultWorkers,
		},
		Store: StoreConfig{
			DSN: "",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Backend.Kind == "" {
		return fmt.Errorf("backend.kind is required")
	}
	if c.Backend.Model == "" {
		return fmt.Errorf("backend.model is required")
	}
	if c.Backend.MaxTokens < 0 {
		return fmt.Errorf("backend.max_tokens must not be negative")
	}
	if _, err := chunk.ParseStrategy(c.Chunking.Strategy); err != nil {
		return fmt.Errorf("chunking.strategy: %w", err)
	}
	if _, err := synthesis.ParsePolicy(c.Chunking.Policy); err != nil {
		return fmt.Errorf("chunking.policy: %w", err)
	}
	if c.Chunking.OverlapLines < 0 {
		return fmt.Errorf("chunking.overlap_lines must not be negative")
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be positive")
	}
	if c.Parallel.Workers <= 0 {
		return fmt.Errorf("parallel.workers must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
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

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Backend
	if other.Backend.Kind != "" {
		c.Backend.Kind = other.Backend.Kind
	}
	if other.Backend.Model != "" {
		c.Backend.Model = other.Backend.Model
	}
	if other.Backend.Endpoint != "" {
		c.Backend.Endpoint = other.Backend.Endpoint
	}
	if other.Backend.APIKeyEnv != "" {
		c.Backend.APIKeyEnv = other.Backend.APIKeyEnv
	}
	if len(other.Backend.Command) > 0 {
		c.Backend.Command = other.Backend.Command
	}
	if other.Backend.MaxTokens != 0 {
		c.Backend.MaxTokens = other.Backend.MaxTokens
	}
	if other.Backend.Timeout != 0 {
		c.Backend.Timeout = other.Backend.Timeout
	}

	// Chunking
	if other.Chunking.Strategy != "" {
		c.Chunking.Strategy = other.Chunking.Strategy
	}
	if other.Chunking.OverlapLines != 0 {
		c.Chunking.OverlapLines = other.Chunking.OverlapLines
	}
	if other.Chunking.Policy != "" {
		c.Chunking.Policy = other.Chunking.Policy
	}
	if other.Chunking.Pacing != 0 {
		c.Chunking.Pacing = other.Chunking.Pacing
	}

	// Batch
	if other.Batch.Size != 0 {
		c.Batch.Size = other.Batch.Size
	}
	if other.Batch.Delay != 0 {
		c.Batch.Delay = other.Batch.Delay
	}

	// Parallel
	if other.Parallel.Workers != 0 {
		c.Parallel.Workers = other.Parallel.Workers
	}

	// Store
	if other.Store.DSN != "" {
		c.Store.DSN = other.Store.DSN
	}
}
