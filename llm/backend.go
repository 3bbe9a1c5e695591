// Package llm dispatches single (content, question) pairs to a model
// backend and classifies failures. Backends are pluggable and
// registered by kind, following the same registry pattern the provider
// implementations use to self-register via init.
package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Kind identifies a backend family. The kind drives token counter
// selection and the default context window, so it is part of the
// backend contract rather than free-form metadata.
type Kind string

const (
	// KindOpenAI is the hosted OpenAI chat completions API.
	KindOpenAI Kind = "openai"

	// KindOllama is a local Ollama server's native API.
	KindOllama Kind = "ollama"

	// KindRunner is an OpenAI-compatible completions endpoint exposed
	// by a local model runner.
	KindRunner Kind = "runner"

	// KindLocal invokes a model through an external command.
	KindLocal Kind = "local"
)

// Backend executes one completion call.
type Backend interface {
	// Name returns the backend instance identifier for logs and metrics.
	Name() string

	// Kind returns the backend family.
	Kind() Kind

	// Complete sends a prompt and returns the model's text response.
	// maxResponseTokens caps the response length where the backend
	// supports it.
	Complete(ctx context.Context, prompt string, maxResponseTokens int) (string, error)
}

// Introspector is implemented by backends that can describe their
// models. The budget resolver uses it for context-window discovery.
type Introspector interface {
	Describe(ctx context.Context, model string) (map[string]any, error)
}

// BackendConfig carries the settings a factory needs to construct a
// backend.
type BackendConfig struct {
	// Model is the model identifier sent to the backend.
	Model string

	// Endpoint overrides the backend's default base URL.
	Endpoint string

	// APIKey authenticates hosted backends.
	APIKey string

	// Command is the argv template for process backends; the prompt is
	// appended as the final argument.
	Command []string

	// Timeout bounds one completion call. Zero uses the backend default.
	Timeout time.Duration
}

// Factory constructs a backend from config.
type Factory func(cfg BackendConfig) (Backend, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[Kind]Factory)
)

// RegisterBackend adds a backend factory for a kind.
func RegisterBackend(kind Kind, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[kind] = f
}

// NewBackend constructs a backend of the given kind.
func NewBackend(kind Kind, cfg BackendConfig) (Backend, error) {
	factoryMu.RLock()
	f := factories[kind]
	factoryMu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("unknown backend kind %q", kind)
	}
	return f(cfg)
}

// RegisteredKinds returns all registered backend kinds.
func RegisteredKinds() []Kind {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	kinds := make([]Kind, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	return kinds
}
