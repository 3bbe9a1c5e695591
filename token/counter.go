// Package token provides token counting for LLM prompt budgeting.
// Counting is strategy-based: an exact counter backed by a model
// tokenizer, and a heuristic counter for backends without one. The
// counter is selected explicitly by backend kind at construction, never
// by inspecting values at call time.
package token

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens in text for a fixed model family.
// Implementations must be deterministic and monotonic:
// Count(a+b) >= Count(a).
type Counter interface {
	// Count returns the token count of text.
	Count(text string) int

	// Name identifies the counting strategy (e.g. "heuristic", "cl100k_base").
	Name() string
}

// Heuristic approximates token count without a tokenizer.
// The estimate is word count plus one token per eight characters,
// which tracks real tokenizers closely enough for budget decisions
// on English prose.
type Heuristic struct{}

// Count returns the approximate token count of text.
func (Heuristic) Count(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	return words + len(text)/8
}

// Name returns the strategy identifier.
func (Heuristic) Name() string {
	return "heuristic"
}

// modelEncodings maps model name prefixes to tiktoken encodings.
// cl100k_base is a safe default for most current chat models.
var modelEncodings = map[string]string{
	"gpt-4":    "cl100k_base",
	"gpt-3.5":  "cl100k_base",
	"claude":   "cl100k_base",
	"mistral":  "cl100k_base",
	"llama":    "cl100k_base",
	"deepseek": "cl100k_base",
}

// encodingForModel resolves the tiktoken encoding name for a model.
func encodingForModel(model string) string {
	lower := strings.ToLower(model)
	if name, ok := tiktoken.MODEL_TO_ENCODING[lower]; ok {
		return name
	}
	for prefix, name := range modelEncodings {
		if strings.Contains(lower, prefix) {
			return name
		}
	}
	return "cl100k_base"
}

// Exact counts tokens with a real model tokenizer.
type Exact struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewExact creates an exact counter for the given model. The encoding
// is resolved from the model name, falling back to cl100k_base for
// unknown models.
func NewExact(model string) (*Exact, error) {
	name := encodingForModel(model)
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	return &Exact{encoding: enc, name: name}, nil
}

// Count returns the exact token count of text.
func (e *Exact) Count(text string) int {
	return len(e.encoding.Encode(text, nil, nil))
}

// Name returns the tokenizer encoding name.
func (e *Exact) Name() string {
	return e.name
}

// ForBackend selects the counter for a backend kind. Hosted OpenAI
// backends get an exact tokenizer; everything else gets the heuristic.
// If the exact tokenizer cannot be loaded the heuristic is returned so
// callers always get a usable counter.
func ForBackend(kind, model string) Counter {
	if kind == "openai" {
		if exact, err := NewExact(model); err == nil {
			return exact
		}
	}
	return Heuristic{}
}
