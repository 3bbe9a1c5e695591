package budget

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// MetadataSource exposes model metadata for context-window discovery.
// Backends that can introspect their models implement this.
type MetadataSource interface {
	Describe(ctx context.Context, model string) (map[string]any, error)
}

// defaultWindows holds fallback context windows per backend kind, used
// when no override is given and introspection yields nothing.
var defaultWindows = map[string]int{
	"openai": 128000,
	"ollama": 32000,
	"runner": 32000,
	"local":  32000,
}

// fieldPaths lists known metadata locations for the context window,
// checked in order before falling back to a recursive key scan. A path
// element matches an exact key or, inside nested maps, any key ending
// in "." plus the element (Ollama reports e.g. "llama.context_length").
var fieldPaths = map[string][][]string{
	"ollama": {
		{"model_info", "context_length"},
		{"context_length"},
		{"context_window"},
		{"parameters", "context_length"},
		{"parameters", "context_window"},
		{"details", "context_length"},
		{"details", "context_window"},
	},
}

// Resolver determines the context budget for a backend and model.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a budget resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve determines the Budget for a model. Resolution order:
// an explicit override is used verbatim as the context window; else
// the backend's metadata is introspected when src is non-nil; else the
// per-kind default applies. An unknown kind with no override is an
// error because no default exists for it.
func (r *Resolver) Resolve(ctx context.Context, kind, model string, override int, src MetadataSource) (Budget, error) {
	if override < 0 {
		return Budget{}, fmt.Errorf("token budget override must be positive, got %d", override)
	}
	if override > 0 {
		r.logger.Debug("Using explicit context window override", "tokens", override)
		return Compute(override), nil
	}

	if src != nil {
		if window := r.introspect(ctx, kind, model, src); window > 0 {
			r.logger.Info("Resolved context window from model metadata",
				"kind", kind, "model", model, "tokens", window)
			return Compute(window), nil
		}
	}

	window, ok := defaultWindows[kind]
	if !ok {
		return Budget{}, fmt.Errorf("no default context window for backend kind %q", kind)
	}
	r.logger.Debug("Using default context window", "kind", kind, "tokens", window)
	return Compute(window), nil
}

// introspect queries model metadata and extracts a context window.
// Known field paths are tried first; the recursive scan is a
// last-resort fallback over arbitrary nested structures.
func (r *Resolver) introspect(ctx context.Context, kind, model string, src MetadataSource) int {
	meta, err := src.Describe(ctx, model)
	if err != nil {
		r.logger.Warn("Model metadata query failed", "model", model, "error", err)
		return 0
	}

	for _, path := range fieldPaths[kind] {
		if v, ok := lookupPath(meta, path); ok {
			return v
		}
	}

	if window := scanContextKeys(meta); window > 0 {
		r.logger.Debug("Context window found by recursive metadata scan",
			"model", model, "tokens", window)
		return window
	}

	return 0
}

// lookupPath walks a field path through nested maps. The final element
// also matches namespaced keys like "qwen2.context_length".
func lookupPath(meta map[string]any, path []string) (int, bool) {
	current := meta
	for i, elem := range path {
		last := i == len(path)-1

		var value any
		var found bool
		if v, ok := current[elem]; ok {
			value, found = v, true
		} else if last {
			for k, v := range current {
				if strings.HasSuffix(k, "."+elem) {
					value, found = v, true
					break
				}
			}
		}
		if !found {
			return 0, false
		}

		if last {
			if n, ok := asInt(value); ok {
				return n, true
			}
			return 0, false
		}

		next, ok := value.(map[string]any)
		if !ok {
			return 0, false
		}
		current = next
	}
	return 0, false
}

// scanContextKeys recursively searches metadata for any numeric value
// under a key containing "context" together with "length" or "window",
// returning the largest match. This is fragile pattern-matching over
// third-party API output and exists only as a fallback.
func scanContextKeys(obj any) int {
	best := 0
	switch v := obj.(type) {
	case map[string]any:
		for k, val := range v {
			lower := strings.ToLower(k)
			if strings.Contains(lower, "context") &&
				(strings.Contains(lower, "length") || strings.Contains(lower, "window")) {
				if n, ok := asInt(val); ok && n > best {
					best = n
				}
			}
			if n := scanContextKeys(val); n > best {
				best = n
			}
		}
	case []any:
		for _, item := range v {
			if n := scanContextKeys(item); n > best {
				best = n
			}
		}
	}
	return best
}

// asInt converts JSON-decoded numeric values (and digit strings) to int.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
