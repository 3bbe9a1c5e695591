package budget_test

import (
	"context"
	"errors"
	"testing"

	"github.com/docsift/docsift/budget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_Tiers(t *testing.T) {
	tests := []struct {
		name        string
		window      int
		wantReserve int
		wantInput   int
	}{
		{name: "small window uses 25 percent", window: 4000, wantReserve: 1000, wantInput: 2800},
		{name: "small window reserve floor", window: 1200, wantReserve: 500, wantInput: 1000}, // clamped to floor
		{name: "medium window uses 20 percent", window: 8000, wantReserve: 1600, wantInput: 6000},
		{name: "medium window reserve floor", window: 4001, wantReserve: 800, wantInput: 2801},
		{name: "large window uses 15 percent", window: 32000, wantReserve: 4800, wantInput: 26400},
		{name: "large window reserve floor", window: 9000, wantReserve: 1500, wantInput: 6700},
		{name: "very large window uses 10 percent", window: 128000, wantReserve: 12800, wantInput: 114200},
		{name: "very large window reserve floor", window: 33000, wantReserve: 3300, wantInput: 28700},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := budget.Compute(tt.window)
			assert.Equal(t, tt.window, b.ContextWindow)
			assert.Equal(t, tt.wantReserve, b.ResponseReserve)
			assert.Equal(t, tt.wantInput, b.MaxInputTokens)
		})
	}
}

func TestCompute_InputFloor(t *testing.T) {
	// A tiny window would compute a negative input allowance; it must
	// clamp to the floor instead.
	b := budget.Compute(600)
	assert.Equal(t, budget.MinInputTokens, b.MaxInputTokens)
	assert.Positive(t, b.ResponseReserve)
}

// stubMetadata implements budget.MetadataSource for tests.
type stubMetadata struct {
	meta map[string]any
	err  error
}

func (s *stubMetadata) Describe(_ context.Context, _ string) (map[string]any, error) {
	return s.meta, s.err
}

func TestResolver_ExplicitOverride(t *testing.T) {
	r := budget.NewResolver(nil)

	b, err := r.Resolve(context.Background(), "ollama", "llama3", 16000, nil)
	require.NoError(t, err)
	assert.Equal(t, 16000, b.ContextWindow)
}

func TestResolver_NegativeOverride(t *testing.T) {
	r := budget.NewResolver(nil)

	_, err := r.Resolve(context.Background(), "ollama", "llama3", -5, nil)
	assert.Error(t, err)
}

func TestResolver_MetadataFieldPath(t *testing.T) {
	r := budget.NewResolver(nil)
	src := &stubMetadata{meta: map[string]any{
		"model_info": map[string]any{
			"llama.context_length": float64(8192),
		},
	}}

	b, err := r.Resolve(context.Background(), "ollama", "llama3", 0, src)
	require.NoError(t, err)
	assert.Equal(t, 8192, b.ContextWindow)
}

func TestResolver_MetadataTopLevelKey(t *testing.T) {
	r := budget.NewResolver(nil)
	src := &stubMetadata{meta: map[string]any{
		"context_length": "4096",
	}}

	b, err := r.Resolve(context.Background(), "ollama", "llama3", 0, src)
	require.NoError(t, err)
	assert.Equal(t, 4096, b.ContextWindow)
}

func TestResolver_RecursiveScanFallback(t *testing.T) {
	r := budget.NewResolver(nil)
	// No known path matches; the scan must find the largest nested
	// context-ish value.
	src := &stubMetadata{meta: map[string]any{
		"capabilities": []any{
			map[string]any{"max_context_window": float64(2048)},
			map[string]any{"extended_context_length": float64(65536)},
		},
	}}

	b, err := r.Resolve(context.Background(), "ollama", "mystery", 0, src)
	require.NoError(t, err)
	assert.Equal(t, 65536, b.ContextWindow)
}

func TestResolver_MetadataErrorFallsBackToDefault(t *testing.T) {
	r := budget.NewResolver(nil)
	src := &stubMetadata{err: errors.New("connection refused")}

	b, err := r.Resolve(context.Background(), "ollama", "llama3", 0, src)
	require.NoError(t, err)
	assert.Equal(t, 32000, b.ContextWindow)
}

func TestResolver_Defaults(t *testing.T) {
	r := budget.NewResolver(nil)

	b, err := r.Resolve(context.Background(), "openai", "gpt-4o", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 128000, b.ContextWindow)

	b, err = r.Resolve(context.Background(), "runner", "llama3", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 32000, b.ContextWindow)

	_, err = r.Resolve(context.Background(), "mainframe", "x", 0, nil)
	assert.Error(t, err)
}
