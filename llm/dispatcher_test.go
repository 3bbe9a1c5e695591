package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/docsift/docsift/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend returns canned responses or errors.
type fakeBackend struct {
	kind     llm.Kind
	response string
	err      error
	prompts  []string
}

func (f *fakeBackend) Name() string   { return "fake" }
func (f *fakeBackend) Kind() llm.Kind { return f.kind }

func (f *fakeBackend) Complete(_ context.Context, prompt string, _ int) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestDispatcher_Success(t *testing.T) {
	backend := &fakeBackend{kind: llm.KindOllama, response: "the answer"}
	d := llm.NewDispatcher(backend)

	resp, err := d.Dispatch(context.Background(), "some content", "what is it?", 500)
	require.NoError(t, err)
	assert.Equal(t, "the answer", resp)

	// Question precedes content in the prompt.
	require.Len(t, backend.prompts, 1)
	assert.Equal(t, "what is it?\n\nsome content", backend.prompts[0])
}

func TestDispatcher_NoRetry(t *testing.T) {
	backend := &fakeBackend{kind: llm.KindOllama, err: errors.New("connection refused")}
	d := llm.NewDispatcher(backend)

	_, err := d.Dispatch(context.Background(), "content", "q", 500)
	require.Error(t, err)
	assert.Len(t, backend.prompts, 1, "dispatcher must not retry")

	var derr *llm.DispatchError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, llm.ErrNetwork, derr.Kind)
}

func TestDispatcher_ProcessBackendErrors(t *testing.T) {
	backend := &fakeBackend{kind: llm.KindLocal, err: errors.New("exit status 1")}
	d := llm.NewDispatcher(backend)

	_, err := d.Dispatch(context.Background(), "content", "q", 500)

	var derr *llm.DispatchError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, llm.ErrProcess, derr.Kind)
}

func TestDispatcher_TokenLimitRecognizedFromText(t *testing.T) {
	backend := &fakeBackend{
		kind: llm.KindOpenAI,
		err:  errors.New("This model's maximum context length is 8192 tokens, your messages exceeded it"),
	}
	d := llm.NewDispatcher(backend)

	_, err := d.Dispatch(context.Background(), "content", "q", 500)
	assert.True(t, llm.IsTokenLimit(err))
}

func TestDispatcher_TypedBackendErrorPreserved(t *testing.T) {
	backend := &fakeBackend{
		kind: llm.KindOllama,
		err:  llm.NewDispatchError(llm.ErrMalformedResponse, errors.New("no choices")),
	}
	d := llm.NewDispatcher(backend)

	_, err := d.Dispatch(context.Background(), "content", "q", 500)

	var derr *llm.DispatchError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, llm.ErrMalformedResponse, derr.Kind)
}

func TestLooksLikeTokenLimit(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"Request exceeds token limit", true},
		{"maximum context length is 8192 tokens", true},
		{"TOKEN LIMIT EXCEEDED", true},
		{"rate limit exceeded", false}, // no "token"
		{"invalid token in request header", false},
		{"connection refused", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, llm.LooksLikeTokenLimit(tt.message), tt.message)
	}
}

func TestDefaultAckPredicate(t *testing.T) {
	assert.True(t, llm.DefaultAckPredicate("I'll analyze the documents once you send them."))
	assert.True(t, llm.DefaultAckPredicate("  Please provide the document content."))
	assert.False(t, llm.DefaultAckPredicate("The contract expires in March."))
	assert.False(t, llm.DefaultAckPredicate(""))
}
