package backends

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/docsift/docsift/llm"
	openai "github.com/sashabaranov/go-openai"
)

// defaultRunnerEndpoint is where Docker Model Runner exposes its
// OpenAI-compatible API from inside containers.
const defaultRunnerEndpoint = "http://model-runner.docker.internal/engines/v1"

func init() {
	llm.RegisterBackend(llm.KindRunner, newRunner)
}

// Runner talks to a local model runner through its OpenAI-compatible
// text completions endpoint.
type Runner struct {
	client *openai.Client
	model  string
}

func newRunner(cfg llm.BackendConfig) (llm.Backend, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("runner backend requires a model name")
	}

	conf := openai.DefaultConfig(cfg.APIKey)
	conf.BaseURL = defaultRunnerEndpoint
	if cfg.Endpoint != "" {
		conf.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}
	if cfg.Timeout > 0 {
		conf.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Runner{client: openai.NewClientWithConfig(conf), model: cfg.Model}, nil
}

// Name returns the backend identifier.
func (r *Runner) Name() string {
	return "runner/" + r.model
}

// Kind returns the backend family.
func (r *Runner) Kind() llm.Kind {
	return llm.KindRunner
}

// Complete sends the prompt as a text completion.
func (r *Runner) Complete(ctx context.Context, prompt string, maxResponseTokens int) (string, error) {
	resp, err := r.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       r.model,
		Prompt:      prompt,
		MaxTokens:   maxResponseTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", llm.NewDispatchError(llm.ErrNetwork, fmt.Errorf("runner completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", llm.NewDispatchError(llm.ErrMalformedResponse, fmt.Errorf("runner response has no choices"))
	}
	return strings.TrimSpace(resp.Choices[0].Text), nil
}
