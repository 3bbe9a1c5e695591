// Package backends provides the built-in model backends. Importing the
// package registers them with the llm registry via init.
package backends

import (
	"context"
	"fmt"
	"net/http"

	"github.com/docsift/docsift/llm"
	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are a helpful assistant that answers questions about documents."

func init() {
	llm.RegisterBackend(llm.KindOpenAI, newOpenAI)
}

// OpenAI is the hosted OpenAI chat completions backend.
type OpenAI struct {
	client *openai.Client
	model  string
}

func newOpenAI(cfg llm.BackendConfig) (llm.Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai backend requires an API key")
	}

	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		conf.BaseURL = cfg.Endpoint
	}
	if cfg.Timeout > 0 {
		conf.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}

	return &OpenAI{client: openai.NewClientWithConfig(conf), model: model}, nil
}

// Name returns the backend identifier.
func (o *OpenAI) Name() string {
	return "openai/" + o.model
}

// Kind returns the backend family.
func (o *OpenAI) Kind() llm.Kind {
	return llm.KindOpenAI
}

// Complete sends the prompt as a chat completion.
func (o *OpenAI) Complete(ctx context.Context, prompt string, maxResponseTokens int) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   maxResponseTokens,
	})
	if err != nil {
		return "", llm.NewDispatchError(llm.ErrNetwork, fmt.Errorf("openai chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", llm.NewDispatchError(llm.ErrMalformedResponse, fmt.Errorf("openai response has no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}
