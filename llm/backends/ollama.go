package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docsift/docsift/llm"
)

// maxResponseSize limits response bodies to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

const defaultOllamaHost = "http://localhost:11434"

func init() {
	llm.RegisterBackend(llm.KindOllama, newOllama)
}

// Ollama talks to a local Ollama server's native API. It also
// implements llm.Introspector: /api/show exposes model metadata the
// budget resolver mines for the context window.
type Ollama struct {
	host       string
	model      string
	httpClient *http.Client
}

func newOllama(cfg llm.BackendConfig) (llm.Backend, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama backend requires a model name")
	}

	host := defaultOllamaHost
	if cfg.Endpoint != "" {
		host = strings.TrimSuffix(cfg.Endpoint, "/")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 180 * time.Second
	}

	return &Ollama{
		host:       host,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the backend identifier.
func (o *Ollama) Name() string {
	return "ollama/" + o.model
}

// Kind returns the backend family.
func (o *Ollama) Kind() llm.Kind {
	return llm.KindOllama
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete sends the prompt to /api/generate.
func (o *Ollama) Complete(ctx context.Context, prompt string, maxResponseTokens int) (string, error) {
	body, err := o.post(ctx, "/api/generate", generateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{NumPredict: maxResponseTokens},
	})
	if err != nil {
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", llm.NewDispatchError(llm.ErrMalformedResponse, fmt.Errorf("parse ollama response: %w", err))
	}
	return resp.Response, nil
}

// Describe returns model metadata from /api/show.
func (o *Ollama) Describe(ctx context.Context, model string) (map[string]any, error) {
	if model == "" {
		model = o.model
	}
	body, err := o.post(ctx, "/api/show", map[string]string{"name": model})
	if err != nil {
		return nil, err
	}

	var meta map[string]any
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("parse ollama model metadata: %w", err)
	}
	return meta, nil
}

func (o *Ollama) post(ctx context.Context, path string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, llm.NewDispatchError(llm.ErrNetwork, fmt.Errorf("ollama request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, llm.NewDispatchError(llm.ErrNetwork, fmt.Errorf("read ollama response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		return nil, llm.NewDispatchError(llm.ErrNetwork,
			fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, snippet))
	}

	return body, nil
}
