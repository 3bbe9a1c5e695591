package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docsift/docsift/observe"
	"github.com/docsift/docsift/token"
	"github.com/google/uuid"
)

// Dispatcher sends one (content, question) pair per call to its
// backend. It never retries: failed calls surface as typed
// DispatchErrors and the caller decides whether a remediation path
// applies.
type Dispatcher struct {
	backend Backend
	counter token.Counter
	ack     AckPredicate
	logger  *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithCounter sets the token counter used for traffic metrics.
func WithCounter(c token.Counter) DispatcherOption {
	return func(d *Dispatcher) {
		d.counter = c
	}
}

// WithAckPredicate sets the acknowledgment detector. nil disables the
// check.
func WithAckPredicate(p AckPredicate) DispatcherOption {
	return func(d *Dispatcher) {
		d.ack = p
	}
}

// NewDispatcher creates a dispatcher for the backend.
func NewDispatcher(backend Backend, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		backend: backend,
		ack:     DefaultAckPredicate,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Backend returns the dispatcher's backend.
func (d *Dispatcher) Backend() Backend {
	return d.backend
}

// Dispatch sends content with a question to the backend and returns the
// response text. maxResponseTokens caps the response where the backend
// supports it. Failures are returned as *DispatchError; token-limit
// rejections are recognized from the error text.
func (d *Dispatcher) Dispatch(ctx context.Context, content, question string, maxResponseTokens int) (string, error) {
	prompt := question + "\n\n" + content
	requestID := uuid.New().String()
	started := time.Now()

	d.logger.Debug("Dispatching model call",
		"request_id", requestID,
		"backend", d.backend.Name(),
		"prompt_bytes", len(prompt))

	observe.DispatchesTotal.WithLabelValues(d.backend.Name()).Inc()
	if d.counter != nil {
		observe.PromptTokens.WithLabelValues(d.backend.Name()).Add(float64(d.counter.Count(prompt)))
	}

	response, err := d.backend.Complete(ctx, prompt, maxResponseTokens)
	observe.DispatchSeconds.WithLabelValues(d.backend.Name()).Observe(time.Since(started).Seconds())

	if err != nil {
		derr := d.classify(err)
		observe.DispatchFailures.WithLabelValues(d.backend.Name(), string(derr.Kind)).Inc()
		d.logger.Warn("Model call failed",
			"request_id", requestID,
			"backend", d.backend.Name(),
			"kind", string(derr.Kind),
			"error", err)
		return "", derr
	}

	if d.counter != nil {
		observe.ResponseTokens.WithLabelValues(d.backend.Name()).Add(float64(d.counter.Count(response)))
	}
	if d.ack != nil && d.ack(response) {
		d.logger.Warn("Backend returned an acknowledgment rather than an answer",
			"request_id", requestID,
			"backend", d.backend.Name())
	}

	d.logger.Debug("Model call completed",
		"request_id", requestID,
		"backend", d.backend.Name(),
		"duration", time.Since(started),
		"response_bytes", len(response))

	return response, nil
}

// classify normalizes backend errors into DispatchErrors. Token-limit
// language in the error text upgrades the kind regardless of what the
// backend reported, since hosted APIs surface overflow as generic
// request errors.
func (d *Dispatcher) classify(err error) *DispatchError {
	if LooksLikeTokenLimit(err.Error()) {
		return NewDispatchError(ErrTokenLimit, err)
	}

	var derr *DispatchError
	if errors.As(err, &derr) {
		return derr
	}

	kind := ErrNetwork
	if d.backend.Kind() == KindLocal {
		kind = ErrProcess
	}
	return NewDispatchError(kind, fmt.Errorf("backend %s: %w", d.backend.Name(), err))
}
