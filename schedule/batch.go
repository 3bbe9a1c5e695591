// Package schedule wraps the synthesis engine for batched and
// concurrent execution across independent top-level groups. Batches are
// independent answers joined by a separator; parallel groups are merged
// through one synthesis pass in origin order.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/docsift/docsift/note"
	"github.com/docsift/docsift/prompt"
	"github.com/docsift/docsift/synthesis"
)

// Batch runs the pipeline over sequential document groups with a fixed
// delay between groups to stay under hosted rate limits. Each batch is
// a complete, independent answer; no cross-batch synthesis happens.
type Batch struct {
	engine *synthesis.Engine
	size   int
	delay  time.Duration
	logger *slog.Logger

	batchesRun atomic.Int64
}

// BatchOption configures a Batch scheduler.
type BatchOption func(*Batch)

// WithBatchDelay sets the pause between batches. Default one second.
func WithBatchDelay(d time.Duration) BatchOption {
	return func(b *Batch) {
		b.delay = d
	}
}

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *Batch) {
		b.logger = logger
	}
}

// NewBatch creates a batch scheduler processing size documents per
// batch.
func NewBatch(engine *synthesis.Engine, size int, opts ...BatchOption) (*Batch, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}
	b := &Batch{
		engine: engine,
		size:   size,
		delay:  time.Second,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// BatchesRun returns how many batches completed since construction.
func (b *Batch) BatchesRun() int64 {
	return b.batchesRun.Load()
}

// Run processes docs in ceil(len(docs)/size) sequential batches and
// joins the per-batch answers with the batch separator. A failed batch
// contributes an inline error placeholder; its siblings still run.
func (b *Batch) Run(ctx context.Context, docs []note.Document, question string) (string, error) {
	if len(docs) == 0 {
		return "", fmt.Errorf("no documents to process")
	}

	numBatches := (len(docs) + b.size - 1) / b.size
	b.logger.Info("Processing documents in batches",
		"documents", len(docs), "batches", numBatches, "batch_size", b.size)

	results := make([]string, 0, numBatches)
	for i := 0; i < numBatches; i++ {
		start := i * b.size
		end := min(start+b.size, len(docs))

		b.logger.Info("Processing batch",
			"batch", i+1, "of", numBatches, "documents", end-start)

		result, err := b.engine.Answer(ctx, docs[start:end], question)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			b.logger.Warn("Batch failed, continuing", "batch", i+1, "error", err)
			result = "Error: " + err.Error()
		}
		results = append(results, result)
		b.batchesRun.Add(1)

		if i < numBatches-1 && b.delay > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(b.delay):
			}
		}
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return prompt.BatchHeader + strings.Join(results, prompt.BatchSeparator), nil
}
