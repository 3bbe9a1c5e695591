package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/docsift/docsift/note"
	"github.com/docsift/docsift/prompt"
	"github.com/docsift/docsift/synthesis"
)

// DefaultWorkers bounds concurrent dispatches when no worker count is
// configured.
const DefaultWorkers = 2

// groupingThreshold is the document count above which documents are
// grouped per worker instead of dispatched individually.
const groupingThreshold = 4

// Parallel fans documents out across a bounded worker pool, summarizes
// each task independently, and merges the summaries with one synthesis
// pass. Output ordering follows document order, never completion order.
type Parallel struct {
	engine  *synthesis.Engine
	workers int
	logger  *slog.Logger

	completed atomic.Int64
	failed    atomic.Int64
}

// ParallelOption configures a Parallel scheduler.
type ParallelOption func(*Parallel)

// WithParallelLogger sets the logger.
func WithParallelLogger(logger *slog.Logger) ParallelOption {
	return func(p *Parallel) {
		p.logger = logger
	}
}

// NewParallel creates a parallel scheduler with the given worker
// count. Zero or negative workers falls back to DefaultWorkers.
func NewParallel(engine *synthesis.Engine, workers int, opts ...ParallelOption) *Parallel {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &Parallel{
		engine:  engine,
		workers: workers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Completed returns the number of tasks finished, successfully or not.
func (p *Parallel) Completed() int64 {
	return p.completed.Load()
}

// Failed returns the number of tasks that produced an error.
func (p *Parallel) Failed() int64 {
	return p.failed.Load()
}

type task struct {
	index    int
	label    string
	docs     []note.Document
	question string
}

type taskResult struct {
	index int
	text  string
	err   error
}

// Run answers question over docs using the worker pool. A single
// document skips the pool entirely. Larger sets are either grouped one
// group per worker share, or dispatched per document, then merged in
// origin order with failed tasks represented inline.
func (p *Parallel) Run(ctx context.Context, docs []note.Document, question string) (string, error) {
	if len(docs) == 0 {
		return "", fmt.Errorf("no documents to process")
	}
	if len(docs) == 1 {
		return p.engine.Answer(ctx, docs, question)
	}

	tasks, kind, separator := p.plan(docs, question)
	p.logger.Info("Processing documents in parallel",
		"documents", len(docs), "tasks", len(tasks), "workers", p.workers)

	results := make(chan taskResult, len(tasks))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- taskResult{index: t.index, err: ctx.Err()}
				return
			}
			text, err := p.engine.Answer(ctx, t.docs, t.question)
			results <- taskResult{index: t.index, text: text, err: err}
		}(t)
	}

	wg.Wait()
	close(results)

	partials := make([]synthesis.Partial, 0, len(tasks))
	for r := range results {
		p.completed.Add(1)
		text := r.text
		if r.err != nil {
			p.failed.Add(1)
			p.logger.Warn("Parallel task failed",
				"task", r.index+1, "error", r.err)
			text = "Error: " + r.err.Error()
		}
		partials = append(partials, synthesis.Partial{
			OriginIndex: r.index,
			Label:       tasks[r.index].label,
			Text:        text,
		})
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return p.engine.Coordinator().Synthesize(ctx, partials, separator, kind, question)
}

// plan splits docs into tasks. Above the grouping threshold documents
// are batched into roughly one group per worker share so a large set
// does not spawn a dispatch per document.
func (p *Parallel) plan(docs []note.Document, question string) ([]task, string, string) {
	if len(docs) > groupingThreshold {
		groupSize := max(1, len(docs)/p.workers)
		tasks := make([]task, 0, (len(docs)+groupSize-1)/groupSize)
		for start := 0; start < len(docs); start += groupSize {
			end := min(start+groupSize, len(docs))
			tasks = append(tasks, task{
				index:    len(tasks),
				label:    fmt.Sprintf("GROUP %d (%d notes)", len(tasks)+1, end-start),
				docs:     docs[start:end],
				question: prompt.GroupExtractionQuestion(question),
			})
		}
		return tasks, "document group summaries", prompt.GroupSeparator
	}

	tasks := make([]task, len(docs))
	for i, doc := range docs {
		tasks[i] = task{
			index:    i,
			label:    fmt.Sprintf("NOTE SUMMARY %d - %s", i+1, doc.Title),
			docs:     docs[i : i+1],
			question: prompt.DocumentExtractionQuestion(question),
		}
	}
	return tasks, "note summaries", prompt.NoteSummarySeparator
}
