// Package synthesis reduces partial results from chunked model calls
// into one final answer, recursively when the combined partials exceed
// the token budget themselves. It owns the engine that ties budget,
// planning, dispatch, and reduction together.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/docsift/docsift/budget"
	"github.com/docsift/docsift/chunk"
	"github.com/docsift/docsift/llm"
	"github.com/docsift/docsift/prompt"
)

// Partial is the output of one dispatch call. OriginIndex is the only
// identity used for ordering: partials are always combined ascending by
// it, regardless of completion order. Label names the partial in the
// synthesis prompt.
type Partial struct {
	OriginIndex int
	Label       string
	Text        string
}

// Coordinator merges partial results through one further model call.
type Coordinator struct {
	dispatcher *llm.Dispatcher
	planner    *chunk.Planner
	budget     budget.Budget
	logger     *slog.Logger
}

// NewCoordinator creates a coordinator. The planner is reused to
// re-chunk synthesis input that exceeds the budget.
func NewCoordinator(dispatcher *llm.Dispatcher, planner *chunk.Planner, b budget.Budget, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		dispatcher: dispatcher,
		planner:    planner,
		budget:     b,
		logger:     logger,
	}
}

// Synthesize combines partials into one answer. Partials are sorted
// ascending by OriginIndex, labeled, joined with separator, and sent
// with a synthesis question naming kind (e.g. "document summaries").
// Synthesis input over the budget is token-chunked and reduced again;
// synthesis is not exempt from the ceiling.
func (c *Coordinator) Synthesize(ctx context.Context, partials []Partial, separator, kind, question string) (string, error) {
	if len(partials) == 0 {
		return "", fmt.Errorf("no partial results to synthesize")
	}

	ordered := make([]Partial, len(partials))
	copy(ordered, partials)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OriginIndex < ordered[j].OriginIndex
	})

	sections := make([]string, len(ordered))
	for i, p := range ordered {
		sections[i] = fmt.Sprintf("%s:\n\n%s", p.Label, p.Text)
	}
	content := strings.Join(sections, separator)
	synthQuestion := prompt.SynthesisQuestion(kind, question)

	counter := c.planner.Counter()
	total := counter.Count(synthQuestion) + counter.Count(content)
	if total > c.budget.MaxInputTokens {
		c.logger.Info("Synthesis input exceeds budget, re-chunking",
			"partials", len(ordered), "tokens", total, "budget", c.budget.MaxInputTokens)
		return c.reduceOversized(ctx, content, question)
	}

	return c.dispatcher.Dispatch(ctx, content, synthQuestion, c.budget.ResponseReserve)
}

// reduceOversized token-chunks oversized synthesis input, extracts from
// each chunk, and synthesizes the extractions. Each level shrinks the
// content to at most one response per chunk, so the recursion
// terminates.
func (c *Coordinator) reduceOversized(ctx context.Context, content, question string) (string, error) {
	chunks, err := c.planner.TokenChunks(content, nil, question, c.budget)
	if err != nil {
		return "", err
	}

	if len(chunks) == 1 {
		return c.dispatcher.Dispatch(ctx, chunks[0].Text,
			prompt.SynthesisQuestion("summaries", question), c.budget.ResponseReserve)
	}

	partials := make([]Partial, len(chunks))
	for i, ch := range chunks {
		text, err := c.dispatcher.Dispatch(ctx,
			prompt.ChunkPositionPrefix(i, len(chunks))+ch.Text,
			prompt.ChunkExtractionQuestion(question),
			c.budget.ResponseReserve)
		if err != nil {
			// A failed chunk degrades the synthesis input instead of
			// aborting it.
			text = "Error: " + err.Error()
		}
		partials[i] = Partial{
			OriginIndex: i,
			Label:       fmt.Sprintf("CHUNK %d", i+1),
			Text:        text,
		}
	}

	return c.Synthesize(ctx, partials, prompt.ChunkSummarySeparator, "document chunk summaries", question)
}
