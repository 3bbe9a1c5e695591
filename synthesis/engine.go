package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docsift/docsift/budget"
	"github.com/docsift/docsift/chunk"
	"github.com/docsift/docsift/llm"
	"github.com/docsift/docsift/note"
	"github.com/docsift/docsift/prompt"
)

// OverflowMargin is how many tokens over budget a hosted-backend prompt
// may be before the engine stops attempting the direct call and goes
// straight to remediation. Within the margin the API gets the final
// say, since the local count is approximate.
const OverflowMargin = 5000

// recursiveLeafThreshold is the document count at or below which the
// recursive strategy processes a group directly instead of recursing.
const recursiveLeafThreshold = 5

// recursiveGroupTarget is how many groups the recursive strategy aims
// to partition documents into.
const recursiveGroupTarget = 4

// Policy selects how the engine remediates a token-limit rejection from
// a hosted backend. The choice belongs to the caller; the engine never
// picks silently.
type Policy string

const (
	// PolicyRechunk re-processes the content with token chunking.
	PolicyRechunk Policy = "rechunk"

	// PolicyTruncate drops trailing content to fit the budget and
	// appends a truncation marker.
	PolicyTruncate Policy = "truncate"
)

// ParsePolicy validates a remediation policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyRechunk, PolicyTruncate:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown remediation policy %q (want rechunk or truncate)", s)
	}
}

// Engine answers one question over a document set, chunking and
// synthesizing as the budget requires. All paths through the engine run
// strictly sequentially; concurrency lives in the schedulers that wrap
// it.
type Engine struct {
	dispatcher  *llm.Dispatcher
	planner     *chunk.Planner
	coordinator *Coordinator
	budget      budget.Budget
	strategy    chunk.Strategy
	policy      Policy
	pacing      time.Duration
	logger      *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithStrategy sets the chunking strategy. Default is auto.
func WithStrategy(s chunk.Strategy) EngineOption {
	return func(e *Engine) {
		e.strategy = s
	}
}

// WithPolicy sets the token-limit remediation policy. Default is
// rechunk.
func WithPolicy(p Policy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithPacing sets the delay between sequential dispatch calls. The
// pause keeps fan-out paths under hosted rate limits. Zero disables it.
func WithPacing(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.pacing = d
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine over a dispatcher and planner.
func NewEngine(dispatcher *llm.Dispatcher, planner *chunk.Planner, b budget.Budget, opts ...EngineOption) *Engine {
	e := &Engine{
		dispatcher: dispatcher,
		planner:    planner,
		budget:     b,
		strategy:   chunk.StrategyAuto,
		policy:     PolicyRechunk,
		pacing:     500 * time.Millisecond,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.coordinator = NewCoordinator(dispatcher, planner, b, e.logger)
	return e
}

// Coordinator returns the engine's synthesis coordinator. Schedulers
// use it to merge results they collected themselves.
func (e *Engine) Coordinator() *Coordinator {
	return e.coordinator
}

// Budget returns the engine's context budget.
func (e *Engine) Budget() budget.Budget {
	return e.budget
}

// Answer produces one answer to question over docs. Content that fits
// the budget goes through in a single pass; otherwise the configured
// strategy fans the work out and the coordinator merges it back in
// origin order.
func (e *Engine) Answer(ctx context.Context, docs []note.Document, question string) (string, error) {
	if len(docs) == 0 {
		return "", fmt.Errorf("no documents to process")
	}

	counter := e.planner.Counter()
	combined := prompt.CombineDocuments(docs)
	directQuestion := prompt.DirectQuestion(question)
	total := counter.Count(directQuestion) + counter.Count(combined)
	e.logger.Debug("Token analysis",
		"documents", len(docs),
		"content_tokens", counter.Count(combined),
		"question_tokens", counter.Count(directQuestion),
		"budget", e.budget.MaxInputTokens)

	// Hosted backends get the final say on marginal overflows: the
	// local count is approximate, so the direct call is attempted
	// unless the estimate is over by more than the margin.
	if e.dispatcher.Backend().Kind() == llm.KindOpenAI {
		if overflow := total - e.budget.MaxInputTokens; overflow > OverflowMargin {
			e.logger.Warn("Content exceeds budget beyond margin, remediating without dispatch",
				"overflow_tokens", overflow)
			return e.remediate(ctx, combined, question)
		}
		answer, err := e.dispatcher.Dispatch(ctx, combined, directQuestion, e.budget.ResponseReserve)
		if llm.IsTokenLimit(err) {
			e.logger.Warn("Backend rejected prompt as too large, remediating", "policy", string(e.policy))
			return e.remediate(ctx, combined, question)
		}
		return answer, err
	}

	plan, err := e.planner.Plan(docs, question, e.budget, e.strategy)
	if err != nil {
		return "", err
	}

	if plan.SinglePass() {
		return e.dispatcher.Dispatch(ctx, plan.Chunks[0].Text, directQuestion, e.budget.ResponseReserve)
	}

	switch plan.Strategy {
	case chunk.StrategyDocument:
		return e.documentReduce(ctx, docs, plan.Chunks, question)
	case chunk.StrategyToken:
		return e.chunkReduce(ctx, plan.Chunks, question)
	case chunk.StrategyRecursive:
		return e.recursiveReduce(ctx, docs, question)
	default:
		return "", fmt.Errorf("planner returned unexpected strategy %q", plan.Strategy)
	}
}

// remediate applies the caller-chosen policy after a hosted backend
// token-limit rejection (or a predicted one).
func (e *Engine) remediate(ctx context.Context, content, question string) (string, error) {
	switch e.policy {
	case PolicyTruncate:
		directQuestion := prompt.DirectQuestion(question)
		available := e.budget.MaxInputTokens - e.planner.Counter().Count(directQuestion)
		truncated := e.planner.Truncate(content, available)
		e.logger.Info("Truncated content to fit budget",
			"tokens", e.planner.Counter().Count(truncated))
		return e.dispatcher.Dispatch(ctx, truncated, directQuestion, e.budget.ResponseReserve)
	default:
		return e.tokenReduce(ctx, content, question)
	}
}

// reduce is the shared fan-out/fan-in: run leaf for each of n indexes
// sequentially, turn failures into inline error placeholders, and
// synthesize the labeled partials. Document chunking, token chunking,
// and recursive summarization all reduce through here.
func (e *Engine) reduce(
	ctx context.Context,
	n int,
	leaf func(ctx context.Context, i int) (string, error),
	label func(i int) string,
	separator, kind, question string,
) (string, error) {
	partials := make([]Partial, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := e.pace(ctx); err != nil {
				return "", err
			}
		}

		text, err := leaf(ctx, i)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			// Failed leaves degrade the answer instead of aborting the
			// run; siblings still contribute.
			e.logger.Warn("Leaf call failed, continuing with placeholder",
				"origin_index", i, "error", err)
			text = "Error: " + err.Error()
		}
		partials = append(partials, Partial{OriginIndex: i, Label: label(i), Text: text})
	}

	return e.coordinator.Synthesize(ctx, partials, separator, kind, question)
}

// documentReduce processes each document independently with an
// extraction question and synthesizes the summaries. A document that
// alone exceeds the budget is token-chunked at the document level
// rather than skipped.
func (e *Engine) documentReduce(ctx context.Context, docs []note.Document, chunks []chunk.Chunk, question string) (string, error) {
	counter := e.planner.Counter()
	extraction := prompt.DocumentExtractionQuestion(question)

	return e.reduce(ctx, len(chunks),
		func(ctx context.Context, i int) (string, error) {
			if counter.Count(extraction)+counter.Count(chunks[i].Text) > e.budget.MaxInputTokens {
				e.logger.Debug("Document exceeds budget, token-chunking it",
					"document", docs[i].ID)
				return e.tokenReduce(ctx, chunks[i].Text, question)
			}
			return e.dispatcher.Dispatch(ctx, chunks[i].Text, extraction, e.budget.ResponseReserve)
		},
		func(i int) string {
			return fmt.Sprintf("DOCUMENT %d - %s", i+1, docs[i].Title)
		},
		prompt.DocumentSummarySeparator, "document summaries", question)
}

// chunkReduce extracts from each token chunk and synthesizes the chunk
// summaries.
func (e *Engine) chunkReduce(ctx context.Context, chunks []chunk.Chunk, question string) (string, error) {
	extraction := prompt.ChunkExtractionQuestion(question)

	return e.reduce(ctx, len(chunks),
		func(ctx context.Context, i int) (string, error) {
			content := prompt.ChunkPositionPrefix(i, len(chunks)) + chunks[i].Text
			return e.dispatcher.Dispatch(ctx, content, extraction, e.budget.ResponseReserve)
		},
		func(i int) string {
			return fmt.Sprintf("CHUNK %d", i+1)
		},
		prompt.ChunkSummarySeparator, "document chunk summaries", question)
}

// tokenReduce runs the token-chunking pipeline over raw content.
func (e *Engine) tokenReduce(ctx context.Context, content, question string) (string, error) {
	chunks, err := e.planner.TokenChunks(content, nil, question, e.budget)
	if err != nil {
		return "", err
	}
	if len(chunks) == 1 {
		return e.dispatcher.Dispatch(ctx, chunks[0].Text, prompt.DirectQuestion(question), e.budget.ResponseReserve)
	}
	return e.chunkReduce(ctx, chunks, question)
}

// recursiveReduce partitions documents into roughly equal groups,
// summarizes each (recursing while a group stays above the leaf
// threshold), and synthesizes the group summaries.
func (e *Engine) recursiveReduce(ctx context.Context, docs []note.Document, question string) (string, error) {
	if len(docs) <= recursiveLeafThreshold {
		return e.tokenReduce(ctx, prompt.CombineDocuments(docs), question)
	}

	groupSize := max(2, len(docs)/recursiveGroupTarget)
	groups := partition(docs, groupSize)
	e.logger.Debug("Recursive summarization",
		"documents", len(docs), "groups", len(groups), "group_size", groupSize)

	extraction := prompt.GroupExtractionQuestion(question)

	return e.reduce(ctx, len(groups),
		func(ctx context.Context, i int) (string, error) {
			if len(groups[i]) > recursiveLeafThreshold {
				return e.recursiveReduce(ctx, groups[i], question)
			}
			return e.dispatcher.Dispatch(ctx, prompt.CombineDocuments(groups[i]), extraction, e.budget.ResponseReserve)
		},
		func(i int) string {
			return fmt.Sprintf("GROUP %d", i+1)
		},
		prompt.GroupSummarySeparator, "group summaries", question)
}

// pace waits the configured delay between sequential calls.
func (e *Engine) pace(ctx context.Context) error {
	if e.pacing <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.pacing):
		return nil
	}
}

// partition splits docs into consecutive groups of size, with the final
// group holding the remainder.
func partition(docs []note.Document, size int) [][]note.Document {
	var groups [][]note.Document
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		groups = append(groups, docs[start:end])
	}
	return groups
}
