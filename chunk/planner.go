package chunk

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/docsift/docsift/budget"
	"github.com/docsift/docsift/note"
	"github.com/docsift/docsift/prompt"
	"github.com/docsift/docsift/token"
)

// Plan is the planner's output: the resolved strategy and the chunks to
// dispatch. A single RoleWhole chunk means the content fits in one
// pass. StrategyRecursive plans carry no chunks; the caller drives the
// recursive grouping itself.
type Plan struct {
	Strategy Strategy
	Chunks   []Chunk
}

// SinglePass reports whether the plan is one whole-content chunk.
func (p *Plan) SinglePass() bool {
	return len(p.Chunks) == 1 && p.Chunks[0].Role == RoleWhole && p.Strategy != StrategyDocument
}

// Planner splits documents into chunks under a token budget.
type Planner struct {
	counter      token.Counter
	overlapLines int
	logger       *slog.Logger
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithOverlapLines sets how many trailing lines carry over between
// consecutive token chunks.
func WithOverlapLines(n int) PlannerOption {
	return func(p *Planner) {
		p.overlapLines = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PlannerOption {
	return func(p *Planner) {
		p.logger = logger
	}
}

// NewPlanner creates a planner using the given token counter.
func NewPlanner(counter token.Counter, opts ...PlannerOption) *Planner {
	p := &Planner{
		counter:      counter,
		overlapLines: DefaultOverlapLines,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan decides how to split docs for the question under the budget.
// If everything fits in one pass a single RoleWhole chunk is returned.
// Otherwise the strategy is resolved (auto picks document chunking for
// more than AutoDocumentThreshold documents, token chunking otherwise)
// and the corresponding chunks are produced. StrategyRecursive returns
// an empty plan tagged recursive; grouping happens above the planner.
func (p *Planner) Plan(docs []note.Document, question string, b budget.Budget, strategy Strategy) (*Plan, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to plan")
	}

	combined := prompt.CombineDocuments(docs)
	total := p.counter.Count(prompt.DirectQuestion(question)) + p.counter.Count(combined)

	if total <= b.MaxInputTokens {
		p.logger.Debug("Content fits in a single pass",
			"documents", len(docs), "tokens", total, "budget", b.MaxInputTokens)
		return &Plan{
			Chunks: []Chunk{{
				Index:             0,
				Role:              RoleWhole,
				Text:              combined,
				SourceDocumentIDs: documentIDs(docs),
			}},
		}, nil
	}

	resolved := strategy
	if resolved == StrategyAuto {
		if len(docs) > AutoDocumentThreshold {
			resolved = StrategyDocument
		} else {
			resolved = StrategyToken
		}
	}
	p.logger.Debug("Content exceeds budget, chunking",
		"documents", len(docs), "tokens", total,
		"budget", b.MaxInputTokens, "strategy", string(resolved))

	switch resolved {
	case StrategyDocument:
		return &Plan{Strategy: StrategyDocument, Chunks: p.documentChunks(docs)}, nil
	case StrategyToken:
		chunks, err := p.TokenChunks(combined, documentIDs(docs), question, b)
		if err != nil {
			return nil, err
		}
		return &Plan{Strategy: StrategyToken, Chunks: chunks}, nil
	case StrategyRecursive:
		return &Plan{Strategy: StrategyRecursive}, nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q", strategy)
	}
}

// documentChunks produces one chunk per document, each formatted for an
// independent extraction pass.
func (p *Planner) documentChunks(docs []note.Document) []Chunk {
	chunks := make([]Chunk, len(docs))
	for i, d := range docs {
		chunks[i] = Chunk{
			Index:             i,
			Role:              RoleWhole,
			Text:              prompt.FormatDocument(d),
			SourceDocumentIDs: []string{d.ID},
		}
	}
	return chunks
}

// TokenChunks splits content line-by-line into chunks whose content
// (excluding the carried overlap) stays within the budget minus the
// chunk prompt prefix cost. ids is attributed to every chunk.
func (p *Planner) TokenChunks(content string, ids []string, question string, b budget.Budget) ([]Chunk, error) {
	prefixCost := p.counter.Count(prompt.ChunkExtractionPrefix(question))
	available := b.MaxInputTokens - prefixCost
	if available <= 0 {
		return nil, &PlanningError{
			Reason: fmt.Sprintf("chunk prompt overhead (%d tokens) exceeds input budget (%d tokens)",
				prefixCost, b.MaxInputTokens),
		}
	}

	pieces := p.splitLines(content, available)
	chunks := make([]Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = Chunk{
			Index:             i,
			Role:              positionRole(i, len(pieces)),
			Text:              text,
			SourceDocumentIDs: ids,
		}
	}
	return chunks, nil
}

// splitLines accumulates lines into chunks under maxChunkTokens. When a
// line would overflow the current chunk, the chunk is closed and the
// next one is seeded with the last overlapLines lines for context. A
// single line larger than the budget becomes its own oversized chunk
// rather than being dropped.
func (p *Planner) splitLines(content string, maxChunkTokens int) []string {
	var chunks []string
	var current []string
	currentTokens := 0

	for _, line := range strings.Split(content, "\n") {
		lineTokens := p.counter.Count(line + "\n")

		if currentTokens+lineTokens > maxChunkTokens && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))

			overlap := min(p.overlapLines, len(current))
			current = append([]string(nil), current[len(current)-overlap:]...)
			currentTokens = p.counter.Count(strings.Join(current, "\n") + "\n")
		}

		current = append(current, line)
		currentTokens += lineTokens
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}

// Truncate cuts content to approximately maxTokens by keeping whole
// lines until the budget is reached, then appends the truncation
// marker.
func (p *Planner) Truncate(content string, maxTokens int) string {
	if p.counter.Count(content) <= maxTokens {
		return content
	}

	var kept []string
	currentTokens := 0
	for _, line := range strings.Split(content, "\n") {
		lineTokens := p.counter.Count(line + "\n")
		if currentTokens+lineTokens > maxTokens {
			break
		}
		kept = append(kept, line)
		currentTokens += lineTokens
	}

	return strings.Join(kept, "\n") + prompt.TruncationMarker
}

// Counter returns the planner's token counter.
func (p *Planner) Counter() token.Counter {
	return p.counter
}

func positionRole(index, total int) Role {
	switch {
	case total <= 1:
		return RoleWhole
	case index == 0:
		return RoleFirst
	case index == total-1:
		return RoleLast
	default:
		return RoleMiddle
	}
}

func documentIDs(docs []note.Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}
