// Package chunk plans how a document set is split into bounded-size
// chunks under a token budget. Three strategies are supported plus an
// auto-selector; the planner only produces chunks, it never dispatches
// them.
package chunk

import (
	"fmt"
)

// Role marks a chunk's position within the planned sequence. The role
// only affects the prompt wording given to the model, not the split
// itself.
type Role string

const (
	RoleWhole  Role = "whole"
	RoleFirst  Role = "first"
	RoleMiddle Role = "middle"
	RoleLast   Role = "last"
)

// Chunk is a bounded-size slice of content dispatched as one model
// call. Chunks are consumed exactly once and never persisted.
type Chunk struct {
	Index             int
	Role              Role
	Text              string
	SourceDocumentIDs []string
}

// Strategy selects how oversized content is split.
type Strategy string

const (
	// StrategyAuto picks document chunking for more than ten documents,
	// token chunking otherwise.
	StrategyAuto Strategy = "auto"

	// StrategyDocument processes each document independently with an
	// extraction question, then synthesizes the results.
	StrategyDocument Strategy = "document"

	// StrategyToken splits concatenated content line-by-line into
	// budget-sized chunks with a fixed line overlap.
	StrategyToken Strategy = "token"

	// StrategyRecursive partitions documents into groups, summarizes
	// each group (recursing when a group is still large), then
	// synthesizes the group summaries.
	StrategyRecursive Strategy = "recursive"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyAuto, StrategyDocument, StrategyToken, StrategyRecursive:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown chunking strategy %q (want auto, document, token, or recursive)", s)
	}
}

// PlanningError means no valid chunk plan exists under the budget.
// It is fatal: the fixed prompt overhead alone exceeds what the model
// can accept.
type PlanningError struct {
	Reason string
}

func (e *PlanningError) Error() string {
	return "chunk planning failed: " + e.Reason
}

// AutoDocumentThreshold is the document count above which the auto
// strategy switches from token to document chunking.
const AutoDocumentThreshold = 10

// DefaultOverlapLines is the number of trailing lines carried from one
// token chunk into the next for context continuity.
const DefaultOverlapLines = 10
