// Package budget derives usable token budgets from model context
// windows. The budget reserves a tier-dependent share of the window for
// the model's response plus a safety buffer, and floors the remaining
// input allowance so a plan always exists.
package budget

// MinInputTokens is the floor for usable input budget. Budgets are
// clamped so MaxInputTokens never drops below this.
const MinInputTokens = 1000

// minResponseReserve is the floor for the response reservation.
const minResponseReserve = 500

// Budget describes how a model's context window is divided between
// input content and the reserved response.
type Budget struct {
	// ContextWindow is the model's total context size in tokens.
	ContextWindow int

	// ResponseReserve is the token count held back for the response.
	ResponseReserve int

	// MaxInputTokens is the usable input allowance:
	// ContextWindow - ResponseReserve - buffer, clamped to MinInputTokens.
	MaxInputTokens int
}

// Compute derives a Budget from a context window size. Small windows
// reserve a larger fraction for the response; the buffer absorbs
// counting error between the local counter and the model's tokenizer.
func Compute(contextWindow int) Budget {
	var reserve, buffer int

	switch {
	case contextWindow <= 4000:
		reserve = max(500, contextWindow*25/100)
		buffer = 200
	case contextWindow <= 8000:
		reserve = max(800, contextWindow*20/100)
		buffer = 400
	case contextWindow <= 32000:
		reserve = max(1500, contextWindow*15/100)
		buffer = 800
	default:
		reserve = max(2000, contextWindow*10/100)
		buffer = 1000
	}

	reserve = max(minResponseReserve, reserve)

	return Budget{
		ContextWindow:   contextWindow,
		ResponseReserve: reserve,
		MaxInputTokens:  max(MinInputTokens, contextWindow-reserve-buffer),
	}
}
