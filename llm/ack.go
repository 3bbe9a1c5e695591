package llm

import "strings"

// AckPredicate reports whether a response text is an acknowledgment of
// the prompt rather than an answer to it. Some conversational services
// reply "I'll analyze the documents..." before producing content; when
// the predicate fires the dispatcher logs a warning so the caller can
// decide whether to re-prompt.
type AckPredicate func(response string) bool

// ackPhrases are opening phrases observed from conversational
// interfaces. The list is service-specific wording and is not
// exhaustive; callers with different services should inject their own
// predicate.
var ackPhrases = []string{
	"i'll analyze",
	"i will analyze",
	"i'm ready to",
	"please provide the document",
	"please share the document",
	"once you provide",
}

// DefaultAckPredicate matches short responses that open with a known
// acknowledgment phrase.
func DefaultAckPredicate(response string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(response))
	if len(trimmed) > 400 {
		// Long responses carry content even when they open politely.
		return false
	}
	for _, phrase := range ackPhrases {
		if strings.HasPrefix(trimmed, phrase) {
			return true
		}
	}
	return false
}
