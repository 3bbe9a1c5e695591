// Package prompt holds the prompt wording and section separators used
// across the chunking and synthesis pipeline. Keeping the text in one
// place makes the fan-out/fan-in structure auditable: every separator
// written here is what a later synthesis pass splits on.
package prompt

import (
	"fmt"

	"github.com/docsift/docsift/note"
)

// Section separators. These appear verbatim in prompts between
// documents and between partial results.
const (
	NoteSeparator            = "\n\n===== NOTE SEPARATOR =====\n\n"
	DocumentSummarySeparator = "\n\n===== DOCUMENT SUMMARY SEPARATOR =====\n\n"
	ChunkSummarySeparator    = "\n\n===== CHUNK SUMMARY SEPARATOR =====\n\n"
	GroupSummarySeparator    = "\n\n===== GROUP SUMMARY SEPARATOR =====\n\n"
	GroupSeparator           = "\n\n===== GROUP SEPARATOR =====\n\n"
	NoteSummarySeparator     = "\n\n===== NOTE SUMMARY SEPARATOR =====\n\n"
	BatchSeparator           = "\n\n=== BATCH SEPARATOR ===\n\n"
	BatchHeader              = "=== COMBINED RESULTS FROM ALL BATCHES ===\n\n"
)

// TruncationMarker is appended when content is cut to fit a budget.
const TruncationMarker = "\n\n[NOTE: Content has been truncated due to token limits]"

// FormatDocument renders a document for inclusion in a prompt.
func FormatDocument(d note.Document) string {
	return fmt.Sprintf("NOTE: %s\n\n%s", d.Title, d.Body)
}

// CombineDocuments joins rendered documents with the note separator.
func CombineDocuments(docs []note.Document) string {
	out := ""
	for i, d := range docs {
		if i > 0 {
			out += NoteSeparator
		}
		out += FormatDocument(d)
	}
	return out
}

// DirectQuestion is the question prompt for a single whole pass.
func DirectQuestion(question string) string {
	return "Read the following documents and answer: " + question
}

// ChunkExtractionPrefix is the fixed prefix that precedes each token
// chunk; its token cost is subtracted from the per-chunk budget.
func ChunkExtractionPrefix(question string) string {
	return fmt.Sprintf("Read this document chunk and extract key information relevant to the question: %s\n\nDocument chunk:\n\n", question)
}

// ChunkExtractionQuestion asks for relevant extraction from one token
// chunk rather than a direct answer.
func ChunkExtractionQuestion(question string) string {
	return "Extract key information from this document chunk that's relevant to the question: " + question
}

// DocumentExtractionQuestion asks for relevant extraction from one
// whole document.
func DocumentExtractionQuestion(question string) string {
	return "Extract key information from this document that's relevant to the following question: " + question
}

// GroupExtractionQuestion asks for relevant extraction from a group of
// documents.
func GroupExtractionQuestion(question string) string {
	return "Extract key information from these documents that's relevant to the question: " + question
}

// SynthesisQuestion asks the model to answer the original question from
// labeled partial summaries. kind names what the partials are, e.g.
// "document summaries" or "chunk summaries".
func SynthesisQuestion(kind, question string) string {
	return fmt.Sprintf("Based on these %s, answer the original question: %s", kind, question)
}

// ChunkPositionPrefix tags a token chunk with its position so the model
// knows whether it sees the start, middle, or end of the document.
// index is zero-based.
func ChunkPositionPrefix(index, total int) string {
	switch {
	case total <= 1:
		return ""
	case index == 0:
		return "BEGINNING OF DOCUMENT: "
	case index == total-1:
		return "END OF DOCUMENT: "
	default:
		return fmt.Sprintf("DOCUMENT CHUNK %d: ", index+1)
	}
}
