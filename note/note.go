// Package note defines the document model and the store collaborator
// the engine reads from. Stores return documents ordered by
// modification time descending with case-insensitive substring match
// semantics; tag filters match "#tag" occurrences in the body.
package note

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a document ID does not exist.
var ErrNotFound = errors.New("note not found")

// Document is a single note. Documents are immutable once loaded; the
// engine never mutates them.
type Document struct {
	ID         string
	Title      string
	Body       string
	ModifiedAt time.Time
}

// Store locates documents. Search results are ordered by ModifiedAt
// descending.
type Store interface {
	// SearchByTag returns documents whose body contains "#tag".
	SearchByTag(ctx context.Context, tag string) ([]Document, error)

	// SearchByKeyword returns documents whose title or body contains
	// the keyword, case-insensitively.
	SearchByKeyword(ctx context.Context, keyword string) ([]Document, error)

	// SearchByTagAndKeyword combines both filters.
	SearchByTagAndKeyword(ctx context.Context, tag, keyword string) ([]Document, error)

	// GetByID returns the document with the given ID, or ErrNotFound.
	GetByID(ctx context.Context, id string) (Document, error)
}
