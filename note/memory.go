package note

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store for tests and small corpora loaded
// from disk.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

// Put adds or replaces a document.
func (s *MemoryStore) Put(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
}

// SearchByTag returns documents whose body contains "#tag".
func (s *MemoryStore) SearchByTag(_ context.Context, tag string) ([]Document, error) {
	return s.search(func(d Document) bool {
		return containsFold(d.Body, "#"+tag)
	}), nil
}

// SearchByKeyword returns documents whose title or body contains the
// keyword, case-insensitively.
func (s *MemoryStore) SearchByKeyword(_ context.Context, keyword string) ([]Document, error) {
	return s.search(func(d Document) bool {
		return containsFold(d.Title, keyword) || containsFold(d.Body, keyword)
	}), nil
}

// SearchByTagAndKeyword combines the tag and keyword filters.
func (s *MemoryStore) SearchByTagAndKeyword(_ context.Context, tag, keyword string) ([]Document, error) {
	return s.search(func(d Document) bool {
		return containsFold(d.Body, "#"+tag) &&
			(containsFold(d.Title, keyword) || containsFold(d.Body, keyword))
	}), nil
}

// GetByID returns the document with the given ID.
func (s *MemoryStore) GetByID(_ context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (s *MemoryStore) search(match func(Document) bool) []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Document
	for _, doc := range s.docs {
		if match(doc) {
			results = append(results, doc)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].ModifiedAt.After(results[j].ModifiedAt)
	})
	return results
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
