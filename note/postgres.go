package note

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // postgres driver
)

// notesSchema creates the notes table if absent.
const notesSchema = `
CREATE TABLE IF NOT EXISTS notes (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	body        TEXT NOT NULL DEFAULT '',
	modified_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore is a Store backed by a Postgres notes table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to Postgres and ensures the notes table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, notesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure notes schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the database connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// SearchByTag returns documents whose body contains "#tag".
func (s *PostgresStore) SearchByTag(ctx context.Context, tag string) ([]Document, error) {
	const q = `
	SELECT id, title, body, modified_at FROM notes
	WHERE body ILIKE '%' || $1 || '%'
	ORDER BY modified_at DESC`
	return s.query(ctx, q, "#"+tag)
}

// SearchByKeyword returns documents whose title or body contains the
// keyword.
func (s *PostgresStore) SearchByKeyword(ctx context.Context, keyword string) ([]Document, error) {
	const q = `
	SELECT id, title, body, modified_at FROM notes
	WHERE body ILIKE '%' || $1 || '%' OR title ILIKE '%' || $1 || '%'
	ORDER BY modified_at DESC`
	return s.query(ctx, q, keyword)
}

// SearchByTagAndKeyword combines the tag and keyword filters.
func (s *PostgresStore) SearchByTagAndKeyword(ctx context.Context, tag, keyword string) ([]Document, error) {
	const q = `
	SELECT id, title, body, modified_at FROM notes
	WHERE body ILIKE '%' || $1 || '%'
	  AND (body ILIKE '%' || $2 || '%' OR title ILIKE '%' || $2 || '%')
	ORDER BY modified_at DESC`
	return s.query(ctx, q, "#"+tag, keyword)
}

// GetByID returns the document with the given ID.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (Document, error) {
	const q = `SELECT id, title, body, modified_at FROM notes WHERE id = $1`

	var doc Document
	err := s.db.QueryRowContext(ctx, q, id).Scan(&doc.ID, &doc.Title, &doc.Body, &doc.ModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get note %s: %w", id, err)
	}
	return doc, nil
}

// Put inserts or updates a document. Used by ingestion tooling and
// tests; the engine itself never writes.
func (s *PostgresStore) Put(ctx context.Context, doc Document) error {
	const q = `
	INSERT INTO notes (id, title, body, modified_at) VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET title = $2, body = $3, modified_at = $4`

	if _, err := s.db.ExecContext(ctx, q, doc.ID, doc.Title, doc.Body, doc.ModifiedAt); err != nil {
		return fmt.Errorf("put note %s: %w", doc.ID, err)
	}
	return nil
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Body, &doc.ModifiedAt); err != nil {
			return nil, fmt.Errorf("scan note row: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
