// Package store keeps a local SQLite log of matching requests: what was
// asked, which pattern ran, how many candidates came back, how long it took,
// and how it failed. Result records themselves are never stored.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Kind identifies the operation that produced an entry.
type Kind string

const (
	// KindSearch is a single-pattern retrieval.
	KindSearch Kind = "search"
	// KindCompare is a three-pattern comparison.
	KindCompare Kind = "compare"
)

// Entry is one logged request.
type Entry struct {
	ID          string        `json:"id"`
	Kind        Kind          `json:"kind"`
	Pattern     string        `json:"pattern,omitempty"`
	Category    string        `json:"category"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Institution string        `json:"university"`
	TopK        int           `json:"top_k"`
	Hits        int           `json:"hits"`
	Duration    time.Duration `json:"duration"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// HistoryStore persists and lists request entries. Implementations must be
// safe for concurrent use.
type HistoryStore interface {
	// Record persists e and returns its id. A missing ID or CreatedAt is filled in.
	Record(ctx context.Context, e Entry) (string, error)
	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns ~/.labmatch/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".labmatch")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at path and runs the schema
// migration. Use ":memory:" in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection: a single writer avoids SQLITE_BUSY and keeps an
	// in-memory database alive across calls.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS search_history (
    id           TEXT    PRIMARY KEY,
    kind         TEXT    NOT NULL CHECK(kind IN ('search','compare')),
    pattern      TEXT    NOT NULL DEFAULT '',
    category     TEXT    NOT NULL,
    title        TEXT    NOT NULL,
    description  TEXT    NOT NULL,
    institution  TEXT    NOT NULL,
    top_k        INTEGER NOT NULL,
    hits         INTEGER NOT NULL,
    duration_ms  INTEGER NOT NULL,
    error_kind   TEXT    NOT NULL DEFAULT '',
    error        TEXT    NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL  -- Unix milliseconds
);
CREATE INDEX IF NOT EXISTS idx_search_history_created
    ON search_history (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record persists a single entry.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO search_history
    (id, kind, pattern, category, title, description, institution, top_k, hits, duration_ms, error_kind, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		e.ID, string(e.Kind), e.Pattern, e.Category, e.Title, e.Description, e.Institution,
		e.TopK, e.Hits, e.Duration.Milliseconds(), e.ErrorKind, e.Error, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("store: record: %w", err)
	}
	return e.ID, nil
}

// Recent returns up to n entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	const q = `
SELECT id, kind, pattern, category, title, description, institution, top_k, hits, duration_ms, error_kind, error, created_at
FROM   search_history
ORDER  BY created_at DESC, rowid DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		var durMS, ts int64
		if err := rows.Scan(&e.ID, &kind, &e.Pattern, &e.Category, &e.Title, &e.Description,
			&e.Institution, &e.TopK, &e.Hits, &durMS, &e.ErrorKind, &e.Error, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		e.Kind = Kind(kind)
		e.Duration = time.Duration(durMS) * time.Millisecond
		e.CreatedAt = time.UnixMilli(ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return entries, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
