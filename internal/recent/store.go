// Package recent persists the recent documents list in SQLite.
package recent

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/models"
)

// DefaultLimit is the number of entries kept when no limit is given.
const DefaultLimit = 10

const schemaSQL = `
CREATE TABLE IF NOT EXISTS recent_documents (
	path      TEXT PRIMARY KEY,
	opened_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_recent_opened_at ON recent_documents(opened_at);
`

// Store wraps a sql.DB holding the recent documents table.
type Store struct {
	conn  *sql.DB
	limit int
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, limit int) (*Store, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("recent: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("recent: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("recent: apply schema: %w", err)
	}
	return &Store{conn: conn, limit: limit}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Add records path as opened at the given time and trims the list to the limit.
func (s *Store) Add(ctx context.Context, path string, at time.Time) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recent: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recent_documents (path, opened_at)
		VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET opened_at = excluded.opened_at
	`, path, at.UTC())
	if err != nil {
		return fmt.Errorf("recent: upsert: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM recent_documents
		WHERE path NOT IN (
			SELECT path FROM recent_documents ORDER BY opened_at DESC, path LIMIT ?
		)
	`, s.limit)
	if err != nil {
		return fmt.Errorf("recent: trim: %w", err)
	}
	return tx.Commit()
}

// List returns the recent documents, most recently opened first.
func (s *Store) List(ctx context.Context) ([]models.RecentDocument, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT path, opened_at FROM recent_documents
		ORDER BY opened_at DESC, path
		LIMIT ?
	`, s.limit)
	if err != nil {
		return nil, fmt.Errorf("recent: list: %w", err)
	}
	defer rows.Close()

	out := []models.RecentDocument{}
	for rows.Next() {
		var d models.RecentDocument
		if err := rows.Scan(&d.Path, &d.OpenedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Contains reports whether path is in the recent list.
func (s *Store) Contains(ctx context.Context, path string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(1) FROM recent_documents WHERE path = ?`, path).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("recent: contains: %w", err)
	}
	return n > 0, nil
}

// Remove deletes path from the recent list.
func (s *Store) Remove(ctx context.Context, path string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM recent_documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("recent: remove: %w", err)
	}
	return nil
}
