// Package testutil provides shared test helpers for documents and databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/recent"
)

// RecentStore creates a temporary recent-documents database that is
// automatically cleaned up.
func RecentStore(t *testing.T, limit int) *recent.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := recent.Open(dbFile.Name(), limit)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// DocsDir creates a temporary documents directory.
func DocsDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Documents")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

// WriteDoc writes content to name inside dir and returns the absolute path.
func WriteDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
