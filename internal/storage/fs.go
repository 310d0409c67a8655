package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const defaultPerm fs.FileMode = 0o644

// FS implements Files backed by the local file system.
type FS struct{}

// NewFS creates a new FS provider.
func NewFS() *FS {
	return &FS{}
}

// absPath rejects relative paths; every path reaching storage comes from a
// native dialog or the recent list and must already be absolute.
func absPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("storage: empty path")
	}
	cleaned := filepath.Clean(path)
	if !filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: path is not absolute: %s", path)
	}
	return cleaned, nil
}

// Read returns the full content of a file.
func (f *FS) Read(path string) (string, error) {
	abs, err := absPath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("storage: read %s: %w", path, err)
	}
	return string(data), nil
}

// Write atomically writes content: tmp file → fsync → rename.
// An existing file keeps its permission bits.
func (f *FS) Write(path string, content string) error {
	abs, err := absPath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	perm := defaultPerm
	if info, statErr := os.Stat(abs); statErr == nil {
		if info.IsDir() {
			return fmt.Errorf("storage: write %s: is a directory", path)
		}
		perm = info.Mode().Perm()
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return fmt.Errorf("storage: stat %s: %w", path, statErr)
	}

	tmp, err := os.CreateTemp(dir, ".ansuz-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.WriteString(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
