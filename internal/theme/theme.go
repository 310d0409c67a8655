// Package theme serves the preview stylesheet and reports edits to it.
package theme

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

//go:embed default.css
var defaultCSS string

// Stylesheet is the preview stylesheet: a user file when configured,
// otherwise the built-in one.
type Stylesheet struct {
	path string
}

// New creates a Stylesheet. An empty path selects the built-in stylesheet.
func New(path string) *Stylesheet {
	return &Stylesheet{path: path}
}

// CSS returns the current stylesheet text.
func (s *Stylesheet) CSS() (string, error) {
	if s.path == "" {
		return defaultCSS, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("theme: read %s: %w", s.path, err)
	}
	return string(data), nil
}

// ServeHTTP serves the stylesheet (GET /preview.css). A missing user file
// falls back to the built-in stylesheet.
func (s *Stylesheet) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	css, err := s.CSS()
	if err != nil {
		slog.Warn("preview stylesheet unavailable", slog.String("error", err.Error()))
		css = defaultCSS
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(css))
}

const debounce = 100 * time.Millisecond

// Watch reports changes to the user stylesheet until ctx is cancelled.
// It watches the parent directory so that editors which replace the file
// by rename are still observed. With no user stylesheet it returns at once.
func (s *Stylesheet) Watch(ctx context.Context, logger *slog.Logger, onChange func()) error {
	if s.path == "" {
		return nil
	}
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("theme: resolve path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("theme: watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("theme: watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("theme: watching stylesheet", slog.String("path", abs))

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("theme: watcher stopped")
			return nil

		case <-fire:
			fire = nil
			logger.Debug("theme: stylesheet changed", slog.String("path", abs))
			onChange()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("theme: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
