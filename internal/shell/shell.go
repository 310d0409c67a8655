// Package shell hands paths and URLs to the desktop environment.
package shell

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Shell performs advisory desktop actions. None of them affect editor state.
type Shell interface {
	ShowItemInFolder(ctx context.Context, path string) error
	OpenPath(ctx context.Context, path string) error
	OpenURL(ctx context.Context, url string) error
}

// Runner starts an external command without waiting for it to finish.
// The started process is not tied to ctx.
type Runner func(ctx context.Context, name string, args ...string) error

// System implements Shell with the platform's launcher commands.
type System struct {
	goos string
	run  Runner
}

// Option configures System.
type Option func(*System)

// WithGOOS overrides the detected operating system.
func WithGOOS(goos string) Option {
	return func(s *System) { s.goos = goos }
}

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(s *System) { s.run = r }
}

// NewSystem creates a System for the current platform.
func NewSystem(opts ...Option) *System {
	s := &System{goos: runtime.GOOS, run: start}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func start(ctx context.Context, name string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("shell: start %s: %w", name, err)
	}
	// Launched applications outlive the editor.
	cmd := exec.Command(name, args...)
	cmd.Stdout, cmd.Stderr, cmd.Stdin = nil, nil, nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("shell: start %s: %w", name, err)
	}
	// Reap the launcher in the background.
	go func() { _ = cmd.Wait() }()
	return nil
}

// ShowItemInFolder reveals path in the file manager.
func (s *System) ShowItemInFolder(ctx context.Context, path string) error {
	switch s.goos {
	case "darwin":
		return s.run(ctx, "open", "-R", path)
	case "windows":
		return s.run(ctx, "explorer", "/select,"+path)
	default:
		// xdg-open has no select-file mode; open the containing folder.
		return s.run(ctx, "xdg-open", filepath.Dir(path))
	}
}

// OpenPath opens path with its default application.
func (s *System) OpenPath(ctx context.Context, path string) error {
	return s.open(ctx, path)
}

// OpenURL opens url in the default browser.
func (s *System) OpenURL(ctx context.Context, url string) error {
	return s.open(ctx, url)
}

func (s *System) open(ctx context.Context, target string) error {
	switch s.goos {
	case "darwin":
		return s.run(ctx, "open", target)
	case "windows":
		return s.run(ctx, "cmd", "/c", "start", "", target)
	default:
		return s.run(ctx, "xdg-open", target)
	}
}
