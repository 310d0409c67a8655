// Package editor implements the controller: the only component that touches
// the open-file state, native dialogs, and the disk.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/dialog"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/shell"
	"github.com/starford/ansuz/internal/storage"
)

// DefaultAppName is used in window titles when no name is configured.
const DefaultAppName = "Ansuz"

// Recents records documents that reached a sync point.
type Recents interface {
	Add(ctx context.Context, path string, at time.Time) error
	Contains(ctx context.Context, path string) (bool, error)
	Remove(ctx context.Context, path string) error
}

// Controller mediates every file and dialog operation requested by a window.
//
// Dialogs and disk I/O run without holding any lock; the state is updated
// only once a read or write has succeeded. Concurrent requests from several
// windows therefore resolve as last write wins.
type Controller struct {
	state   *State
	dialogs dialog.Dialogs
	files   storage.Files
	shell   shell.Shell
	recents Recents
	logger  *slog.Logger
	appName string
	docsDir string
	now     func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithShell sets the desktop shell used for reveal/open actions.
func WithShell(s shell.Shell) Option {
	return func(c *Controller) { c.shell = s }
}

// WithRecents enables the recent documents list.
func WithRecents(r Recents) Option {
	return func(c *Controller) { c.recents = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithAppName sets the name shown in window titles.
func WithAppName(name string) Option {
	return func(c *Controller) { c.appName = name }
}

// WithDocumentsDir sets the starting directory of save pickers.
func WithDocumentsDir(dir string) Option {
	return func(c *Controller) { c.docsDir = dir }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller over state. A nil state starts a fresh one.
func New(state *State, dialogs dialog.Dialogs, files storage.Files, opts ...Option) *Controller {
	if state == nil {
		state = NewState()
	}
	c := &Controller{
		state:   state,
		dialogs: dialogs,
		files:   files,
		shell:   shell.NewSystem(),
		logger:  slog.Default(),
		appName: DefaultAppName,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AppName returns the configured application name.
func (c *Controller) AppName() string {
	return c.appName
}

// Snapshot returns the current open-file state.
func (c *Controller) Snapshot() models.OpenFile {
	return c.state.Snapshot()
}

// RequestOpen asks the user for a Markdown file and opens it in win.
// Cancelling the picker is not an error.
func (c *Controller) RequestOpen(ctx context.Context, win Window) error {
	path, err := c.dialogs.OpenFile(dialog.Options{
		Title:  "Open Markdown",
		Filter: dialog.Markdown,
	})
	if errors.Is(err, dialog.ErrCancelled) {
		c.logger.Debug("editor: open cancelled")
		return nil
	}
	if err != nil {
		return fmt.Errorf("editor: open dialog: %w", err)
	}
	return c.openFile(ctx, win, path)
}

// RequestOpenRecent opens path without a picker. The path must be in the
// recent documents list; a path that no longer exists is dropped from it.
func (c *Controller) RequestOpenRecent(ctx context.Context, win Window, path string) error {
	if c.recents == nil {
		return apperr.ErrNotRecent
	}
	ok, err := c.recents.Contains(ctx, path)
	if err != nil {
		return fmt.Errorf("editor: recent lookup: %w", err)
	}
	if !ok {
		return apperr.ErrNotRecent
	}

	err = c.openFile(ctx, win, path)
	if errors.Is(err, fs.ErrNotExist) {
		if rmErr := c.recents.Remove(ctx, path); rmErr != nil {
			c.logger.Warn("editor: drop stale recent document",
				slog.String("path", path),
				slog.String("error", rmErr.Error()))
		}
	}
	return err
}

func (c *Controller) openFile(ctx context.Context, win Window, path string) error {
	content, err := c.files.Read(path)
	if err != nil {
		return fmt.Errorf("editor: open %s: %w", path, err)
	}

	c.setCurrentFile(ctx, win, path, content)
	win.SetDocumentEdited(false)
	win.FileOpened(content, path)

	c.logger.Info("editor: file opened",
		slog.String("path", path),
		slog.Int("bytes", len(content)))
	return nil
}

// RequestSave writes content to the tracked file, asking for a destination
// first when the document has never been saved.
func (c *Controller) RequestSave(ctx context.Context, win Window, content string) error {
	path := c.state.Path()
	if path == "" {
		chosen, err := c.dialogs.SaveFile(dialog.Options{
			Title:    "Save Markdown",
			StartDir: c.docsDir,
			Filter:   dialog.Markdown,
		})
		if errors.Is(err, dialog.ErrCancelled) {
			c.logger.Debug("editor: save cancelled")
			return nil
		}
		if err != nil {
			return fmt.Errorf("editor: save dialog: %w", err)
		}
		path = chosen
	}

	if err := c.files.Write(path, content); err != nil {
		return fmt.Errorf("editor: save %s: %w", path, err)
	}

	c.setCurrentFile(ctx, win, path, content)
	win.SetDocumentEdited(false)

	c.logger.Info("editor: file saved",
		slog.String("path", path),
		slog.Int("bytes", len(content)))
	return nil
}

// RequestExportHTML asks for a destination and writes html there verbatim.
// The open-file state is never touched.
func (c *Controller) RequestExportHTML(_ context.Context, html string) error {
	path, err := c.dialogs.SaveFile(dialog.Options{
		Title:    "Export HTML",
		StartDir: c.docsDir,
		Filter:   dialog.HTML,
	})
	if errors.Is(err, dialog.ErrCancelled) {
		c.logger.Debug("editor: export cancelled")
		return nil
	}
	if err != nil {
		return fmt.Errorf("editor: export dialog: %w", err)
	}

	if err := c.files.Write(path, html); err != nil {
		return fmt.Errorf("editor: export %s: %w", path, err)
	}

	c.logger.Info("editor: html exported",
		slog.String("path", path),
		slog.Int("bytes", len(html)))
	return nil
}

// HasUnsavedChanges reports whether content differs from what was last
// synced with disk, and mirrors the answer in win's edited marker.
func (c *Controller) HasUnsavedChanges(win Window, content string) bool {
	changed := c.state.Changed(content)
	win.SetDocumentEdited(changed)
	return changed
}

// RevealInFileManager shows the tracked file in the file manager.
// Without a tracked file it does nothing.
func (c *Controller) RevealInFileManager(ctx context.Context) error {
	path := c.state.Path()
	if path == "" {
		return nil
	}
	if err := c.shell.ShowItemInFolder(ctx, path); err != nil {
		return fmt.Errorf("editor: show in folder: %w", err)
	}
	return nil
}

// OpenInDefaultApp opens the tracked file with the system default
// application. Without a tracked file it does nothing.
func (c *Controller) OpenInDefaultApp(ctx context.Context) error {
	path := c.state.Path()
	if path == "" {
		return nil
	}
	if err := c.shell.OpenPath(ctx, path); err != nil {
		return fmt.Errorf("editor: open in default app: %w", err)
	}
	return nil
}

// Title returns the window title for a document at path.
func (c *Controller) Title(path string) string {
	return fmt.Sprintf("%s - %s", filepath.Base(path), c.appName)
}

// setCurrentFile is the sync point shared by open and save.
func (c *Controller) setCurrentFile(ctx context.Context, win Window, path, content string) {
	now := c.now()
	c.state.Sync(path, content, now)

	win.SetTitle(c.Title(path))
	win.SetRepresentedFilename(path)

	if c.recents != nil {
		if err := c.recents.Add(ctx, path, now); err != nil {
			c.logger.Warn("editor: record recent document failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
}
