// Package dialog wraps the native file pickers.
package dialog

import (
	"errors"
	"fmt"
	"path/filepath"

	native "github.com/sqweek/dialog"
)

// ErrCancelled is returned when the user dismisses a picker.
var ErrCancelled = errors.New("dialog: cancelled")

// Filter restricts a picker to files with the given extensions (without dots).
type Filter struct {
	Name       string
	Extensions []string
}

// Markdown and HTML are the filters used by the editor.
var (
	Markdown = Filter{Name: "Markdown Files", Extensions: []string{"md"}}
	HTML     = Filter{Name: "HTML Files", Extensions: []string{"html"}}
)

// Options configures a single picker invocation.
type Options struct {
	Title    string
	StartDir string
	Filter   Filter
}

// Dialogs shows file pickers and returns the chosen absolute path.
// Cancellation is reported as ErrCancelled.
type Dialogs interface {
	OpenFile(opts Options) (string, error)
	SaveFile(opts Options) (string, error)
}

// Native implements Dialogs with the platform's own pickers.
type Native struct{}

// NewNative creates a native dialog provider.
func NewNative() *Native {
	return &Native{}
}

func (n *Native) builder(opts Options) *native.FileBuilder {
	b := native.File().Title(opts.Title)
	if len(opts.Filter.Extensions) > 0 {
		b = b.Filter(opts.Filter.Name, opts.Filter.Extensions...)
	}
	if opts.StartDir != "" {
		b = b.SetStartDir(opts.StartDir)
	}
	return b
}

// OpenFile shows an open-file picker.
func (n *Native) OpenFile(opts Options) (string, error) {
	path, err := n.builder(opts).Load()
	return result(path, err)
}

// SaveFile shows a save-file picker.
func (n *Native) SaveFile(opts Options) (string, error) {
	path, err := n.builder(opts).Save()
	return result(path, err)
}

func result(path string, err error) (string, error) {
	if errors.Is(err, native.ErrCancelled) {
		return "", ErrCancelled
	}
	if err != nil {
		return "", fmt.Errorf("dialog: %w", err)
	}
	if path == "" {
		return "", ErrCancelled
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("dialog: resolve path: %w", err)
	}
	return abs, nil
}
