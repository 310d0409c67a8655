package internal

import (
	"github.com/starford/ansuz/internal/dialog"
	"github.com/starford/ansuz/internal/shell"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config      *Config
	dialogs     dialog.Dialogs
	shell       shell.Shell
	openBrowser *bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithDialogs replaces the native file pickers.
func WithDialogs(d dialog.Dialogs) Option {
	return func(a *application) {
		a.dialogs = d
	}
}

// WithShell replaces the OS shell integration.
func WithShell(s shell.Shell) Option {
	return func(a *application) {
		a.shell = s
	}
}

// WithOpenBrowser overrides app.open_browser from the configuration.
func WithOpenBrowser(open bool) Option {
	return func(a *application) {
		a.openBrowser = &open
	}
}
