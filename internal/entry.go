// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/dialog"
	"github.com/starford/ansuz/internal/editor"
	"github.com/starford/ansuz/internal/recent"
	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/shell"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/theme"
	"github.com/starford/ansuz/internal/web"
)

const shutdownTimeout = 10 * time.Second

// NewLogger builds the structured JSON logger used across the application.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	if app.dialogs == nil {
		app.dialogs = dialog.NewNative()
	}
	if app.shell == nil {
		app.shell = shell.NewSystem()
	}
	openBrowser := cfg.App.OpenBrowser
	if app.openBrowser != nil {
		openBrowser = *app.openBrowser
	}

	// Initialize structured JSON logger.
	logger := NewLogger(cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("documents_dir", cfg.Documents.Dir),
		slog.String("recent_path", cfg.Recent.Path),
		slog.String("preview_stylesheet", cfg.Preview.Stylesheet),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize recent documents store.
	if err := os.MkdirAll(filepath.Dir(cfg.Recent.Path), 0o755); err != nil {
		return fmt.Errorf("create recent dir: %w", err)
	}
	recents, err := recent.Open(cfg.Recent.Path, cfg.Recent.Limit)
	if err != nil {
		return fmt.Errorf("init recent store: %w", err)
	}
	defer recents.Close()

	// Controller owning the open-file state.
	ctrl := editor.New(editor.NewState(), app.dialogs, storage.NewFS(),
		editor.WithShell(app.shell),
		editor.WithRecents(recents),
		editor.WithLogger(logger),
		editor.WithAppName(cfg.App.Name),
		editor.WithDocumentsDir(cfg.Documents.Dir),
	)

	runCtx, quit := context.WithCancel(ctx)
	defer quit()

	// SSE broker and background bridge operations.
	broker := sse.NewBroker(15 * time.Second)
	tasks := api.NewTasks(runCtx)
	windows := api.NewWindows()
	allowedHosts := cfg.App.HTTP.AllowedHosts()

	handler := api.NewHandler(ctrl, render.NewGoldmark(), broker, tasks,
		api.WithWindows(windows),
		api.WithRecentLister(recents),
		api.WithQuit(quit),
		api.WithHandlerLogger(logger),
	)
	apiRouter := api.NewRouter(handler, cfg.Auth.AuthEnabled(), cfg.Auth.Token, allowedHosts...)

	stylesheet := theme.New(cfg.Preview.Stylesheet)
	pageOpts := []web.Option{web.WithLogger(logger)}
	if cfg.Auth.AuthEnabled() {
		pageOpts = append(pageOpts, web.WithAuth(cfg.Auth.Token))
	}
	pages := web.New(cfg.App.Name, stylesheet, windows, pageOpts...)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.HostGuard(allowedHosts...))

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := recents.List(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Editor page.
	pages.Mount(r)

	listener, err := net.Listen("tcp", cfg.App.HTTP.Address())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.App.HTTP.Address(), err)
	}

	httpServer := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", listener.Addr().String()))

	g, gCtx := errgroup.WithContext(runCtx)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", listener.Addr().String()))
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Reload the preview stylesheet in every window when it changes.
	g.Go(func() error {
		if err := stylesheet.Watch(gCtx, logger, handler.StylesheetChanged); err != nil {
			logger.Warn("stylesheet watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	if openBrowser {
		target := pageURL(cfg)
		g.Go(func() error {
			if err := app.shell.OpenURL(gCtx, target); err != nil {
				logger.Warn("open browser failed",
					slog.String("url", cfg.App.HTTP.URL()),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Handle shutdown signals and quit requests.
	g.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)

		select {
		case sig := <-sigs:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		quit()

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Closing the broker ends open event streams so Shutdown can drain.
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		if err := tasks.WaitContext(shutdownCtx); err != nil {
			logger.Warn("background operations still running", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// pageURL is the editor page address, carrying the token when auth is on.
func pageURL(cfg *Config) string {
	u := cfg.App.HTTP.URL()
	if cfg.Auth.AuthEnabled() {
		u += "?token=" + url.QueryEscape(cfg.Auth.Token)
	}
	return u
}
