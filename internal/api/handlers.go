package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/starford/ansuz/internal/editor"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/sse"
)

// RecentLister lists recent documents.
type RecentLister interface {
	List(ctx context.Context) ([]models.RecentDocument, error)
}

// Handler holds bridge route handlers.
type Handler struct {
	ctrl     *editor.Controller
	renderer render.Renderer
	broker   *sse.Broker
	tasks    *Tasks
	windows  *Windows
	recents  RecentLister
	quit     func()
	logger   *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRecentLister exposes the recent documents list.
func WithRecentLister(r RecentLister) HandlerOption {
	return func(h *Handler) { h.recents = r }
}

// WithWindows sets the registry of issued window ids. It must be the one
// the page handler issues ids from.
func WithWindows(ws *Windows) HandlerOption {
	return func(h *Handler) { h.windows = ws }
}

// WithQuit sets the function called by POST /quit.
func WithQuit(fn func()) HandlerOption {
	return func(h *Handler) { h.quit = fn }
}

// WithHandlerLogger sets the logger.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates a new Handler.
func NewHandler(ctrl *editor.Controller, renderer render.Renderer, broker *sse.Broker, tasks *Tasks, opts ...HandlerOption) *Handler {
	h := &Handler{
		ctrl:     ctrl,
		renderer: renderer,
		broker:   broker,
		tasks:    tasks,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.windows == nil {
		h.windows = NewWindows()
	}
	return h
}

// dispatch runs a controller operation in the background. Failures are
// logged and pushed to the window as a notification.
func (h *Handler) dispatch(win *streamWindow, operation string, fn func(ctx context.Context) error) {
	h.tasks.Go(func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			h.logger.Error("bridge: operation failed",
				slog.String("operation", operation),
				slog.String("window", win.id),
				slog.String("error", err.Error()))
			win.Notify(operation, err)
		}
	})
}

// Windows returns the registry of window ids the bridge accepts.
func (h *Handler) Windows() *Windows {
	return h.windows
}

// Events handles GET /api/windows/{windowID}/events.
//
//	@Summary		Stream pushed events for a window
//	@Tags			windows
//	@Produce		text/event-stream
//	@Param			windowID	path	string	true	"Window UUID"
//	@Router			/windows/{windowID}/events [get]
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	h.broker.Serve(w, r, windowFrom(r).id)
}

// OpenDialog handles POST /api/windows/{windowID}/open-dialog.
//
//	@Summary		Show the open picker; a file-opened event follows on success
//	@Tags			windows
//	@Param			windowID	path	string	true	"Window UUID"
//	@Success		202
//	@Router			/windows/{windowID}/open-dialog [post]
func (h *Handler) OpenDialog(w http.ResponseWriter, r *http.Request) {
	win := windowFrom(r)
	h.dispatch(win, "open", func(ctx context.Context) error {
		return h.ctrl.RequestOpen(ctx, win)
	})
	w.WriteHeader(http.StatusAccepted)
}

// OpenRecent handles POST /api/windows/{windowID}/open-recent.
//
//	@Summary		Open a document from the recent list
//	@Tags			windows
//	@Accept			json
//	@Param			windowID	path	string				true	"Window UUID"
//	@Param			body		body	OpenRecentRequest	true	"Recent document"
//	@Success		202
//	@Failure		400	{object}	errResponse
//	@Router			/windows/{windowID}/open-recent [post]
func (h *Handler) OpenRecent(w http.ResponseWriter, r *http.Request) {
	var req OpenRecentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	path, err := requireString(req.Path, "path")
	if err != nil || path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	win := windowFrom(r)
	h.dispatch(win, "open-recent", func(ctx context.Context) error {
		return h.ctrl.RequestOpenRecent(ctx, win, path)
	})
	w.WriteHeader(http.StatusAccepted)
}

// SaveFile handles POST /api/windows/{windowID}/save-file.
//
//	@Summary		Save the editor content to the tracked file
//	@Tags			windows
//	@Accept			json
//	@Param			windowID	path	string			true	"Window UUID"
//	@Param			body		body	ContentRequest	true	"Editor content"
//	@Success		202
//	@Failure		400	{object}	errResponse
//	@Router			/windows/{windowID}/save-file [post]
func (h *Handler) SaveFile(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	content, err := requireString(req.Content, "content")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	win := windowFrom(r)
	h.dispatch(win, "save", func(ctx context.Context) error {
		return h.ctrl.RequestSave(ctx, win, content)
	})
	w.WriteHeader(http.StatusAccepted)
}

// ExportHTMLDialog handles POST /api/windows/{windowID}/export-html-dialog.
//
//	@Summary		Ask for a destination and write the preview HTML
//	@Tags			windows
//	@Accept			json
//	@Param			windowID	path	string		true	"Window UUID"
//	@Param			body		body	HTMLRequest	true	"Preview HTML"
//	@Success		202
//	@Failure		400	{object}	errResponse
//	@Router			/windows/{windowID}/export-html-dialog [post]
func (h *Handler) ExportHTMLDialog(w http.ResponseWriter, r *http.Request) {
	var req HTMLRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	html, err := requireString(req.HTML, "html")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	win := windowFrom(r)
	h.dispatch(win, "export-html", func(ctx context.Context) error {
		return h.ctrl.RequestExportHTML(ctx, html)
	})
	w.WriteHeader(http.StatusAccepted)
}

// CheckUnsavedChanges handles POST /api/windows/{windowID}/check-unsaved-changes.
//
//	@Summary		Report whether content differs from disk
//	@Tags			windows
//	@Accept			json
//	@Produce		json
//	@Param			windowID	path		string			true	"Window UUID"
//	@Param			body		body		ContentRequest	true	"Editor content"
//	@Success		200			{object}	UnsavedChangesResponse
//	@Failure		400			{object}	errResponse
//	@Router			/windows/{windowID}/check-unsaved-changes [post]
func (h *Handler) CheckUnsavedChanges(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	content, err := requireString(req.Content, "content")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	changed := h.ctrl.HasUnsavedChanges(windowFrom(r), content)
	writeJSON(w, http.StatusOK, UnsavedChangesResponse{Changed: changed})
}

// ShowInFolder handles POST /api/windows/{windowID}/show-in-folder.
//
//	@Summary		Reveal the tracked file in the file manager
//	@Tags			windows
//	@Param			windowID	path	string	true	"Window UUID"
//	@Success		202
//	@Router			/windows/{windowID}/show-in-folder [post]
func (h *Handler) ShowInFolder(w http.ResponseWriter, r *http.Request) {
	h.dispatch(windowFrom(r), "show-in-folder", h.ctrl.RevealInFileManager)
	w.WriteHeader(http.StatusAccepted)
}

// OpenInDefaultApp handles POST /api/windows/{windowID}/open-in-default-app.
//
//	@Summary		Open the tracked file with its default application
//	@Tags			windows
//	@Param			windowID	path	string	true	"Window UUID"
//	@Success		202
//	@Router			/windows/{windowID}/open-in-default-app [post]
func (h *Handler) OpenInDefaultApp(w http.ResponseWriter, r *http.Request) {
	h.dispatch(windowFrom(r), "open-in-default-app", h.ctrl.OpenInDefaultApp)
	w.WriteHeader(http.StatusAccepted)
}

// Render handles POST /api/render.
//
//	@Summary		Render Markdown into the preview fragment
//	@Tags			preview
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenderRequest	true	"Markdown"
//	@Success		200		{object}	RenderResponse
//	@Failure		400		{object}	errResponse
//	@Router			/render [post]
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	markdown, err := requireString(req.Markdown, "markdown")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	html, err := h.renderer.Render(markdown)
	if err != nil {
		h.logger.Error("render failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, RenderResponse{HTML: html})
}

// ListRecent handles GET /api/recent.
//
//	@Summary		List recent documents
//	@Tags			recent
//	@Produce		json
//	@Success		200	{object}	RecentResponse
//	@Router			/recent [get]
func (h *Handler) ListRecent(w http.ResponseWriter, r *http.Request) {
	docs := []models.RecentDocument{}
	if h.recents != nil {
		list, err := h.recents.List(r.Context())
		if err != nil {
			h.logger.Error("list recent failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		docs = list
	}
	writeJSON(w, http.StatusOK, RecentResponse{Documents: docs})
}

// State handles GET /api/state.
//
//	@Summary		Describe the open file
//	@Tags			state
//	@Produce		json
//	@Success		200	{object}	StateResponse
//	@Router			/state [get]
func (h *Handler) State(w http.ResponseWriter, _ *http.Request) {
	snap := h.ctrl.Snapshot()
	resp := StateResponse{
		Path:     snap.Path,
		Saved:    snap.Saved(),
		Checksum: snap.Checksum,
	}
	if !snap.SyncedAt.IsZero() {
		at := snap.SyncedAt
		resp.SyncedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

// Quit handles POST /api/quit.
//
//	@Summary		Shut the application down
//	@Tags			app
//	@Success		202
//	@Router			/quit [post]
func (h *Handler) Quit(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusAccepted)
	if h.quit != nil {
		h.logger.Info("bridge: quit requested")
		h.quit()
	}
}

// StylesheetChanged tells every window to reload the preview stylesheet.
func (h *Handler) StylesheetChanged() {
	h.broker.Publish(sse.Event{Type: EventStylesheetChanged, Data: map[string]string{}})
}
