package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/editor"
	"github.com/starford/ansuz/internal/sse"
)

// Event types pushed on a window's stream.
const (
	EventFileOpened        = "file-opened"
	EventWindowTitle       = "window-title"
	EventRepresentedFile   = "represented-file"
	EventDocumentEdited    = "document-edited"
	EventNotification      = "notification"
	EventStylesheetChanged = "stylesheet-changed"
)

// Publisher delivers events to window streams.
type Publisher interface {
	Publish(event sse.Event)
	PublishTo(window string, event sse.Event)
}

// streamWindow implements editor.Window by pushing events to one window's
// SSE streams.
type streamWindow struct {
	id  string
	pub Publisher
}

var _ editor.Window = (*streamWindow)(nil)

func (w *streamWindow) push(kind string, data any) {
	w.pub.PublishTo(w.id, sse.Event{Type: kind, Data: data})
}

func (w *streamWindow) SetTitle(title string) {
	w.push(EventWindowTitle, WindowTitleEvent{Title: title})
}

func (w *streamWindow) SetRepresentedFilename(path string) {
	w.push(EventRepresentedFile, RepresentedFileEvent{Path: path})
}

func (w *streamWindow) SetDocumentEdited(edited bool) {
	w.push(EventDocumentEdited, DocumentEditedEvent{Edited: edited})
}

func (w *streamWindow) FileOpened(content, path string) {
	w.push(EventFileOpened, FileOpenedEvent{Content: content, Path: path})
}

func (w *streamWindow) Notify(operation string, err error) {
	w.push(EventNotification, NotificationEvent{Operation: operation, Message: err.Error()})
}

type windowKey struct{}

// ParseWindowID validates the form of a window id.
func ParseWindowID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperr.ErrInvalidWindow
	}
	return id.String(), nil
}

// Windows is the registry of window ids handed out by the page handler.
// Only registered windows can use the bridge.
type Windows struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewWindows creates an empty registry.
func NewWindows() *Windows {
	return &Windows{ids: make(map[string]struct{})}
}

// Issue mints and registers a new window id.
func (ws *Windows) Issue() string {
	id := uuid.NewString()
	ws.mu.Lock()
	ws.ids[id] = struct{}{}
	ws.mu.Unlock()
	return id
}

// Known reports whether id was issued by this registry.
func (ws *Windows) Known(id string) bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	_, ok := ws.ids[id]
	return ok
}

// windowCtx resolves {windowID} and stores the window in the request context.
func windowCtx(pub Publisher, windows *Windows) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := ParseWindowID(chi.URLParam(r, "windowID"))
			if err == nil && !windows.Known(id) {
				err = apperr.ErrUnknownWindow
			}
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
				return
			}
			win := &streamWindow{id: id, pub: pub}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), windowKey{}, win)))
		})
	}
}

func windowFrom(r *http.Request) *streamWindow {
	return r.Context().Value(windowKey{}).(*streamWindow)
}
