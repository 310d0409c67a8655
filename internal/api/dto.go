package api

import (
	"time"

	"github.com/starford/ansuz/internal/models"
)

// ContentRequest carries the editor text (save-file, check-unsaved-changes).
type ContentRequest struct {
	Content *string `json:"content" example:"# Hello" validate:"required"`
}

// HTMLRequest carries rendered preview HTML (export-html-dialog).
type HTMLRequest struct {
	HTML *string `json:"html" example:"<h1>Hello</h1>" validate:"required"`
}

// OpenRecentRequest names a document from the recent list.
type OpenRecentRequest struct {
	Path *string `json:"path" example:"/home/me/Documents/notes.md" validate:"required"`
}

// RenderRequest is the request body for POST /api/render.
type RenderRequest struct {
	Markdown *string `json:"markdown" example:"# Hello" validate:"required"`
}

// RenderResponse is the rendered preview fragment.
type RenderResponse struct {
	HTML string `json:"html" validate:"required"`
}

// UnsavedChangesResponse answers check-unsaved-changes.
type UnsavedChangesResponse struct {
	Changed bool `json:"changed"`
}

// RecentResponse lists recent documents.
type RecentResponse struct {
	Documents []models.RecentDocument `json:"documents" validate:"required"`
}

// StateResponse describes the open file without its content.
type StateResponse struct {
	Path     string     `json:"path,omitempty"`
	Saved    bool       `json:"saved"`
	Checksum string     `json:"checksum"`
	SyncedAt *time.Time `json:"synced_at,omitempty"`
}

// Pushed window event payloads.
type (
	FileOpenedEvent struct {
		Content string `json:"content"`
		Path    string `json:"path"`
	}
	WindowTitleEvent struct {
		Title string `json:"title"`
	}
	RepresentedFileEvent struct {
		Path string `json:"path"`
	}
	DocumentEditedEvent struct {
		Edited bool `json:"edited"`
	}
	NotificationEvent struct {
		Operation string `json:"operation"`
		Message   string `json:"message"`
	}
)
