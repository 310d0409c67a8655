// Package models defines the domain types for Ansuz.
package models

import "time"

// OpenFile is a read-only snapshot of the controller's open-file state.
type OpenFile struct {
	Path     string    `json:"path,omitempty"`
	Content  string    `json:"-"`
	Checksum string    `json:"checksum"`
	SyncedAt time.Time `json:"synced_at,omitempty"`
}

// Saved reports whether the document has ever been read from or written to disk.
func (f OpenFile) Saved() bool {
	return f.Path != ""
}

// RecentDocument is an entry in the recent documents list.
type RecentDocument struct {
	Path     string    `json:"path"`
	OpenedAt time.Time `json:"opened_at"`
}
