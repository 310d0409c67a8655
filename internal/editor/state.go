package editor

import (
	"sync"
	"time"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
)

// State is the open-file state: the tracked path and the content last read
// from or written to it. The zero value is an unsaved, empty document.
//
// State is mutated only by Sync, which callers invoke after a successful
// disk read or write.
type State struct {
	mu       sync.RWMutex
	path     string
	content  string
	syncedAt time.Time
}

// NewState returns an empty, unsaved state.
func NewState() *State {
	return &State{}
}

// Path returns the tracked path, or "" if the document was never saved.
func (s *State) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Changed reports whether content differs from the last synced content.
func (s *State) Changed(content string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return content != s.content
}

// Sync records that path now holds content on disk.
func (s *State) Sync(path, content string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	s.content = content
	s.syncedAt = at
}

// Snapshot returns a copy of the state.
func (s *State) Snapshot() models.OpenFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.OpenFile{
		Path:     s.path,
		Content:  s.content,
		Checksum: checksum.String(s.content),
		SyncedAt: s.syncedAt,
	}
}
