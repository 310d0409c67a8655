// Package storage defines the filesystem primitives used by the controller.
package storage

// Files reads and writes whole text documents by absolute path.
type Files interface {
	// Read returns the full UTF-8 content of the file at path.
	Read(path string) (string, error)
	// Write replaces the file at path with content, creating it if needed.
	Write(path string, content string) error
}
