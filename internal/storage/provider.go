// Package storage defines the vault file-system abstraction.
package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starford/zap/internal/models"
)

// Ext is the extension of note files.
const Ext = ".md"

// Provider is the interface for vault file operations. Paths are relative to
// the vault root.
type Provider interface {
	// List returns metadata for every note file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}

// NotePath returns the vault path of the note with the given id.
func NotePath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("storage: invalid note id %q", id)
	}
	return id + Ext, nil
}

// NoteID derives a note id from its vault path.
func NoteID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Ext)
}
