package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/zap/internal/apperr"
	"github.com/starford/zap/internal/checksum"
	"github.com/starford/zap/internal/models"
)

// tmpPrefix marks in-flight writes. List never reports these files.
const tmpPrefix = ".zap-tmp-"

// FS is a Provider over a vault directory on the local disk.
type FS struct {
	root string
}

// NewFS opens the vault at root, which must be an existing directory.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	switch {
	case err != nil:
		return nil, fmt.Errorf("storage: stat root: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// resolve maps a vault-relative path to an absolute one. Paths that leave the
// vault are rejected.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("storage: path outside vault: %s", rel)
	}
	return filepath.Join(f.root, rel), nil
}

func isNoteFile(name string) bool {
	return strings.HasSuffix(name, Ext) && !strings.HasPrefix(name, tmpPrefix)
}

// List returns metadata for every note file under dir, ordered by path.
func (f *FS) List(dir string) ([]models.NoteMetadata, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	var notes []models.NoteMetadata
	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isNoteFile(d.Name()) {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		notes = append(notes, models.NoteMetadata{
			Path:      rel,
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	}
	if err := filepath.WalkDir(base, walk); err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	slices.SortFunc(notes, func(a, b models.NoteMetadata) int { return strings.Compare(a.Path, b.Path) })
	return notes, nil
}

// Read returns the bytes of a vault file. A missing file yields apperr.ErrNotFound.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, notFound(err))
	}
	return data, nil
}

// Write replaces path with content. Readers see either the old or the new
// file, never a partial one.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	tmp, err := stage(dir, content)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

// stage writes content to a synced temp file in dir and returns its name.
func stage(dir string, content []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp: %w", err)
	}
	_, err = tmp.Write(content)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("storage: stage %s: %w", filepath.Base(tmp.Name()), err)
	}
	return tmp.Name(), nil
}

// Delete removes a vault file. A missing file yields apperr.ErrNotFound.
func (f *FS) Delete(path string) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, notFound(err))
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return apperr.ErrNotFound
	}
	return err
}
