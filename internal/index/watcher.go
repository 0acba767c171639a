package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/zap/internal/checksum"
	"github.com/starford/zap/internal/storage"
)

// Event kinds reported to an EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change with the id of
// the affected note.
type EventCallback func(kind string, noteID string)

const reconcileDelay = 200 * time.Millisecond

// isNoteFile reports whether name is a note file and not an in-flight
// temporary written by storage.
func isNoteFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, storage.Ext) && !strings.HasPrefix(base, ".")
}

// reindex indexes the file at rel unless its content is already indexed.
// It reports whether the index changed.
func reindex(db *DB, store storage.Provider, vaultRoot, rel string) (bool, error) {
	data, err := store.Read(rel)
	if err != nil {
		return false, err
	}
	if known, _ := db.GetChecksum(storage.NoteID(rel)); known == checksum.Sum(data) {
		return false, nil
	}
	modTime := time.Now()
	if info, statErr := os.Stat(filepath.Join(vaultRoot, rel)); statErr == nil {
		modTime = info.ModTime()
	}
	return true, IndexFile(db, rel, data, modTime)
}

// Watch keeps the index in step with edits made to the vault outside the
// application until ctx is cancelled. cb (if non-nil) runs after each
// successful index mutation.
//
// New directories are added to the watch list as they appear. Renames
// schedule a debounced reconciliation pass against the file listing.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcileAfterRename(db, store, vaultRoot, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					indexNewDir(db, store, vaultRoot, absPath, logger, cb)
					continue
				}
			}

			if !isNoteFile(absPath) {
				continue
			}

			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}

			id := storage.NoteID(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				known, _ := db.GetChecksum(id)
				changed, idxErr := reindex(db, store, vaultRoot, rel)
				if idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				if !changed {
					continue
				}
				kind := EventUpdated
				if known == "" {
					kind = EventCreated
				}
				logger.Debug("watcher: indexed", slog.String("note_id", id), slog.String("op", kind))
				if cb != nil {
					cb(kind, id)
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteNote(id); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("note_id", id))
				if cb != nil {
					cb(EventDeleted, id)
				}

			case ev.Op&fsnotify.Rename != 0:
				// Rename arrives for the old path only; the new path shows
				// up as a Create if it stays inside a watched directory.
				if delErr := db.DeleteNote(id); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else if cb != nil {
					cb(EventDeleted, id)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcileAfterRename drops index entries whose file is gone and indexes
// files whose checksum is unknown.
func reconcileAfterRename(db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if delErr := db.DeleteNote(storage.NoteID(p)); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("path", p))
				if cb != nil {
					cb(EventDeleted, storage.NoteID(p))
				}
			}
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		if changed, idxErr := reindex(db, store, vaultRoot, p); idxErr == nil && changed {
			logger.Debug("reconcile: indexed", slog.String("path", p))
			if cb != nil {
				kind := EventCreated
				if _, known := checksums[p]; known {
					kind = EventUpdated
				}
				cb(kind, storage.NoteID(p))
			}
		}
	}
}

// indexNewDir indexes the note files already present in a new directory.
func indexNewDir(db *DB, store storage.Provider, vaultRoot, dirPath string, logger *slog.Logger, cb EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isNoteFile(path) {
			return nil
		}
		rel, relErr := filepath.Rel(vaultRoot, path)
		if relErr != nil {
			return nil
		}
		if changed, idxErr := reindex(db, store, vaultRoot, rel); idxErr == nil && changed {
			logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
			if cb != nil {
				cb(EventCreated, storage.NoteID(rel))
			}
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
