package index

import (
	"log/slog"
	"time"

	"github.com/starford/zap/internal/checksum"
	"github.com/starford/zap/internal/parser"
	"github.com/starford/zap/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(storage.NoteID(p)); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses a note file and upserts it. The note id is derived from
// the file name; modTime stands in for missing header timestamps.
func IndexFile(db NoteIndex, path string, data []byte, modTime time.Time) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	id := storage.NoteID(path)
	row := NoteRow{
		ID:        id,
		Path:      path,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		Tags:      res.NoteTags(),
		CreatedAt: modTime,
		UpdatedAt: modTime,
	}
	if fm := res.Frontmatter; fm != nil {
		row.IsDaily = fm.Daily
		if !fm.Created.IsZero() {
			row.CreatedAt = fm.Created
		}
		if !fm.Updated.IsZero() {
			row.UpdatedAt = fm.Updated
		}
	}
	return db.UpsertNote(row, res.Text, res.Links, parser.Tasks(res.Doc, id, res.Title))
}
