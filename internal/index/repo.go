package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/zap/internal/apperr"
	"github.com/starford/zap/internal/models"
	"github.com/starford/zap/internal/parser"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	ID        string
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	IsDaily   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// List sort keys.
const (
	SortUpdated = "updated"
	SortCreated = "created"
	SortTitle   = "title"
)

const noteColumns = `id, path, title, checksum, tags, is_daily, created_at, updated_at`

// UpsertNote replaces a note with its search text, tags, outgoing links and
// open tasks within one transaction.
func (db *DB) UpsertNote(n NoteRow, text string, links []string, tasks []models.Task) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if n.Tags == nil {
		n.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(n.Tags)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = n.UpdatedAt
	}

	_, err = tx.Exec(`
		INSERT INTO notes (id, path, title, checksum, tags, body, is_daily, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path       = excluded.path,
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			is_daily   = excluded.is_daily,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, n.ID, n.Path, n.Title, n.Checksum, string(tagsJSON), text, n.IsDaily, n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, n.ID, n.Title, text, n.Tags); err != nil {
		return err
	}

	for _, q := range []string{
		`DELETE FROM note_tags WHERE note_id = ?`,
		`DELETE FROM links WHERE source = ?`,
		`DELETE FROM tasks WHERE note_id = ?`,
	} {
		if _, err := tx.Exec(q, n.ID); err != nil {
			return fmt.Errorf("index: clear derived rows: %w", err)
		}
	}
	for _, tag := range n.Tags {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO note_tags (note_id, tag) VALUES (?, ?)`, n.ID, tag); err != nil {
			return fmt.Errorf("index: insert tag: %w", err)
		}
	}
	for _, target := range links {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`, n.ID, target); err != nil {
			return fmt.Errorf("index: insert link: %w", err)
		}
	}
	for i, task := range tasks {
		var due sql.NullInt64
		if task.DueDate != nil {
			due = sql.NullInt64{Int64: *task.DueDate, Valid: true}
		}
		if _, err := tx.Exec(`INSERT INTO tasks (note_id, position, text, due) VALUES (?, ?, ?, ?)`,
			n.ID, i, task.Text, due); err != nil {
			return fmt.Errorf("index: insert task: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note together with its tags, outgoing links and tasks.
func (db *DB) DeleteNote(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	if _, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// GetNote returns the indexed row of a note.
func (db *DB) GetNote(id string) (*NoteRow, error) {
	row := db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return &n, nil
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE id = ?`, id).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// ListNotes returns one page of notes and the total count. An empty tag
// matches every note; sort is one of the Sort* keys and defaults to most
// recently updated first.
func (db *DB) ListNotes(limit, offset int, tag, sort string) ([]NoteRow, int, error) {
	if limit <= 0 {
		limit = -1
	}
	order := "updated_at DESC, id"
	switch sort {
	case SortCreated:
		order = "created_at DESC, id"
	case SortTitle:
		order = "title COLLATE NOCASE, id"
	}
	const filter = `(? = '' OR id IN (SELECT note_id FROM note_tags WHERE tag = ?))`

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes WHERE `+filter, tag, tag).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+noteColumns+` FROM notes WHERE `+filter+
		` ORDER BY `+order+` LIMIT ? OFFSET ?`, tag, tag, limit, max(offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	out := []NoteRow{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("index: scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// Backlinks returns the notes that link to target, most recently updated first.
func (db *DB) Backlinks(target string) ([]NoteRow, error) {
	rows, err := db.conn.Query(`
		SELECT `+noteColumns+` FROM notes
		WHERE id IN (SELECT source FROM links WHERE target = ?)
		ORDER BY updated_at DESC, id
	`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	out := []NoteRow{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scan backlink: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Graph returns every note and the wiki-link edges between existing notes.
func (db *DB) Graph() (models.Graph, error) {
	g := models.Graph{Nodes: []models.GraphNode{}, Edges: []models.Link{}}

	rows, err := db.conn.Query(`SELECT id, title FROM notes ORDER BY id`)
	if err != nil {
		return g, fmt.Errorf("index: graph nodes: %w", err)
	}
	for rows.Next() {
		var n models.GraphNode
		if err := rows.Scan(&n.ID, &n.Title); err != nil {
			rows.Close()
			return g, err
		}
		g.Nodes = append(g.Nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return g, err
	}

	rows, err = db.conn.Query(`
		SELECT l.source, l.target FROM links l
		JOIN notes t ON t.id = l.target
		ORDER BY l.source, l.target
	`)
	if err != nil {
		return g, fmt.Errorf("index: graph edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.Source, &l.Target); err != nil {
			return g, err
		}
		g.Edges = append(g.Edges, l)
	}
	return g, rows.Err()
}

// Tags returns every tag with its note count, most used first.
func (db *DB) Tags() ([]models.TagCount, error) {
	rows, err := db.conn.Query(`SELECT tag, count(*) AS c FROM note_tags GROUP BY tag ORDER BY c DESC, tag`)
	if err != nil {
		return nil, fmt.Errorf("index: tags: %w", err)
	}
	defer rows.Close()

	out := []models.TagCount{}
	for rows.Next() {
		var tc models.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// Tasks returns the open tasks of every note. Notes are ordered most recently
// updated first and tasks keep their document order within a note.
func (db *DB) Tasks() ([]models.Task, error) {
	rows, err := db.conn.Query(`
		SELECT t.text, t.note_id, n.title, t.due
		FROM tasks t JOIN notes n ON n.id = t.note_id
		ORDER BY n.updated_at DESC, n.id, t.position
	`)
	if err != nil {
		return nil, fmt.Errorf("index: tasks: %w", err)
	}
	defer rows.Close()

	out := []models.Task{}
	for rows.Next() {
		var (
			task models.Task
			due  sql.NullInt64
		)
		if err := rows.Scan(&task.Text, &task.NoteID, &task.NoteTitle, &due); err != nil {
			return nil, err
		}
		if task.NoteTitle == "" {
			task.NoteTitle = parser.UntitledNote
		}
		if due.Valid {
			task.DueDate = &due.Int64
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// AllChecksums returns the stored checksum of every note keyed by vault path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (NoteRow, error) {
	var (
		n    NoteRow
		tags string
	)
	if err := s.Scan(&n.ID, &n.Path, &n.Title, &n.Checksum, &tags, &n.IsDaily, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return n, err
	}
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil || n.Tags == nil {
		n.Tags = []string{}
	}
	return n, nil
}
