// Package noteservice is the note store: it owns note files in the vault and
// keeps the index in step with every change.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/zap/internal/apperr"
	"github.com/starford/zap/internal/checksum"
	"github.com/starford/zap/internal/index"
	"github.com/starford/zap/internal/models"
	"github.com/starford/zap/internal/parser"
	"github.com/starford/zap/internal/storage"
)

// Change kinds passed to hooks.
const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

// Hook is called after a change has been written and indexed.
type Hook func(kind, noteID string)

// ReminderCanceller drops the pending reminders of a note.
type ReminderCanceller interface {
	CancelNote(noteID string) int
}

// NoteInput carries the fields of a new note.
type NoteInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NoteUpdate carries the fields to change. Nil fields are left untouched.
type NoteUpdate struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// Option configures a Service.
type Option func(*Service)

// WithReminders cancels a note's reminders when it is deleted.
func WithReminders(r ReminderCanceller) Option { return func(s *Service) { s.reminders = r } }

// WithHook registers a hook for committed changes.
func WithHook(h Hook) Option { return func(s *Service) { s.hooks = append(s.hooks, h) } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// Service coordinates storage and index operations.
type Service struct {
	store     storage.Provider
	db        index.NoteIndex
	reminders ReminderCanceller
	hooks     []Hook
	now       func() time.Time
	logger    *slog.Logger

	mu sync.Mutex
}

// NewService creates a new note service.
func NewService(store storage.Provider, db index.NoteIndex, opts ...Option) *Service {
	s := &Service{store: store, db: db, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetNote reads a note from the vault.
func (s *Service) GetNote(_ context.Context, id string) (*models.Note, error) {
	n, _, err := s.read(id)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// ListNotes returns one page of note summaries, most recently updated first
// unless sort says otherwise.
func (s *Service) ListNotes(_ context.Context, limit, offset int, tag, sort string) ([]models.NoteSummary, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	return summaries(rows), total, nil
}

// CreateNote writes a new note with a generated id.
func (s *Service) CreateNote(ctx context.Context, in NoteInput) (*models.Note, error) {
	return s.create(ctx, uuid.NewString(), in, false)
}

func (s *Service) create(_ context.Context, id string, in NoteInput, daily bool) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := storage.NotePath(id)
	if err != nil {
		return nil, fmt.Errorf("noteservice: %w: %w", apperr.ErrInvalid, err)
	}
	if _, err := s.store.Read(path); err == nil {
		return nil, fmt.Errorf("noteservice: note %s: %w", id, apperr.ErrAlreadyExists)
	}
	now := s.now().UTC()
	fm := parser.Frontmatter{
		ID:      id,
		Title:   in.Title,
		Daily:   daily,
		Created: now,
		Updated: now,
	}
	n, err := s.write(path, fm, in.Content)
	if err != nil {
		return nil, err
	}
	s.emit(Created, id)
	return n, nil
}

// UpdateNote changes the title and/or content of a note. A non-empty ifMatch
// must equal the current checksum. updatedAt is refreshed; createdAt is kept.
func (s *Service) UpdateNote(_ context.Context, id string, upd NoteUpdate, ifMatch string) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, path, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != current.Checksum {
		return nil, fmt.Errorf("noteservice: note %s: %w", id, apperr.ErrConflict)
	}

	fm := parser.Frontmatter{
		ID:      id,
		Title:   current.Title,
		Daily:   current.IsDaily,
		Created: current.CreatedAt,
		Updated: s.now().UTC(),
	}
	if !fm.Updated.After(current.UpdatedAt) {
		fm.Updated = current.UpdatedAt.Add(time.Millisecond)
	}
	if upd.Title != nil {
		fm.Title = *upd.Title
	}
	content := current.Content
	if upd.Content != nil {
		content = *upd.Content
	}
	n, err := s.write(path, fm, content)
	if err != nil {
		return nil, err
	}
	s.emit(Updated, id)
	return n, nil
}

// DeleteNote removes a note from the vault and the index and cancels its
// pending reminders.
func (s *Service) DeleteNote(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.pathOf(id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(path); err != nil {
		return err
	}
	if err := s.db.DeleteNote(id); err != nil {
		return err
	}
	if s.reminders != nil {
		s.reminders.CancelNote(id)
	}
	s.logger.Info("note deleted", slog.String("note_id", id))
	s.emit(Deleted, id)
	return nil
}

// Backlinks returns the notes linking to id.
func (s *Service) Backlinks(_ context.Context, id string) ([]models.NoteSummary, error) {
	rows, err := s.db.Backlinks(id)
	if err != nil {
		return nil, err
	}
	return summaries(rows), nil
}

// Tags returns every tag with its note count.
func (s *Service) Tags(_ context.Context) ([]models.TagCount, error) {
	return s.db.Tags()
}

// Tasks returns the open checkbox items across all notes.
func (s *Service) Tasks(_ context.Context) ([]models.Task, error) {
	return s.db.Tasks()
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph returns the wiki-link graph.
func (s *Service) Graph(_ context.Context) (models.Graph, error) {
	return s.db.Graph()
}

// pathOf resolves the vault path of a note. Notes not yet indexed live at
// the default location.
func (s *Service) pathOf(id string) (string, error) {
	if row, err := s.db.GetNote(id); err == nil {
		return row.Path, nil
	}
	path, err := storage.NotePath(id)
	if err != nil {
		return "", fmt.Errorf("noteservice: %w: %w", apperr.ErrNotFound, err)
	}
	return path, nil
}

func (s *Service) read(id string) (*models.Note, string, error) {
	path, err := s.pathOf(id)
	if err != nil {
		return nil, "", err
	}
	data, err := s.store.Read(path)
	if err != nil {
		return nil, "", err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, "", err
	}
	n := &models.Note{
		ID:       id,
		Title:    res.Title,
		Content:  res.Body,
		Tags:     res.NoteTags(),
		DueDates: res.DueDates,
		Checksum: checksum.Sum(data),
	}
	if fm := res.Frontmatter; fm != nil {
		n.IsDaily = fm.Daily
		n.CreatedAt, n.UpdatedAt = fm.Created, fm.Updated
	}
	if n.CreatedAt.IsZero() || n.UpdatedAt.IsZero() {
		if row, err := s.db.GetNote(id); err == nil {
			n.CreatedAt, n.UpdatedAt = row.CreatedAt, row.UpdatedAt
		}
	}
	return n, path, nil
}

// write renders and stores a note, then indexes it. Tags and due dates are
// always derived from the content; daily notes keep their "daily" tag.
func (s *Service) write(path string, fm parser.Frontmatter, content string) (*models.Note, error) {
	fm.Tags = parser.ExtractTags(content)
	if fm.Daily {
		fm.Tags = append([]string{DailyTag}, without(fm.Tags, DailyTag)...)
	}
	fm.DueDates = parser.ExtractDueDates(content)

	data, err := parser.Render(fm, content)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	if err := index.IndexFile(s.db, path, data, fm.Updated); err != nil {
		return nil, fmt.Errorf("noteservice: index %s: %w", fm.ID, err)
	}
	return &models.Note{
		ID:        fm.ID,
		Title:     fm.Title,
		Content:   content,
		Tags:      fm.Tags,
		DueDates:  fm.DueDates,
		IsDaily:   fm.Daily,
		Checksum:  checksum.Sum(data),
		CreatedAt: fm.Created,
		UpdatedAt: fm.Updated,
	}, nil
}

func (s *Service) emit(kind, id string) {
	for _, h := range s.hooks {
		h(kind, id)
	}
}

func summaries(rows []index.NoteRow) []models.NoteSummary {
	out := make([]models.NoteSummary, len(rows))
	for i, r := range rows {
		out[i] = models.NoteSummary{
			ID:        r.ID,
			Title:     r.Title,
			Tags:      r.Tags,
			IsDaily:   r.IsDaily,
			Checksum:  r.Checksum,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return out
}

func without(list []string, drop string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != drop {
			out = append(out, v)
		}
	}
	return out
}
