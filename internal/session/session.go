// Package session keeps one live editor per open note and persists every
// accepted edit through the note store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/zap/internal/editor"
	"github.com/starford/zap/internal/models"
	"github.com/starford/zap/internal/noteservice"
)

// ErrNotOpen is returned for events sent to a note without a session.
var ErrNotOpen = errors.New("session: not open")

// Store is the part of the note service sessions depend on.
type Store interface {
	ListNotes(ctx context.Context, limit, offset int, tag, sort string) ([]models.NoteSummary, int, error)
	GetNote(ctx context.Context, id string) (*models.Note, error)
	UpdateNote(ctx context.Context, id string, upd noteservice.NoteUpdate, ifMatch string) (*models.Note, error)
}

// Result is returned after a batch of events.
type Result struct {
	State editor.State `json:"state"`
	// NavigateTo is the note a followed wiki-link points at.
	NavigateTo string `json:"navigateTo,omitempty"`
	// Haptics lists the vibration patterns requested while handling the batch.
	Haptics [][]int `json:"haptics,omitempty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithScheduler arms reminders for time badges.
func WithScheduler(s editor.Scheduler) Option { return func(m *Manager) { m.sched = s } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithClock overrides the time source of new editors.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// Manager owns the open editor sessions, keyed by note id.
type Manager struct {
	store  Store
	sched  editor.Scheduler
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu       sync.Mutex
	ctx      context.Context
	ed       *editor.Editor
	navigate string
	pulses   [][]int
	saveErr  error
	saving   atomic.Bool
}

// NewManager returns an empty manager.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts editing a note, or returns the state of its running session.
func (m *Manager) Open(ctx context.Context, noteID string) (editor.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[noteID]; ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.ed.State(), nil
	}

	note, err := m.store.GetNote(ctx, noteID)
	if err != nil {
		return editor.State{}, err
	}
	s := &session{}
	opts := []editor.Option{
		editor.WithStore(storeAdapter{m.store}),
		editor.WithNavigator(editor.NavigatorFunc(func(id string) { s.navigate = id })),
		editor.WithHaptics(pulseRecorder{s}),
		editor.WithOnChange(func(content string) {
			s.saving.Store(true)
			s.saveErr = m.save(s.ctx, noteID, content)
			s.saving.Store(false)
		}),
		editor.WithClock(m.now),
		editor.WithLogger(m.logger),
	}
	if m.sched != nil {
		opts = append(opts, editor.WithScheduler(m.sched))
	}
	ed, err := editor.New(noteID, note.Content, opts...)
	if err != nil {
		return editor.State{}, fmt.Errorf("session: open %s: %w", noteID, err)
	}
	s.ed = ed
	m.sessions[noteID] = s
	m.logger.Debug("session opened", slog.String("note_id", noteID))
	return ed.State(), nil
}

// Dispatch feeds events to the note's editor in order. Edits are persisted as
// they happen; a failed save stops the batch.
func (m *Manager) Dispatch(ctx context.Context, noteID string, events []editor.Event) (Result, error) {
	m.mu.Lock()
	s, ok := m.sessions[noteID]
	m.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("session: %s: %w", noteID, ErrNotOpen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx, s.navigate, s.pulses, s.saveErr = ctx, "", nil, nil
	for _, ev := range events {
		s.ed.Handle(ctx, ev)
		if s.saveErr != nil {
			return Result{State: s.ed.State()}, s.saveErr
		}
	}
	return Result{State: s.ed.State(), NavigateTo: s.navigate, Haptics: s.pulses}, nil
}

// State returns the snapshot of an open session.
func (m *Manager) State(noteID string) (editor.State, error) {
	m.mu.Lock()
	s, ok := m.sessions[noteID]
	m.mu.Unlock()
	if !ok {
		return editor.State{}, fmt.Errorf("session: %s: %w", noteID, ErrNotOpen)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ed.State(), nil
}

// Close ends the session of a note. It reports whether one was open.
func (m *Manager) Close(noteID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[noteID]; !ok {
		return false
	}
	delete(m.sessions, noteID)
	m.logger.Debug("session closed", slog.String("note_id", noteID))
	return true
}

// NoteChanged is a note service hook. A session whose note was updated
// elsewhere or deleted is dropped so the next Open reloads the note.
func (m *Manager) NoteChanged(kind, noteID string) {
	if kind == noteservice.Created {
		return
	}
	m.mu.Lock()
	s, ok := m.sessions[noteID]
	m.mu.Unlock()
	if !ok || (kind == noteservice.Updated && s.saving.Load()) {
		return
	}
	m.Close(noteID)
}

func (m *Manager) save(ctx context.Context, noteID, content string) error {
	_, err := m.store.UpdateNote(ctx, noteID, noteservice.NoteUpdate{Content: &content}, "")
	if err != nil {
		m.logger.Error("session: save failed", slog.String("note_id", noteID), slog.String("error", err.Error()))
		return fmt.Errorf("session: save %s: %w", noteID, err)
	}
	return nil
}

type pulseRecorder struct{ s *session }

func (p pulseRecorder) Pulse(pattern ...int) {
	p.s.pulses = append(p.s.pulses, slices.Clone(pattern))
}

// storeAdapter exposes the note service to the editor's wiki-link menu.
type storeAdapter struct{ store Store }

func (a storeAdapter) ListNotes(ctx context.Context) ([]editor.NoteRef, error) {
	items, _, err := a.store.ListNotes(ctx, 0, 0, "", "")
	if err != nil {
		return nil, err
	}
	out := make([]editor.NoteRef, len(items))
	for i, n := range items {
		out[i] = editor.NoteRef{ID: n.ID, Title: n.Title, UpdatedAt: n.UpdatedAt}
	}
	return out, nil
}

func (a storeAdapter) GetNote(ctx context.Context, id string) (editor.NoteRef, error) {
	n, err := a.store.GetNote(ctx, id)
	if err != nil {
		return editor.NoteRef{}, err
	}
	return editor.NoteRef{ID: n.ID, Title: n.Title, UpdatedAt: n.UpdatedAt}, nil
}

var _ editor.NoteStore = storeAdapter{}
