// Package reminder arms one-shot notifications for checkbox items with a time badge.
package reminder

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default notification settings.
const (
	DefaultTitle = "Zap Reminder ⚡"
	fireTimeout  = 10 * time.Second
)

// DefaultVibrate is the haptic pattern attached to reminders.
var DefaultVibrate = []int{50, 30, 50}

var (
	// ErrDisabled is returned when scheduling is turned off.
	ErrDisabled = errors.New("reminder: scheduling disabled")
	// ErrPast is returned for a fire time that is not in the future.
	ErrPast = errors.New("reminder: time is not in the future")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("reminder: scheduler closed")
)

// Handle identifies a pending reminder.
type Handle string

// Notification is delivered when a reminder fires.
type Notification struct {
	Handle  Handle    `json:"handle"`
	NoteID  string    `json:"noteId"`
	At      time.Time `json:"at"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Vibrate []int     `json:"vibrate,omitempty"`
}

// Notifier delivers fired notifications. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f(ctx, n).
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTitle sets the notification title.
func WithTitle(title string) Option {
	return func(s *Scheduler) {
		if title != "" {
			s.title = title
		}
	}
}

// WithEnabled turns scheduling on or off. A disabled scheduler accepts nothing.
func WithEnabled(enabled bool) Option { return func(s *Scheduler) { s.enabled = enabled } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Scheduler) { s.logger = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

type entry struct {
	n     Notification
	timer *time.Timer
}

// Scheduler owns the pending reminders of the process. Each reminder is a
// cancellable one-shot timer grouped by note so a deleted note can drop its
// reminders.
type Scheduler struct {
	notifier Notifier
	title    string
	enabled  bool
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending map[Handle]*entry
	byNote  map[string]map[Handle]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// New returns an enabled scheduler delivering through notifier.
func New(notifier Notifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		notifier: notifier,
		title:    DefaultTitle,
		enabled:  true,
		logger:   slog.Default(),
		now:      time.Now,
		pending:  make(map[Handle]*entry),
		byNote:   make(map[string]map[Handle]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule arms n to fire at at. Title and Vibrate default to the scheduler's
// settings when empty.
func (s *Scheduler) Schedule(noteID string, at time.Time, n Notification) (Handle, error) {
	if !s.enabled {
		return "", ErrDisabled
	}
	delay := at.Sub(s.now())
	if delay <= 0 {
		return "", ErrPast
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	h := Handle(uuid.NewString())
	n.Handle, n.NoteID, n.At = h, noteID, at
	if n.Title == "" {
		n.Title = s.title
	}
	if n.Vibrate == nil {
		n.Vibrate = slices.Clone(DefaultVibrate)
	}
	e := &entry{n: n}
	e.timer = time.AfterFunc(delay, func() { s.fire(h) })
	s.pending[h] = e
	if s.byNote[noteID] == nil {
		s.byNote[noteID] = make(map[Handle]struct{})
	}
	s.byNote[noteID][h] = struct{}{}

	s.logger.Debug("reminder scheduled",
		slog.String("handle", string(h)),
		slog.String("note_id", noteID),
		slog.String("at", at.Format(time.RFC3339)))
	return h, nil
}

// Remind schedules a reminder with the default title and vibration. A disabled
// scheduler silently ignores the request.
func (s *Scheduler) Remind(noteID string, at time.Time, body string) error {
	_, err := s.Schedule(noteID, at, Notification{Body: body})
	if errors.Is(err, ErrDisabled) {
		return nil
	}
	return err
}

// Cancel stops a pending reminder. It reports whether the reminder was pending.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(h)
}

// CancelNote stops every pending reminder of a note and returns how many were
// cancelled.
func (s *Scheduler) CancelNote(noteID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for h := range s.byNote[noteID] {
		if s.cancelLocked(h) {
			count++
		}
	}
	if count > 0 {
		s.logger.Info("reminders cancelled", slog.String("note_id", noteID), slog.Int("count", count))
	}
	return count
}

func (s *Scheduler) cancelLocked(h Handle) bool {
	e, ok := s.pending[h]
	if !ok {
		return false
	}
	e.timer.Stop()
	s.forgetLocked(h, e.n.NoteID)
	return true
}

func (s *Scheduler) forgetLocked(h Handle, noteID string) {
	delete(s.pending, h)
	if set := s.byNote[noteID]; set != nil {
		delete(set, h)
		if len(set) == 0 {
			delete(s.byNote, noteID)
		}
	}
}

// Pending returns the reminders that have not fired, ordered by fire time.
// An empty noteID selects every note.
func (s *Scheduler) Pending(noteID string) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, 0, len(s.pending))
	for _, e := range s.pending {
		if noteID == "" || e.n.NoteID == noteID {
			out = append(out, e.n)
		}
	}
	slices.SortFunc(out, func(a, b Notification) int { return a.At.Compare(b.At) })
	return out
}

// Close cancels all pending reminders and waits for in-flight deliveries.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		for h := range s.pending {
			s.cancelLocked(h)
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) fire(h Handle) {
	s.mu.Lock()
	e, ok := s.pending[h]
	if !ok || s.closed {
		s.mu.Unlock()
		return
	}
	s.forgetLocked(h, e.n.NoteID)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, e.n); err != nil {
		s.logger.Warn("reminder delivery failed",
			slog.String("handle", string(h)),
			slog.String("note_id", e.n.NoteID),
			slog.String("error", err.Error()))
	}
}
