// Package editor turns user input events into structural edits of a note document.
//
// Apply is the single mutation entry point: it takes a document, a caret and an
// operation and returns the caret after the edit. Editor wraps one document with
// its suggestion menus and routes keystrokes and clicks into Apply.
package editor

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/starford/zap/internal/document"
	"github.com/starford/zap/internal/menu"
	"github.com/starford/zap/internal/trigger"
)

// NoteRef is the part of a note record the editor reads.
type NoteRef struct {
	ID        string
	Title     string
	UpdatedAt time.Time
}

// NoteStore supplies wiki-link candidates and resolves link targets.
type NoteStore interface {
	ListNotes(ctx context.Context) ([]NoteRef, error)
	GetNote(ctx context.Context, id string) (NoteRef, error)
}

// Navigator opens another note.
type Navigator interface {
	NavigateToNote(id string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(id string)

// NavigateToNote calls f(id).
func (f NavigatorFunc) NavigateToNote(id string) { f(id) }

// Scheduler arms a reminder for a checkbox whose time badge was just attached.
type Scheduler interface {
	Remind(noteID string, at time.Time, body string) error
}

// Haptics emits a vibration pattern in milliseconds. Implementations may do nothing.
type Haptics interface {
	Pulse(pattern ...int)
}

// CheckPulse is the vibration emitted when an item is checked.
const CheckPulse = 10

// Key names handled specially; any other single-rune key is typed as text.
const (
	KeyArrowUp   = "ArrowUp"
	KeyArrowDown = "ArrowDown"
	KeyEnter     = "Enter"
	KeyEscape    = "Escape"
	KeyBackspace = "Backspace"
)

// EventType enumerates input events.
type EventType string

// Event types.
const (
	EventKey        EventType = "key"
	EventClick      EventType = "click"
	EventCursor     EventType = "cursor"
	EventMenuHover  EventType = "menu.hover"
	EventMenuSelect EventType = "menu.select"
)

// Event is one user input. Key is set for key events; Node and Offset address the
// click target or new caret; Index is a menu row; Anchor is the caret's screen
// position, used when a menu opens.
type Event struct {
	Type   EventType       `json:"type"`
	Key    string          `json:"key,omitempty"`
	Node   document.NodeID `json:"node,omitempty"`
	Offset int             `json:"offset,omitempty"`
	Index  int             `json:"index,omitempty"`
	Anchor menu.Point      `json:"anchor"`
}

// Option configures an Editor.
type Option func(*Editor)

// WithStore sets the note store used by the wiki-link menu and link clicks.
func WithStore(s NoteStore) Option { return func(e *Editor) { e.store = s } }

// WithNavigator sets the navigation target for wiki-link clicks.
func WithNavigator(n Navigator) Option { return func(e *Editor) { e.nav = n } }

// WithScheduler sets the reminder scheduler for time badges.
func WithScheduler(s Scheduler) Option { return func(e *Editor) { e.sched = s } }

// WithHaptics sets the haptic feedback sink.
func WithHaptics(h Haptics) Option { return func(e *Editor) { e.haptics = h } }

// WithOnChange sets the callback receiving the serialized document after each
// accepted mutation.
func WithOnChange(fn func(content string)) Option { return func(e *Editor) { e.onChange = fn } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(e *Editor) { e.now = now } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Editor) { e.logger = l } }

// Editor is one editing session over a single note. It is not safe for
// concurrent use.
type Editor struct {
	noteID string
	doc    *document.Document
	cursor document.Cursor

	slash      *menu.Menu
	wiki       *menu.Menu
	candidates []menu.Item

	store    NoteStore
	nav      Navigator
	sched    Scheduler
	haptics  Haptics
	onChange func(string)
	now      func() time.Time
	logger   *slog.Logger

	dirty bool
}

// New parses content and returns an editor with the caret at the end of the
// document.
func New(noteID, content string, opts ...Option) (*Editor, error) {
	doc, err := document.Parse(content)
	if err != nil {
		return nil, err
	}
	e := &Editor{
		noteID:   noteID,
		doc:      doc,
		cursor:   doc.End(),
		slash:    menu.NewSlash(),
		onChange: func(string) {},
		now:      time.Now,
		logger:   slog.Default(),
	}
	e.wiki = menu.NewWiki(func() []menu.Item { return e.candidates })
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NoteID returns the id of the edited note.
func (e *Editor) NoteID() string { return e.noteID }

// Document returns the live document.
func (e *Editor) Document() *document.Document { return e.doc }

// Cursor returns the caret.
func (e *Editor) Cursor() document.Cursor { return e.cursor }

// Content returns the serialized document.
func (e *Editor) Content() string { return e.doc.Serialize() }

// SlashMenu returns the slash-command menu.
func (e *Editor) SlashMenu() *menu.Menu { return e.slash }

// WikiMenu returns the wiki-link menu.
func (e *Editor) WikiMenu() *menu.Menu { return e.wiki }

// Handle processes one input event. Failed triggers leave the document untouched;
// no error reaches the caller.
func (e *Editor) Handle(ctx context.Context, ev Event) {
	e.dirty = false
	switch ev.Type {
	case EventKey:
		e.key(ctx, ev)
	case EventClick:
		e.click(ctx, ev)
	case EventCursor:
		e.setCursor(document.Cursor{Node: ev.Node, Offset: ev.Offset})
	case EventMenuHover:
		if m := e.openMenu(); m != nil {
			m.SetActive(ev.Index)
		}
	case EventMenuSelect:
		if m := e.openMenu(); m != nil {
			m.SetActive(ev.Index)
			e.confirm(m)
		}
	default:
		e.logger.Debug("unknown editor event", slog.String("type", string(ev.Type)))
	}
	if e.dirty {
		e.onChange(e.doc.Serialize())
	}
}

func (e *Editor) openMenu() *menu.Menu {
	switch {
	case e.wiki.IsOpen():
		return e.wiki
	case e.slash.IsOpen():
		return e.slash
	}
	return nil
}

func (e *Editor) setCursor(c document.Cursor) {
	if c = e.doc.Snap(c); e.doc.Valid(c) {
		e.cursor = c
	}
}

// apply runs op at the caret and records the change. It reports whether the
// edit happened.
func (e *Editor) apply(op Op) (Result, bool) {
	res, err := Apply(e.doc, e.cursor, op)
	if err != nil {
		if !errors.Is(err, ErrNoAnchor) && !errors.Is(err, ErrNotApplicable) {
			e.logger.Warn("editor mutation failed", slog.String("note_id", e.noteID), slog.String("error", err.Error()))
		} else {
			e.logger.Debug("editor trigger ignored", slog.String("note_id", e.noteID), slog.String("reason", err.Error()))
		}
		return res, false
	}
	e.cursor = res.Cursor
	e.dirty = true
	return res, true
}

func (e *Editor) key(ctx context.Context, ev Event) {
	switch {
	case e.wiki.IsOpen():
		switch ev.Key {
		case KeyArrowDown:
			e.wiki.MoveActive(1)
			return
		case KeyArrowUp:
			e.wiki.MoveActive(-1)
			return
		case KeyEnter:
			e.confirm(e.wiki)
			return
		case KeyEscape:
			e.wiki.Close()
			return
		}
		e.typeKey(ctx, ev)
		return
	case e.slash.IsOpen():
		switch ev.Key {
		case KeyArrowDown:
			e.slash.MoveActive(1)
			return
		case KeyArrowUp:
			e.slash.MoveActive(-1)
			return
		case KeyEnter:
			e.confirm(e.slash)
			return
		case KeyEscape:
			e.slash.Close()
			return
		}
		if utf8.RuneCountInString(ev.Key) == 1 && ev.Key != "/" {
			e.slash.Close()
			e.key(ctx, ev)
			return
		}
		e.typeKey(ctx, ev)
		return
	}

	if ev.Key == " " && e.space(ctx, ev.Anchor) {
		return
	}
	e.typeKey(ctx, ev)
}

// space runs the space-triggered edits. It reports whether the keystroke was
// consumed.
func (e *Editor) space(ctx context.Context, anchor menu.Point) bool {
	if !e.doc.InText(e.cursor) {
		return false
	}
	text := e.doc.Node(e.cursor.Node).Text
	if _, ok := trigger.Checkbox(text, e.cursor.Offset); ok {
		if _, ok := e.apply(InsertCheckbox{}); ok {
			return true
		}
	}
	m, ok := trigger.Tag(text, e.cursor.Offset)
	if !ok {
		return false
	}
	e.insertText(" ")
	if e.badge(m.Start) {
		e.highlightRespaced()
		return true
	}
	e.apply(HighlightTag{Start: m.Start, End: m.End})
	e.afterInput(ctx, anchor)
	return true
}

// highlightRespaced highlights the tag just before the caret after a badge
// removed its keyword and collapsed the label's spacing.
func (e *Editor) highlightRespaced() {
	if !e.doc.InText(e.cursor) {
		return
	}
	text, caret := e.doc.Node(e.cursor.Node).Text, e.cursor.Offset
	spaced := caret > 0 && text[caret-1] == ' '
	at := caret
	if spaced {
		at--
	}
	m, ok := trigger.Tag(text, at)
	if !ok {
		return
	}
	if _, ok := e.apply(HighlightTag{Start: m.Start, End: m.End}); ok && !spaced {
		e.insertText(" ")
	}
}

func (e *Editor) typeKey(ctx context.Context, ev Event) {
	switch ev.Key {
	case KeyEnter:
		e.splitLine()
		return
	case KeyBackspace:
		if e.deleteBackward() {
			e.afterInput(ctx, ev.Anchor)
		}
		return
	}
	if utf8.RuneCountInString(ev.Key) != 1 {
		return
	}
	if e.insertText(ev.Key) {
		e.afterInput(ctx, ev.Anchor)
	}
}

// afterInput runs the triggers evaluated after text changed at the caret.
func (e *Editor) afterInput(ctx context.Context, anchor menu.Point) {
	if !e.doc.InText(e.cursor) {
		return
	}
	node := e.doc.Node(e.cursor.Node)
	text, offset := node.Text, e.cursor.Offset

	if m, ok := trigger.WikiOpen(text, offset); ok {
		e.refreshCandidates(ctx)
		if !e.wiki.IsOpen() {
			e.wiki.Open(anchor)
		}
		e.wiki.SetQuery(m.Payload)
		return
	}
	if e.wiki.IsOpen() {
		e.wiki.Close()
	}

	if e.badge(len(text)) {
		return
	}

	if _, ok := trigger.Slash(text, offset); ok {
		e.slash.Open(anchor)
	} else if e.slash.IsOpen() {
		e.slash.Close()
	}
}

// badge turns a date or time keyword in the caret's checkbox label into a
// badge. Keywords ending after limit are left alone.
func (e *Editor) badge(limit int) bool {
	if !e.doc.InText(e.cursor) {
		return false
	}
	node := e.doc.Node(e.cursor.Node)
	if e.doc.Node(node.Parent).Kind != document.KindCheckboxText {
		return false
	}
	text, offset := node.Text, e.cursor.Offset
	now := e.now()
	if m, ok := trigger.Date(text, offset); ok && m.End <= limit {
		if _, ok := e.apply(AttachDue{Now: now}); ok {
			return true
		}
	}
	if m, ok := trigger.Time(text, offset); ok && m.End <= limit {
		if res, ok := e.apply(AttachTime{Now: now}); ok {
			e.remind(res)
			return true
		}
	}
	return false
}

func (e *Editor) remind(res Result) {
	if e.sched == nil {
		return
	}
	if err := e.sched.Remind(e.noteID, res.At, res.Label); err != nil {
		e.logger.Warn("schedule reminder", slog.String("note_id", e.noteID), slog.String("error", err.Error()))
	}
}

func (e *Editor) refreshCandidates(ctx context.Context) {
	if e.store == nil {
		e.candidates = nil
		return
	}
	notes, err := e.store.ListNotes(ctx)
	if err != nil {
		e.logger.Warn("list wiki candidates", slog.String("error", err.Error()))
		return
	}
	items := make([]menu.Item, 0, len(notes))
	for _, n := range notes {
		if n.ID == e.noteID {
			continue
		}
		items = append(items, menu.Item{ID: n.ID, Label: n.Title, UpdatedAt: n.UpdatedAt})
	}
	e.candidates = items
}

func (e *Editor) confirm(m *menu.Menu) {
	it, ok := m.Confirm()
	if !ok {
		return
	}
	switch m.Kind() {
	case menu.KindWiki:
		title := it.Label
		if title == menu.UntitledLabel {
			title = ""
		}
		e.apply(InsertWikiLink{NoteID: it.ID, Title: title})
	case menu.KindSlash:
		e.apply(SlashCommand{Command: it.ID, Now: e.now()})
	}
}

func (e *Editor) click(ctx context.Context, ev Event) {
	e.slash.Close()
	e.wiki.Close()

	n := e.doc.Node(ev.Node)
	if n == nil {
		return
	}
	switch n.Kind {
	case document.KindWikiLink:
		e.follow(ctx, n.Target)
	case document.KindCheckbox:
		checked := !n.Checked
		if _, ok := e.apply(SetChecked{Item: n.ID, Checked: checked}); ok && checked && e.haptics != nil {
			e.haptics.Pulse(CheckPulse)
		}
	default:
		e.setCursor(document.Cursor{Node: ev.Node, Offset: ev.Offset})
	}
}

func (e *Editor) follow(ctx context.Context, id string) {
	if id == "" || e.nav == nil {
		return
	}
	if e.store != nil {
		if _, err := e.store.GetNote(ctx, id); err != nil {
			e.logger.Debug("wiki link target missing", slog.String("target", id), slog.String("error", err.Error()))
			return
		}
	}
	e.nav.NavigateToNote(id)
}
