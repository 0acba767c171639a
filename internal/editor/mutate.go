package editor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/starford/zap/internal/datetime"
	"github.com/starford/zap/internal/document"
	"github.com/starford/zap/internal/menu"
	"github.com/starford/zap/internal/trigger"
)

var (
	// ErrNoAnchor means the trigger text an operation needs is not at the caret.
	ErrNoAnchor = errors.New("editor: no anchor at caret")
	// ErrNotApplicable means the operation does not apply to the caret's context.
	ErrNotApplicable = errors.New("editor: operation not applicable")
)

var tagLiteralRe = regexp.MustCompile(`^#[A-Za-z0-9_-]+$`)

// Op describes one structural edit.
type Op interface {
	apply(d *document.Document, c document.Cursor) (Result, error)
}

// Result is the outcome of a successful Apply.
type Result struct {
	Cursor document.Cursor
	// Item is the checkbox touched by the edit, or document.None.
	Item document.NodeID
	// At is the moment a badge was resolved to.
	At time.Time
	// Label is the checkbox text after a badge keyword was removed.
	Label string
}

// Apply performs op on d at caret c. On error d is left unchanged.
func Apply(d *document.Document, c document.Cursor, op Op) (Result, error) {
	res, err := op.apply(d, c)
	if err != nil {
		return Result{Cursor: c, Item: document.None}, err
	}
	if !d.Valid(res.Cursor) {
		res.Cursor = d.End()
	}
	return res, nil
}

// caretText returns the text run holding c, rejecting runs inside a tag highlight.
func caretText(d *document.Document, c document.Cursor) (*document.Node, error) {
	if !d.InText(c) {
		return nil, ErrNoAnchor
	}
	n := d.Node(c.Node)
	if p := d.Node(n.Parent); p == nil || p.Kind == document.KindTagHighlight {
		return nil, ErrNotApplicable
	}
	return n, nil
}

func newCheckbox(d *document.Document, label string) (cb, text document.NodeID) {
	if label == "" {
		label = document.NBSP
	}
	cb = d.NewNode(document.Node{Kind: document.KindCheckbox})
	span := d.NewNode(document.Node{Kind: document.KindCheckboxText})
	text = d.NewText(label)
	d.Append(cb, span)
	d.Append(span, text)
	return cb, text
}

// InsertCheckbox turns a "[]" typed before the caret into a checkbox item.
// The rest of the line becomes the item's label.
type InsertCheckbox struct{}

func (InsertCheckbox) apply(d *document.Document, c document.Cursor) (Result, error) {
	t, err := caretText(d, c)
	if err != nil {
		return Result{}, err
	}
	m, ok := trigger.Checkbox(t.Text, c.Offset)
	if !ok {
		return Result{}, ErrNoAnchor
	}
	if d.Ancestor(t.ID, document.KindCheckbox) != document.None {
		return Result{}, ErrNotApplicable
	}

	before, after := t.Text[:m.Start], t.Text[m.End:]
	cb, label := newCheckbox(d, after)
	if before != "" {
		t.Text = before
		d.InsertAfter(t.ID, cb)
	} else {
		d.Replace(t.ID, cb)
	}
	keepOpen(d, cb)
	return Result{Cursor: document.Cursor{Node: label, Offset: 0}, Item: cb}, nil
}

// SlashCommand runs a slash menu command at the caret, consuming the "/".
type SlashCommand struct {
	Command string
	Now     time.Time
}

func (op SlashCommand) apply(d *document.Document, c document.Cursor) (Result, error) {
	t, err := caretText(d, c)
	if err != nil {
		return Result{}, err
	}
	idx := strings.LastIndex(t.Text[:c.Offset], "/")
	if idx < 0 {
		return Result{}, ErrNoAnchor
	}
	inCheckbox := d.Ancestor(t.ID, document.KindCheckbox) != document.None

	var (
		node   document.NodeID
		cursor document.Cursor
		spacer = document.None
		item   = document.None
	)
	switch op.Command {
	case menu.CommandTodo:
		if inCheckbox {
			return Result{}, ErrNotApplicable
		}
		var label document.NodeID
		node, label = newCheckbox(d, "")
		item = node
		cursor = document.Cursor{Node: label, Offset: 0}
	case menu.CommandHeading:
		if inCheckbox {
			return Result{}, ErrNotApplicable
		}
		node = d.NewNode(document.Node{Kind: document.KindHeading, Level: 2})
		text := d.NewText(document.NBSP)
		d.Append(node, text)
		cursor = document.Cursor{Node: text, Offset: 0}
	case menu.CommandDate:
		now := op.Now
		if now.IsZero() {
			now = time.Now()
		}
		node = d.NewNode(document.Node{
			Kind:  document.KindDateBadge,
			Stamp: datetime.Millis(now),
			Text:  datetime.DayText(now),
		})
		spacer = d.NewText(document.NBSP)
		cursor = document.Cursor{Node: spacer, Offset: len(document.NBSP)}
	default:
		return Result{}, fmt.Errorf("%w: unknown command %q", ErrNotApplicable, op.Command)
	}

	t.Text = t.Text[:idx] + t.Text[idx+1:]
	d.InsertAfter(t.ID, node)
	if spacer != document.None {
		d.InsertAfter(node, spacer)
	}
	if t.Text == "" {
		d.Remove(t.ID)
	}
	if item != document.None {
		keepOpen(d, item)
	}
	return Result{Cursor: cursor, Item: item}, nil
}

// InsertWikiLink replaces the "[[query" run before the caret with a link to a
// note. The label is a snapshot of the title at insertion time.
type InsertWikiLink struct {
	NoteID string
	Title  string
}

func (op InsertWikiLink) apply(d *document.Document, c document.Cursor) (Result, error) {
	t, err := caretText(d, c)
	if err != nil {
		return Result{}, err
	}
	idx := strings.LastIndex(t.Text[:c.Offset], "[[")
	if idx < 0 {
		return Result{}, ErrNoAnchor
	}
	title := op.Title
	if title == "" {
		title = menu.UntitledLabel
	}

	before, after := t.Text[:idx], t.Text[c.Offset:]
	link := d.NewNode(document.Node{Kind: document.KindWikiLink, Target: op.NoteID, Text: "[[" + title + "]]"})
	spacer := d.NewText(document.NBSP + after)

	var with []document.NodeID
	if before != "" {
		with = append(with, d.NewText(before))
	}
	with = append(with, link, spacer)
	d.Replace(t.ID, with...)
	return Result{Cursor: document.Cursor{Node: spacer, Offset: len(document.NBSP)}, Item: document.None}, nil
}

// HighlightTag wraps the #tag at Start..End of the caret's text run in a tag
// highlight. With a zero range the tag ending at the caret is used.
type HighlightTag struct {
	Start, End int
}

func (op HighlightTag) apply(d *document.Document, c document.Cursor) (Result, error) {
	t, err := caretText(d, c)
	if err != nil {
		return Result{}, err
	}
	start, end := op.Start, op.End
	if start == 0 && end == 0 {
		m, ok := trigger.Tag(t.Text, c.Offset)
		if !ok {
			return Result{}, ErrNoAnchor
		}
		start, end = m.Start, m.End
	}
	if start < 0 || end > len(t.Text) || start >= end || c.Offset < end ||
		!tagLiteralRe.MatchString(t.Text[start:end]) {
		return Result{}, ErrNoAnchor
	}

	before, tag, after := t.Text[:start], t.Text[start:end], t.Text[end:]
	hl := d.NewNode(document.Node{Kind: document.KindTagHighlight})
	d.Append(hl, d.NewText(tag))
	rest := d.NewText(after)

	var with []document.NodeID
	if before != "" {
		with = append(with, d.NewText(before))
	}
	with = append(with, hl, rest)
	d.Replace(t.ID, with...)
	return Result{Cursor: document.Cursor{Node: rest, Offset: c.Offset - end}, Item: document.None}, nil
}

// AttachDue moves a date keyword out of a checkbox label into a due badge.
type AttachDue struct {
	Now time.Time
}

func (op AttachDue) apply(d *document.Document, c document.Cursor) (Result, error) {
	return attachBadge(d, c, document.KindDueBadge, op.Now, trigger.Date,
		datetime.ResolveDate, datetime.DueText)
}

// AttachTime moves a time literal out of a checkbox label into a time badge.
// Callers arm a reminder for Result.At.
type AttachTime struct {
	Now time.Time
}

func (op AttachTime) apply(d *document.Document, c document.Cursor) (Result, error) {
	return attachBadge(d, c, document.KindTimeBadge, op.Now, trigger.Time,
		datetime.ResolveTime, datetime.TimeText)
}

func attachBadge(
	d *document.Document,
	c document.Cursor,
	kind document.Kind,
	now time.Time,
	match func(string, int) (trigger.Match, bool),
	resolve func(string, time.Time) (time.Time, error),
	display func(time.Time) string,
) (Result, error) {
	t, err := caretText(d, c)
	if err != nil {
		return Result{}, err
	}
	span := d.Node(t.Parent)
	if span.Kind != document.KindCheckboxText {
		return Result{}, ErrNotApplicable
	}
	cb := span.Parent
	if d.Child(cb, kind) != document.None {
		return Result{}, ErrNotApplicable
	}
	m, ok := match(t.Text, c.Offset)
	if !ok {
		return Result{}, ErrNoAnchor
	}
	if now.IsZero() {
		now = time.Now()
	}
	at, err := resolve(m.Payload, now)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrNotApplicable, err)
	}

	raw := t.Text[:m.Start] + t.Text[m.End:]
	caret := c.Offset
	switch {
	case caret >= m.End:
		caret -= m.End - m.Start
	case caret > m.Start:
		caret = m.Start
	}
	text, caret := collapseSpace(raw, caret)
	if text == "" {
		text, caret = document.NBSP, 0
	}
	t.Text = text

	badge := d.NewNode(document.Node{Kind: kind, Stamp: datetime.Millis(at), Text: display(at)})
	if kind == document.KindDueBadge {
		d.InsertAfter(span.ID, badge)
	} else {
		d.Append(cb, badge)
	}
	return Result{
		Cursor: document.Cursor{Node: t.ID, Offset: caret},
		Item:   cb,
		At:     at,
		Label:  strings.TrimSpace(d.TextContent(span.ID)),
	}, nil
}

// collapseSpace replaces whitespace runs of two or more with one space and trims
// both ends, mapping caret into the result.
func collapseSpace(s string, caret int) (string, int) {
	var b strings.Builder
	mapped := -1
	for i := 0; i < len(s); {
		if mapped < 0 && i >= caret {
			mapped = b.Len()
		}
		r, w := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			b.WriteString(s[i : i+w])
			i += w
			continue
		}
		j, runes := i, 0
		for j < len(s) {
			r2, w2 := utf8.DecodeRuneInString(s[j:])
			if !unicode.IsSpace(r2) {
				break
			}
			j += w2
			runes++
		}
		if runes >= 2 {
			b.WriteByte(' ')
		} else {
			b.WriteString(s[i:j])
		}
		if mapped < 0 && caret < j {
			mapped = b.Len()
		}
		i = j
	}
	if mapped < 0 {
		mapped = b.Len()
	}

	out := b.String()
	left := strings.TrimLeftFunc(out, unicode.IsSpace)
	lead := len(out) - len(left)
	res := strings.TrimRightFunc(left, unicode.IsSpace)
	return res, min(max(mapped-lead, 0), len(res))
}
