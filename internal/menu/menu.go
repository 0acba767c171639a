// Package menu implements the slash-command and wiki-link suggestion menus.
//
// A Menu is plain state owned by one editor instance: it is not safe for
// concurrent use.
package menu

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// Kind distinguishes the two menus.
type Kind uint8

const (
	KindSlash Kind = iota + 1
	KindWiki
)

func (k Kind) String() string {
	switch k {
	case KindSlash:
		return "slash"
	case KindWiki:
		return "wiki"
	}
	return "unknown"
}

// Slash command identifiers.
const (
	CommandTodo    = "todo"
	CommandHeading = "heading"
	CommandDate    = "date"
)

// UntitledLabel is shown for notes without a title.
const UntitledLabel = "Untitled"

// Point is a screen anchor for the popup.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Item is one selectable entry. For slash menus ID is the command id; for wiki
// menus it is the note id.
type Item struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

// Commands returns the fixed slash command set in display order.
func Commands() []Item {
	return []Item{
		{ID: CommandTodo, Label: "To-do", Description: "Add a to-do checkbox"},
		{ID: CommandHeading, Label: "Heading", Description: "Insert a heading"},
		{ID: CommandDate, Label: "Date", Description: "Insert today's date"},
	}
}

// Source supplies wiki-link candidates each time the query changes.
type Source func() []Item

// Menu is a filtered, keyboard-navigable list of items.
type Menu struct {
	kind   Kind
	source Source

	open   bool
	anchor Point
	query  string
	items  []Item
	active int
}

// NewSlash returns a closed slash-command menu.
func NewSlash() *Menu {
	return &Menu{kind: KindSlash, source: Commands}
}

// NewWiki returns a closed wiki-link menu drawing candidates from src.
func NewWiki(src Source) *Menu {
	if src == nil {
		src = func() []Item { return nil }
	}
	return &Menu{kind: KindWiki, source: src}
}

// Kind reports which menu this is.
func (m *Menu) Kind() Kind { return m.kind }

// IsOpen reports whether the menu is showing.
func (m *Menu) IsOpen() bool { return m.open }

// Anchor returns the position the menu was opened at.
func (m *Menu) Anchor() Point { return m.anchor }

// Query returns the current filter.
func (m *Menu) Query() string { return m.query }

// Items returns the filtered list.
func (m *Menu) Items() []Item { return m.items }

// Active returns the highlighted index, or -1 when the list is empty.
func (m *Menu) Active() int {
	if len(m.items) == 0 {
		return -1
	}
	return m.active
}

// Open shows the menu at anchor with an empty query.
func (m *Menu) Open(anchor Point) {
	m.open = true
	m.anchor = anchor
	m.query = ""
	m.items = nil
	m.active = 0
	m.refresh()
}

// SetQuery recomputes the item list for q. The active index resets to 0 when
// the list changes.
func (m *Menu) SetQuery(q string) {
	m.query = q
	m.refresh()
}

// SetActive highlights index i, clamped to the item range.
func (m *Menu) SetActive(i int) {
	if len(m.items) == 0 {
		m.active = 0
		return
	}
	m.active = min(max(i, 0), len(m.items)-1)
}

// MoveActive shifts the highlight by delta. The slash menu wraps around; the
// wiki menu clamps at both ends.
func (m *Menu) MoveActive(delta int) {
	n := len(m.items)
	if n == 0 {
		return
	}
	if m.kind == KindSlash {
		m.active = ((m.active+delta)%n + n) % n
		return
	}
	m.SetActive(m.active + delta)
}

// Confirm returns the highlighted item and closes the menu. It reports false
// and leaves the menu open when there is nothing to confirm.
func (m *Menu) Confirm() (Item, bool) {
	if !m.open || len(m.items) == 0 {
		return Item{}, false
	}
	it := m.items[m.active]
	m.Close()
	return it, true
}

// Close hides the menu and clears its query.
func (m *Menu) Close() {
	m.open = false
	m.query = ""
	m.items = nil
	m.active = 0
}

func (m *Menu) refresh() {
	next := filter(m.kind, m.source(), m.query)
	if !sameItems(next, m.items) {
		m.active = 0
	}
	m.items = next
}

func filter(kind Kind, all []Item, query string) []Item {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Item, 0, len(all))
	for _, it := range all {
		if kind == KindWiki && it.Label == "" {
			it.Label = UntitledLabel
		}
		if q == "" || strings.Contains(strings.ToLower(it.Label), q) {
			out = append(out, it)
		}
	}
	if kind == KindWiki {
		slices.SortStableFunc(out, func(a, b Item) int {
			return cmp.Compare(b.UpdatedAt.UnixNano(), a.UpdatedAt.UnixNano())
		})
	}
	return out
}

func sameItems(a, b []Item) bool {
	return slices.EqualFunc(a, b, func(x, y Item) bool { return x.ID == y.ID })
}
