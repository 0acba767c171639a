package document

import "unicode/utf8"

// Cursor is the caret position inside a document.
//
// When Node is a text run, Offset is a byte offset into its Text and falls on a
// rune boundary. When Node is a container, Offset is a child index (the caret
// sits before that child).
type Cursor struct {
	Node   NodeID `json:"node"`
	Offset int    `json:"offset"`
}

// Valid reports whether c addresses a live position in d.
func (d *Document) Valid(c Cursor) bool {
	n := d.Node(c.Node)
	if n == nil || c.Offset < 0 {
		return false
	}
	if n.Kind == KindText {
		return onRune(n.Text, c.Offset)
	}
	return n.Kind.IsContainer() && c.Offset <= len(n.Children)
}

// InText reports whether c sits inside a text run.
func (d *Document) InText(c Cursor) bool {
	n := d.Node(c.Node)
	return n != nil && n.Kind == KindText && onRune(n.Text, c.Offset)
}

// Snap moves a text offset that falls inside a multi-byte rune back to the
// start of that rune. Other cursors are returned unchanged.
func (d *Document) Snap(c Cursor) Cursor {
	n := d.Node(c.Node)
	if n == nil || n.Kind != KindText || c.Offset <= 0 || c.Offset >= len(n.Text) {
		return c
	}
	for c.Offset > 0 && !utf8.RuneStart(n.Text[c.Offset]) {
		c.Offset--
	}
	return c
}

func onRune(s string, offset int) bool {
	if offset < 0 || offset > len(s) {
		return false
	}
	return offset == len(s) || utf8.RuneStart(s[offset])
}

// End returns the caret position at the end of the last editable text run, or
// after the last top-level child when the document holds no text.
func (d *Document) End() Cursor {
	last := None
	d.Walk(d.root, func(n *Node) bool {
		switch n.Kind {
		case KindWikiLink, KindCompletedHeading:
			return false
		case KindCheckbox:
			if n.Checked {
				return false
			}
		case KindText:
			last = n.ID
		}
		return true
	})
	if last != None {
		return Cursor{Node: last, Offset: len(d.Node(last).Text)}
	}
	return Cursor{Node: d.root, Offset: len(d.Node(d.root).Children)}
}
