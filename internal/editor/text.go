package editor

import (
	"unicode/utf8"

	"github.com/starford/zap/internal/document"
)

// insertText types s at the caret. It reports whether the document changed.
func (e *Editor) insertText(s string) bool {
	d, c := e.doc, e.cursor
	n := d.Node(c.Node)
	if n == nil {
		return false
	}

	if n.Kind == document.KindText {
		if p := d.Node(n.Parent); p != nil && p.Kind == document.KindCheckboxText && n.Text == document.NBSP {
			// Typing into an empty label replaces its placeholder.
			n.Text = ""
			c.Offset = 0
		}
		n.Text = n.Text[:c.Offset] + s + n.Text[c.Offset:]
		e.cursor = document.Cursor{Node: n.ID, Offset: c.Offset + len(s)}
		e.dirty = true
		return true
	}

	if !n.Kind.IsContainer() || n.Kind == document.KindCheckbox {
		return false
	}
	if c.Offset > 0 {
		if prev := d.Node(n.Children[c.Offset-1]); prev.Kind == document.KindText {
			prev.Text += s
			e.cursor = document.Cursor{Node: prev.ID, Offset: len(prev.Text)}
			e.dirty = true
			return true
		}
	}
	t := d.NewText(s)
	d.InsertAt(n.ID, c.Offset, t)
	e.cursor = document.Cursor{Node: t, Offset: len(s)}
	e.dirty = true
	return true
}

// deleteBackward removes the rune before the caret, or the non-text leaf just
// before it.
func (e *Editor) deleteBackward() bool {
	d, c := e.doc, e.cursor
	n := d.Node(c.Node)
	if n == nil {
		return false
	}

	if n.Kind == document.KindText {
		if c.Offset > 0 {
			_, w := utf8.DecodeLastRuneInString(n.Text[:c.Offset])
			n.Text = n.Text[:c.Offset-w] + n.Text[c.Offset:]
			e.cursor.Offset -= w
			e.dirty = true
			return true
		}
		idx := d.IndexOf(n.ID)
		if idx <= 0 {
			return false
		}
		return e.removeLeaf(d.Node(d.Node(n.Parent).Children[idx-1]))
	}

	if c.Offset == 0 || !n.Kind.IsContainer() {
		return false
	}
	if e.removeLeaf(d.Node(n.Children[c.Offset-1])) {
		e.cursor.Offset--
		return true
	}
	return false
}

func (e *Editor) removeLeaf(n *document.Node) bool {
	switch n.Kind {
	case document.KindWikiLink, document.KindBreak, document.KindDateBadge:
		e.doc.Remove(n.ID)
		e.dirty = true
		return true
	}
	return false
}

// splitLine breaks the line at the caret into a new block after the caret's
// top-level node, or just before the completed section when the caret is in it.
func (e *Editor) splitLine() {
	d, c := e.doc, e.cursor
	n := d.Node(c.Node)
	if n == nil {
		return
	}
	top := topLevel(d, n.ID)
	if top == document.None {
		top = d.Root()
	}

	block := d.NewNode(document.Node{Kind: document.KindBlock})
	tail := ""
	if n.Kind == document.KindText && d.Ancestor(n.ID, document.KindCheckbox) == document.None {
		tail = n.Text[c.Offset:]
		n.Text = n.Text[:c.Offset]
	}
	if tail != "" {
		t := d.NewText(tail)
		d.Append(block, t)
		e.cursor = document.Cursor{Node: t, Offset: 0}
	} else {
		d.Append(block, d.NewNode(document.Node{Kind: document.KindBreak}))
		e.cursor = document.Cursor{Node: block, Offset: 0}
	}

	switch divider := sectionDivider(d, top); {
	case top == d.Root():
		d.InsertAt(top, c.Offset, block)
	case divider != document.None:
		// New lines never open inside the completed section.
		d.InsertBefore(divider, block)
	default:
		d.InsertAfter(top, block)
	}
	e.dirty = true
}

// topLevel returns the ancestor of id that is a direct child of the root.
func topLevel(d *document.Document, id document.NodeID) document.NodeID {
	root := d.Root()
	for n := d.Node(id); n != nil; n = d.Node(n.Parent) {
		if n.Parent == root {
			return n.ID
		}
	}
	return document.None
}
