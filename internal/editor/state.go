package editor

import (
	"github.com/starford/zap/internal/document"
	"github.com/starford/zap/internal/menu"
)

// MenuState is a snapshot of an open suggestion menu.
type MenuState struct {
	Anchor menu.Point  `json:"anchor"`
	Query  string      `json:"query"`
	Items  []menu.Item `json:"items"`
	Active int         `json:"active"`
}

// NodeView is one node of the document as exposed to clients, which address
// clicks and carets by ID.
type NodeView struct {
	ID      document.NodeID `json:"id"`
	Parent  document.NodeID `json:"parent"`
	Kind    string          `json:"kind"`
	Text    string          `json:"text,omitempty"`
	Checked bool            `json:"checked,omitempty"`
	Target  string          `json:"target,omitempty"`
	Stamp   int64           `json:"stamp,omitempty"`
}

// State is a snapshot of an editor for rendering by a client.
type State struct {
	NoteID  string          `json:"noteId"`
	Content string          `json:"content"`
	Cursor  document.Cursor `json:"cursor"`
	Nodes   []NodeView      `json:"nodes"`
	Slash   *MenuState      `json:"slash,omitempty"`
	Wiki    *MenuState      `json:"wiki,omitempty"`
}

// State returns the current snapshot.
func (e *Editor) State() State {
	return State{
		NoteID:  e.noteID,
		Content: e.doc.Serialize(),
		Cursor:  e.cursor,
		Nodes:   nodeViews(e.doc),
		Slash:   menuState(e.slash),
		Wiki:    menuState(e.wiki),
	}
}

func menuState(m *menu.Menu) *MenuState {
	if !m.IsOpen() {
		return nil
	}
	items := m.Items()
	if items == nil {
		items = []menu.Item{}
	}
	return &MenuState{Anchor: m.Anchor(), Query: m.Query(), Items: items, Active: m.Active()}
}

func nodeViews(d *document.Document) []NodeView {
	var out []NodeView
	d.Walk(d.Root(), func(n *document.Node) bool {
		if n.Kind == document.KindRoot {
			return true
		}
		out = append(out, NodeView{
			ID:      n.ID,
			Parent:  n.Parent,
			Kind:    n.Kind.String(),
			Text:    n.Text,
			Checked: n.Checked,
			Target:  n.Target,
			Stamp:   n.Stamp,
		})
		return true
	})
	return out
}
