// Package document models a note's content as an ordered tree of marked nodes.
//
// Nodes live in an arena owned by Document and are addressed by stable NodeIDs,
// so references held by a cursor or an editor survive structural rewrites such as
// moving a checkbox into the completed section.
package document

import "strings"

// NodeID addresses a node inside a Document arena.
type NodeID int32

// None is the zero reference; it never addresses a live node.
const None NodeID = -1

// NBSP is the placeholder character used for empty editable spans.
const NBSP = "\u00a0"

// Kind tags the variant carried by a Node.
type Kind uint8

// Node kinds.
const (
	KindRoot Kind = iota
	KindBlock
	KindBreak
	KindText
	KindHeading
	KindCheckbox
	KindCheckboxText
	KindTagHighlight
	KindWikiLink
	KindDueBadge
	KindTimeBadge
	KindDateBadge
	KindCompletedDivider
	KindCompletedHeading
)

var kindNames = [...]string{
	KindRoot:             "root",
	KindBlock:            "block",
	KindBreak:            "break",
	KindText:             "text",
	KindHeading:          "heading",
	KindCheckbox:         "checkbox",
	KindCheckboxText:     "checkbox-text",
	KindTagHighlight:     "tag-highlight",
	KindWikiLink:         "wiki-link",
	KindDueBadge:         "due-badge",
	KindTimeBadge:        "time-badge",
	KindDateBadge:        "date-badge",
	KindCompletedDivider: "completed-divider",
	KindCompletedHeading: "completed-heading",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsContainer reports whether nodes of this kind may own children.
func (k Kind) IsContainer() bool {
	switch k {
	case KindRoot, KindBlock, KindHeading, KindCheckbox, KindCheckboxText, KindTagHighlight:
		return true
	}
	return false
}

// IsBadge reports whether k is one of the non-editable timestamp leaves.
func (k Kind) IsBadge() bool {
	return k == KindDueBadge || k == KindTimeBadge || k == KindDateBadge
}

// Node is one element of the document tree.
//
// Only the fields relevant to Kind are meaningful: Text for text runs and leaf
// labels, Level for headings, Checked for checkboxes, Target for wiki-links and
// Stamp (epoch milliseconds) for badges.
type Node struct {
	ID       NodeID
	Kind     Kind
	Text     string
	Level    int
	Checked  bool
	Target   string
	Stamp    int64
	Parent   NodeID
	Children []NodeID
}

// Document is an arena-backed tree rooted at a KindRoot node.
type Document struct {
	nodes []*Node
	root  NodeID
}

// New returns an empty document.
func New() *Document {
	d := &Document{}
	d.root = d.NewNode(Node{Kind: KindRoot})
	return d
}

// Root returns the id of the root node.
func (d *Document) Root() NodeID { return d.root }

// Node returns the live node with the given id, or nil.
func (d *Document) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(d.nodes) {
		return nil
	}
	return d.nodes[id]
}

// NewNode allocates a detached node and returns its id.
func (d *Document) NewNode(n Node) NodeID {
	id := NodeID(len(d.nodes))
	n.ID = id
	n.Parent = None
	n.Children = nil
	d.nodes = append(d.nodes, &n)
	return id
}

// NewText allocates a detached text run.
func (d *Document) NewText(s string) NodeID {
	return d.NewNode(Node{Kind: KindText, Text: s})
}

// Append attaches child as the last child of parent.
func (d *Document) Append(parent, child NodeID) {
	p := d.Node(parent)
	d.InsertAt(parent, len(p.Children), child)
}

// InsertAt attaches child at position index among parent's children.
// A child that is still attached elsewhere is detached first.
func (d *Document) InsertAt(parent NodeID, index int, child NodeID) {
	d.Detach(child)
	p := d.Node(parent)
	if index < 0 {
		index = 0
	}
	if index > len(p.Children) {
		index = len(p.Children)
	}
	p.Children = append(p.Children, None)
	copy(p.Children[index+1:], p.Children[index:])
	p.Children[index] = child
	d.Node(child).Parent = parent
}

// InsertBefore attaches child immediately before ref.
func (d *Document) InsertBefore(ref, child NodeID) {
	d.Detach(child)
	parent := d.Node(ref).Parent
	d.InsertAt(parent, d.IndexOf(ref), child)
}

// InsertAfter attaches child immediately after ref.
func (d *Document) InsertAfter(ref, child NodeID) {
	d.Detach(child)
	parent := d.Node(ref).Parent
	d.InsertAt(parent, d.IndexOf(ref)+1, child)
}

// Detach unlinks id from its parent. The node stays allocated.
func (d *Document) Detach(id NodeID) {
	n := d.Node(id)
	if n == nil || n.Parent == None {
		return
	}
	p := d.Node(n.Parent)
	for i, c := range p.Children {
		if c == id {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	n.Parent = None
}

// Remove detaches id and frees it together with its subtree.
func (d *Document) Remove(id NodeID) {
	n := d.Node(id)
	if n == nil {
		return
	}
	d.Detach(id)
	d.free(id)
}

func (d *Document) free(id NodeID) {
	n := d.Node(id)
	if n == nil {
		return
	}
	for _, c := range n.Children {
		d.free(c)
	}
	d.nodes[id] = nil
}

// Replace puts with in the position occupied by old and frees old.
func (d *Document) Replace(old NodeID, with ...NodeID) {
	n := d.Node(old)
	parent, idx := n.Parent, d.IndexOf(old)
	d.Remove(old)
	for i, w := range with {
		d.InsertAt(parent, idx+i, w)
	}
}

// IndexOf returns the position of id among its siblings, or -1 when detached.
func (d *Document) IndexOf(id NodeID) int {
	n := d.Node(id)
	if n == nil || n.Parent == None {
		return -1
	}
	for i, c := range d.Node(n.Parent).Children {
		if c == id {
			return i
		}
	}
	return -1
}

// Walk visits the subtree rooted at id in document order. Returning false from fn
// skips the children of the visited node.
func (d *Document) Walk(id NodeID, fn func(n *Node) bool) {
	n := d.Node(id)
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		d.Walk(c, fn)
	}
}

// Find returns every node of kind k in document order.
func (d *Document) Find(k Kind) []NodeID {
	var out []NodeID
	d.Walk(d.root, func(n *Node) bool {
		if n.Kind == k {
			out = append(out, n.ID)
		}
		return true
	})
	return out
}

// First returns the first node of kind k in document order, or None.
func (d *Document) First(k Kind) NodeID {
	found := None
	d.Walk(d.root, func(n *Node) bool {
		if found != None {
			return false
		}
		if n.Kind == k {
			found = n.ID
			return false
		}
		return true
	})
	return found
}

// Ancestor returns the nearest ancestor of id (including id itself) of kind k, or None.
func (d *Document) Ancestor(id NodeID, k Kind) NodeID {
	for n := d.Node(id); n != nil; n = d.Node(n.Parent) {
		if n.Kind == k {
			return n.ID
		}
	}
	return None
}

// Child returns the first direct child of id with kind k, or None.
func (d *Document) Child(id NodeID, k Kind) NodeID {
	n := d.Node(id)
	if n == nil {
		return None
	}
	for _, c := range n.Children {
		if d.Node(c).Kind == k {
			return c
		}
	}
	return None
}

// TextContent concatenates the text carried by id and its descendants.
func (d *Document) TextContent(id NodeID) string {
	var b strings.Builder
	d.Walk(id, func(n *Node) bool {
		switch n.Kind {
		case KindText, KindWikiLink, KindDueBadge, KindTimeBadge, KindDateBadge, KindCompletedHeading:
			b.WriteString(n.Text)
		}
		return true
	})
	return b.String()
}

// PlainText projects the whole document to text, one line per block-level node.
func (d *Document) PlainText() string {
	var lines []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
		}
	}
	var visit func(id NodeID)
	visit = func(id NodeID) {
		n := d.Node(id)
		switch n.Kind {
		case KindBlock, KindHeading, KindCheckbox, KindCompletedDivider, KindCompletedHeading:
			flush()
			cur.WriteString(d.TextContent(id))
			flush()
		case KindBreak:
			flush()
		case KindRoot:
			for _, c := range n.Children {
				visit(c)
			}
		default:
			cur.WriteString(d.TextContent(id))
		}
	}
	visit(d.root)
	flush()
	return strings.Join(lines, "\n")
}

// Len returns the number of live nodes, the root included.
func (d *Document) Len() int {
	count := 0
	for _, n := range d.nodes {
		if n != nil {
			count++
		}
	}
	return count
}
