package document

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Class names and attributes that mark structural nodes in the serialized form.
const (
	ClassCheckboxItem     = "checkbox-item"
	ClassCheckboxInput    = "checkbox-input"
	ClassCheckboxText     = "checkbox-text"
	ClassChecked          = "checked"
	ClassTagHighlight     = "tag-highlight"
	ClassWikiLink         = "wiki-link"
	ClassDueBadge         = "due-date-badge"
	ClassTimeBadge        = "time-badge"
	ClassDateBadge        = "date-badge"
	ClassCompletedDivider = "completed-divider"
	ClassCompletedHeading = "completed-heading"

	AttrNoteID = "data-note-id"
	AttrDue    = "data-due"
	AttrTime   = "data-time"
	AttrDate   = "data-date"

	// CompletedLabel is the text of the completed section heading.
	CompletedLabel = "Completed"

	checkedStyle = "text-decoration: line-through; color: #9ca3af"
)

// Parse builds a document from its serialized markup. Elements outside the known
// set are flattened into their children.
func Parse(markup string) (*Document, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("document: parse: %w", err)
	}
	d := New()
	for _, n := range nodes {
		d.build(d.root, n)
	}
	return d, nil
}

// MustParse is like Parse but panics on error. Intended for tests and templates.
func MustParse(markup string) *Document {
	d, err := Parse(markup)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Document) build(parent NodeID, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if n.Data != "" {
			d.Append(parent, d.NewText(n.Data))
		}
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.Div, atom.P:
		id := d.NewNode(Node{Kind: KindBlock})
		d.Append(parent, id)
		d.buildChildren(id, n)
	case atom.Br:
		d.Append(parent, d.NewNode(Node{Kind: KindBreak}))
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		if hasClass(n, ClassCompletedHeading) {
			d.Append(parent, d.NewNode(Node{Kind: KindCompletedHeading, Text: CompletedLabel}))
			return
		}
		id := d.NewNode(Node{Kind: KindHeading, Level: int(n.Data[1] - '0')})
		d.Append(parent, id)
		d.buildChildren(id, n)
	case atom.Hr:
		if hasClass(n, ClassCompletedDivider) {
			d.Append(parent, d.NewNode(Node{Kind: KindCompletedDivider}))
		}
	case atom.Label:
		if hasClass(n, ClassCheckboxItem) {
			d.buildCheckbox(parent, n)
			return
		}
		d.buildChildren(parent, n)
	case atom.Input:
	case atom.Span:
		switch {
		case hasClass(n, ClassTagHighlight):
			id := d.NewNode(Node{Kind: KindTagHighlight})
			d.Append(parent, id)
			d.Append(id, d.NewText(textOf(n)))
		case hasClass(n, ClassWikiLink):
			d.Append(parent, d.NewNode(Node{Kind: KindWikiLink, Target: attr(n, AttrNoteID), Text: textOf(n)}))
		case hasClass(n, ClassDueBadge):
			d.Append(parent, d.badge(KindDueBadge, n, AttrDue))
		case hasClass(n, ClassTimeBadge):
			d.Append(parent, d.badge(KindTimeBadge, n, AttrTime))
		case hasClass(n, ClassDateBadge):
			d.Append(parent, d.badge(KindDateBadge, n, AttrDate))
		default:
			d.buildChildren(parent, n)
		}
	default:
		d.buildChildren(parent, n)
	}
}

func (d *Document) buildChildren(parent NodeID, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.build(parent, c)
	}
}

func (d *Document) buildCheckbox(parent NodeID, n *html.Node) {
	cb := d.NewNode(Node{Kind: KindCheckbox, Checked: hasClass(n, ClassChecked)})
	d.Append(parent, cb)
	label := d.NewNode(Node{Kind: KindCheckboxText})
	d.Append(cb, label)

	due, tm := None, None
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch {
		case c.DataAtom == atom.Input:
			if hasAttr(c, "checked") {
				d.Node(cb).Checked = true
			}
		case hasClass(c, ClassCheckboxText):
			d.buildChildren(label, c)
		case hasClass(c, ClassDueBadge) && due == None:
			due = d.badge(KindDueBadge, c, AttrDue)
		case hasClass(c, ClassTimeBadge) && tm == None:
			tm = d.badge(KindTimeBadge, c, AttrTime)
		}
	}
	if len(d.Node(label).Children) == 0 {
		d.Append(label, d.NewText(NBSP))
	}
	if due != None {
		d.Append(cb, due)
	}
	if tm != None {
		d.Append(cb, tm)
	}
}

func (d *Document) badge(k Kind, n *html.Node, key string) NodeID {
	stamp, _ := strconv.ParseInt(attr(n, key), 10, 64)
	return d.NewNode(Node{Kind: k, Stamp: stamp, Text: textOf(n)})
}

// Serialize renders the document to its canonical markup.
func (d *Document) Serialize() string {
	var b strings.Builder
	for _, c := range d.Node(d.root).Children {
		if h := d.toHTML(c); h != nil {
			_ = html.Render(&b, h)
		}
	}
	return b.String()
}

// String implements fmt.Stringer.
func (d *Document) String() string { return d.Serialize() }

func (d *Document) toHTML(id NodeID) *html.Node {
	n := d.Node(id)
	switch n.Kind {
	case KindText:
		if n.Text == "" {
			return nil
		}
		return &html.Node{Type: html.TextNode, Data: n.Text}
	case KindBlock:
		return d.element(atom.Div, nil, n.Children)
	case KindBreak:
		return element(atom.Br, nil)
	case KindHeading:
		level := min(max(n.Level, 1), 6)
		return d.element(atom.Lookup([]byte("h"+strconv.Itoa(level))), nil, n.Children)
	case KindCheckbox:
		return d.checkboxHTML(n)
	case KindCheckboxText:
		attrs := []html.Attribute{{Key: "class", Val: ClassCheckboxText}, {Key: "contenteditable", Val: "true"}}
		if p := d.Node(n.Parent); p != nil && p.Checked {
			attrs = append(attrs, html.Attribute{Key: "style", Val: checkedStyle})
		}
		return d.element(atom.Span, attrs, n.Children)
	case KindTagHighlight:
		return d.element(atom.Span, []html.Attribute{{Key: "class", Val: ClassTagHighlight}}, n.Children)
	case KindWikiLink:
		return leaf(atom.Span, n.Text,
			html.Attribute{Key: "class", Val: ClassWikiLink},
			html.Attribute{Key: "contenteditable", Val: "false"},
			html.Attribute{Key: AttrNoteID, Val: n.Target})
	case KindDueBadge:
		return badgeHTML(ClassDueBadge, AttrDue, n)
	case KindTimeBadge:
		return badgeHTML(ClassTimeBadge, AttrTime, n)
	case KindDateBadge:
		return badgeHTML(ClassDateBadge, AttrDate, n)
	case KindCompletedDivider:
		return element(atom.Hr, []html.Attribute{{Key: "class", Val: ClassCompletedDivider}})
	case KindCompletedHeading:
		return leaf(atom.H3, CompletedLabel,
			html.Attribute{Key: "class", Val: ClassCompletedHeading},
			html.Attribute{Key: "contenteditable", Val: "false"})
	}
	return nil
}

func (d *Document) checkboxHTML(n *Node) *html.Node {
	class := ClassCheckboxItem
	if n.Checked {
		class += " " + ClassChecked
	}
	label := element(atom.Label, []html.Attribute{
		{Key: "class", Val: class},
		{Key: "contenteditable", Val: "false"},
	})
	input := element(atom.Input, []html.Attribute{
		{Key: "type", Val: "checkbox"},
		{Key: "class", Val: ClassCheckboxInput},
	})
	if n.Checked {
		input.Attr = append(input.Attr, html.Attribute{Key: "checked", Val: ""})
	}
	label.AppendChild(input)
	for _, c := range n.Children {
		if h := d.toHTML(c); h != nil {
			label.AppendChild(h)
		}
	}
	return label
}

func (d *Document) element(a atom.Atom, attrs []html.Attribute, children []NodeID) *html.Node {
	e := element(a, attrs)
	for _, c := range children {
		if h := d.toHTML(c); h != nil {
			e.AppendChild(h)
		}
	}
	return e
}

func element(a atom.Atom, attrs []html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func leaf(a atom.Atom, text string, attrs ...html.Attribute) *html.Node {
	e := element(a, attrs)
	if text != "" {
		e.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return e
}

func badgeHTML(class, key string, n *Node) *html.Node {
	return leaf(atom.Span, n.Text,
		html.Attribute{Key: "class", Val: class},
		html.Attribute{Key: "contenteditable", Val: "false"},
		html.Attribute{Key: key, Val: strconv.FormatInt(n.Stamp, 10)})
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	return slices.Contains(strings.Fields(attr(n, "class")), class)
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
