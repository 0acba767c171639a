package editor

import "github.com/starford/zap/internal/document"

// SetChecked moves a checkbox item between the open region and the trailing
// completed section, creating or removing the section markers as needed.
type SetChecked struct {
	Item    document.NodeID
	Checked bool
}

func (op SetChecked) apply(d *document.Document, c document.Cursor) (Result, error) {
	n := d.Node(op.Item)
	if n == nil || n.Kind != document.KindCheckbox {
		return Result{}, ErrNotApplicable
	}
	if n.Checked == op.Checked {
		return Result{}, ErrNotApplicable
	}

	if op.Checked {
		complete(d, n)
	} else {
		reopen(d, n)
	}
	return Result{Cursor: c, Item: n.ID}, nil
}

func complete(d *document.Document, n *document.Node) {
	n.Checked = true
	root := d.Root()
	divider := d.First(document.KindCompletedDivider)
	if divider == document.None {
		divider = d.NewNode(document.Node{Kind: document.KindCompletedDivider})
		d.Append(root, divider)
	}
	if d.First(document.KindCompletedHeading) == document.None {
		heading := d.NewNode(document.Node{Kind: document.KindCompletedHeading, Text: document.CompletedLabel})
		d.InsertAfter(divider, heading)
	}
	d.Append(root, n.ID)
}

func reopen(d *document.Document, n *document.Node) {
	n.Checked = false
	divider := d.First(document.KindCompletedDivider)
	if divider != document.None {
		d.InsertBefore(divider, n.ID)
	}
	if CompletedCount(d) > 0 {
		return
	}
	if h := d.First(document.KindCompletedHeading); h != document.None {
		d.Remove(h)
	}
	if divider != document.None {
		d.Remove(divider)
	}
}

// CompletedCount returns the number of checked items in d.
func CompletedCount(d *document.Document) int {
	count := 0
	for _, id := range d.Find(document.KindCheckbox) {
		if d.Node(id).Checked {
			count++
		}
	}
	return count
}

// sectionDivider returns the completed divider when top is a completed item
// or one of the section markers, and document.None otherwise.
func sectionDivider(d *document.Document, top document.NodeID) document.NodeID {
	n := d.Node(top)
	if n == nil {
		return document.None
	}
	switch {
	case n.Kind == document.KindCompletedDivider, n.Kind == document.KindCompletedHeading,
		n.Kind == document.KindCheckbox && n.Checked:
		return d.First(document.KindCompletedDivider)
	}
	return document.None
}

// keepOpen moves the top-level node holding id in front of the completed
// section when it sits after the divider.
func keepOpen(d *document.Document, id document.NodeID) {
	divider := d.First(document.KindCompletedDivider)
	if divider == document.None || d.Node(divider).Parent != d.Root() {
		return
	}
	top := topLevel(d, id)
	if top == document.None || top == divider {
		return
	}
	if d.IndexOf(top) > d.IndexOf(divider) {
		d.InsertBefore(divider, top)
	}
}
