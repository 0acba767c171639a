package document

import (
	"strings"
	"testing"
)

const openItem = `<label class="checkbox-item" contenteditable="false">` +
	`<input type="checkbox" class="checkbox-input"/>` +
	`<span class="checkbox-text" contenteditable="true">buy milk</span>` +
	`<span class="due-date-badge" contenteditable="false" data-due="1771372800000">📅 Feb 18</span>` +
	`</label>`

func TestParse_CheckboxRoundTrip(t *testing.T) {
	d, err := Parse(openItem)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	first := d.Serialize()
	if first != openItem {
		t.Fatalf("serialize mismatch:\n got %q\nwant %q", first, openItem)
	}
	again, err := Parse(first)
	if err != nil {
		t.Fatalf("Parse again: %v", err)
	}
	if again.Serialize() != first {
		t.Errorf("round trip not stable: %q", again.Serialize())
	}
}

func TestParse_CheckboxStructure(t *testing.T) {
	d := MustParse(openItem)
	cbs := d.Find(KindCheckbox)
	if len(cbs) != 1 {
		t.Fatalf("checkboxes = %d, want 1", len(cbs))
	}
	cb := d.Node(cbs[0])
	if cb.Checked {
		t.Error("checkbox should be open")
	}
	if len(cb.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(cb.Children))
	}
	if d.Node(cb.Children[0]).Kind != KindCheckboxText {
		t.Errorf("first child = %s", d.Node(cb.Children[0]).Kind)
	}
	due := d.Node(cb.Children[1])
	if due.Kind != KindDueBadge || due.Stamp != 1771372800000 {
		t.Errorf("due badge = %+v", due)
	}
	if got := d.TextContent(cb.Children[0]); got != "buy milk" {
		t.Errorf("label = %q", got)
	}
}

func TestParse_CheckedFromInputAttribute(t *testing.T) {
	d := MustParse(`<label class="checkbox-item"><input type="checkbox" class="checkbox-input" checked><span class="checkbox-text">x</span></label>`)
	cb := d.Node(d.First(KindCheckbox))
	if !cb.Checked {
		t.Fatal("checked attribute should mark the item completed")
	}
	out := d.Serialize()
	if !strings.Contains(out, `class="checkbox-item checked"`) || !strings.Contains(out, "line-through") {
		t.Errorf("checked styling missing: %q", out)
	}
}

func TestParse_DuplicateBadgesCollapsed(t *testing.T) {
	d := MustParse(`<label class="checkbox-item"><span class="checkbox-text">a</span>` +
		`<span class="due-date-badge" data-due="1">📅 a</span>` +
		`<span class="due-date-badge" data-due="2">📅 b</span></label>`)
	if n := len(d.Find(KindDueBadge)); n != 1 {
		t.Errorf("due badges = %d, want 1", n)
	}
}

func TestParse_EmptyLabelGetsPlaceholder(t *testing.T) {
	d := MustParse(`<label class="checkbox-item"><input type="checkbox" class="checkbox-input"></label>`)
	label := d.First(KindCheckboxText)
	if got := d.TextContent(label); got != NBSP {
		t.Errorf("label = %q, want NBSP", got)
	}
}

func TestParse_FlattensUnknownElements(t *testing.T) {
	d := MustParse(`Click the <strong>+</strong> button`)
	if got := d.PlainText(); got != "Click the + button" {
		t.Errorf("plain text = %q", got)
	}
	if strings.Contains(d.Serialize(), "strong") {
		t.Error("unknown element should be flattened")
	}
}

func TestParse_MarkersAndLinks(t *testing.T) {
	src := `<div>see <span class="wiki-link" contenteditable="false" data-note-id="n1">[[Plan A]]</span> ` +
		`<span class="tag-highlight">#Work</span></div>` +
		`<hr class="completed-divider"/><h3 class="completed-heading" contenteditable="false">Completed</h3>`
	d := MustParse(src)
	if got := d.Serialize(); got != src {
		t.Errorf("serialize mismatch:\n got %q\nwant %q", got, src)
	}
	link := d.Node(d.First(KindWikiLink))
	if link.Target != "n1" || link.Text != "[[Plan A]]" {
		t.Errorf("wiki link = %+v", link)
	}
	if d.First(KindCompletedDivider) == None || d.First(KindCompletedHeading) == None {
		t.Error("completed markers missing")
	}
}

func TestTreeOperations(t *testing.T) {
	d := New()
	a := d.NewText("a")
	b := d.NewText("b")
	c := d.NewText("c")
	d.Append(d.Root(), a)
	d.Append(d.Root(), c)
	d.InsertBefore(c, b)
	if got := d.TextContent(d.Root()); got != "abc" {
		t.Fatalf("text = %q", got)
	}
	d.InsertAt(d.Root(), 0, c)
	if got := d.TextContent(d.Root()); got != "cab" {
		t.Fatalf("after move text = %q", got)
	}
	x := d.NewText("x")
	d.Replace(a, x)
	if got := d.TextContent(d.Root()); got != "cxb" {
		t.Fatalf("after replace text = %q", got)
	}
	if d.Node(a) != nil {
		t.Error("replaced node should be freed")
	}
	d.Remove(b)
	if d.IndexOf(x) != 1 || len(d.Node(d.Root()).Children) != 2 {
		t.Errorf("unexpected children %v", d.Node(d.Root()).Children)
	}
}

func TestEndCursor(t *testing.T) {
	d := MustParse(`<div>one</div><div>two</div>`)
	c := d.End()
	n := d.Node(c.Node)
	if n.Kind != KindText || n.Text != "two" || c.Offset != 3 {
		t.Errorf("end cursor = %+v on %+v", c, n)
	}
	empty := New()
	if c := empty.End(); c.Node != empty.Root() || c.Offset != 0 {
		t.Errorf("empty end cursor = %+v", c)
	}
}

func TestCursor_RuneBoundaries(t *testing.T) {
	d := MustParse(`<div>aé</div>`)
	text := d.Find(KindText)[0]

	tests := []struct {
		offset int
		valid  bool
		snap   int
	}{
		{0, true, 0},
		{1, true, 1},
		{2, false, 1},
		{3, true, 3},
		{4, false, 4},
	}
	for _, tt := range tests {
		c := Cursor{Node: text, Offset: tt.offset}
		if got := d.Valid(c); got != tt.valid {
			t.Errorf("Valid(%d) = %v, want %v", tt.offset, got, tt.valid)
		}
		if got := d.InText(c); got != tt.valid {
			t.Errorf("InText(%d) = %v, want %v", tt.offset, got, tt.valid)
		}
		if got := d.Snap(c).Offset; got != tt.snap {
			t.Errorf("Snap(%d) = %d, want %d", tt.offset, got, tt.snap)
		}
	}
}

func TestPlainText_Lines(t *testing.T) {
	d := MustParse(`<h2>Title</h2><div>first #a</div>` + openItem)
	want := "Title\nfirst #a\nbuy milk📅 Feb 18"
	if got := d.PlainText(); got != want {
		t.Errorf("plain text = %q, want %q", got, want)
	}
}
