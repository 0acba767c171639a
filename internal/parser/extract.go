package parser

import (
	"regexp"
	"strings"

	"github.com/starford/zap/internal/document"
	"github.com/starford/zap/internal/models"
)

// UntitledNote is reported for tasks whose note has no title.
const UntitledNote = "Untitled"

var tagRe = regexp.MustCompile(`#([A-Za-z0-9_-]+)`)

// Tags scans the plain-text projection of d for #tags. Results are lowercased,
// deduplicated and kept in first-seen order.
func Tags(d *document.Document) []string {
	matches := tagRe.FindAllStringSubmatch(d.PlainText(), -1)
	seen := make(map[string]struct{}, len(matches))
	out := []string{}
	for _, m := range matches {
		t := strings.ToLower(m[1])
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// WikiLinks returns the unique target note ids of d's wiki-links in first-seen order.
func WikiLinks(d *document.Document) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, id := range d.Find(document.KindWikiLink) {
		target := d.Node(id).Target
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// DueDates returns every due badge timestamp of d in document order.
func DueDates(d *document.Document) []int64 {
	out := []int64{}
	for _, id := range d.Find(document.KindDueBadge) {
		out = append(out, d.Node(id).Stamp)
	}
	return out
}

// Tasks returns the open checkbox items of d. Items whose label is empty or
// only the placeholder are skipped.
func Tasks(d *document.Document, noteID, noteTitle string) []models.Task {
	if noteTitle == "" {
		noteTitle = UntitledNote
	}
	out := []models.Task{}
	for _, id := range d.Find(document.KindCheckbox) {
		if d.Node(id).Checked {
			continue
		}
		text := strings.TrimSpace(d.TextContent(d.Child(id, document.KindCheckboxText)))
		if text == "" {
			continue
		}
		task := models.Task{Text: text, NoteID: noteID, NoteTitle: noteTitle}
		if due := d.Child(id, document.KindDueBadge); due != document.None {
			stamp := d.Node(due).Stamp
			task.DueDate = &stamp
		}
		out = append(out, task)
	}
	return out
}

// ExtractTags is Tags over serialized markup.
func ExtractTags(markup string) []string {
	return Tags(parseOrEmpty(markup))
}

// ExtractWikiLinks is WikiLinks over serialized markup.
func ExtractWikiLinks(markup string) []string {
	return WikiLinks(parseOrEmpty(markup))
}

// ExtractDueDates is DueDates over serialized markup.
func ExtractDueDates(markup string) []int64 {
	return DueDates(parseOrEmpty(markup))
}

// ExtractTasks is Tasks over serialized markup.
func ExtractTasks(markup, noteID, noteTitle string) []models.Task {
	return Tasks(parseOrEmpty(markup), noteID, noteTitle)
}

func parseOrEmpty(markup string) *document.Document {
	d, err := document.Parse(markup)
	if err != nil {
		return document.New()
	}
	return d
}
