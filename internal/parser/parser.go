// Package parser reads and writes note files and derives tags, tasks,
// wiki-links and due dates from their document markup.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/zap/internal/document"
)

// Frontmatter is the YAML header of a note file.
type Frontmatter struct {
	ID       string    `yaml:"id"`
	Title    string    `yaml:"title"`
	Tags     []string  `yaml:"tags,omitempty"`
	DueDates []int64   `yaml:"due_dates,omitempty"`
	Daily    bool      `yaml:"daily,omitempty"`
	Created  time.Time `yaml:"created"`
	Updated  time.Time `yaml:"updated"`
}

// Result holds the output of parsing a note file.
type Result struct {
	Frontmatter *Frontmatter
	Body        string
	Doc         *document.Document
	Links       []string
	Tags        []string
	DueDates    []int64
	Text        string
	Title       string
}

// Parse splits frontmatter from the document body and derives links, tags,
// due dates and the title. Files without a valid header are treated as body only.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)
	doc, err := document.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parser: body: %w", err)
	}
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Doc:         doc,
		Links:       WikiLinks(doc),
		Tags:        Tags(doc),
		DueDates:    DueDates(doc),
		Text:        doc.PlainText(),
		Title:       deriveTitle(fm, doc),
	}, nil
}

// Render writes a note file: the YAML header followed by the body markup.
func Render(fm Frontmatter, body string) ([]byte, error) {
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("parser: render: %w", err)
	}
	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n")
	b.WriteString(body)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func splitFrontmatter(data []byte) (*Frontmatter, string) {
	const delim = "---"
	whole := strings.TrimRight(string(data), "\r\n")
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, whole
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, whole
	}
	block := rest[:idx]
	body := strings.Trim(string(rest[idx+1+len(delim):]), "\r\n")

	var fm Frontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, whole
	}
	return &fm, body
}

// deriveTitle prefers the header title, then the first heading of the body.
func deriveTitle(fm *Frontmatter, d *document.Document) string {
	if fm != nil && fm.Title != "" {
		return fm.Title
	}
	if h := d.First(document.KindHeading); h != document.None {
		return strings.TrimSpace(d.TextContent(h))
	}
	return ""
}

// NoteTags merges the header tags with the tags found in the body, header
// first, deduplicated.
func (r *Result) NoteTags() []string {
	out := []string{}
	seen := make(map[string]struct{})
	var head []string
	if r.Frontmatter != nil {
		head = r.Frontmatter.Tags
	}
	for _, list := range [][]string{head, r.Tags} {
		for _, t := range list {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
