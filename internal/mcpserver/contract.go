package mcpserver

// contractURI addresses the note format resource.
const contractURI = "zap://note-format"

// NoteFormatContract describes the note markup that LLM consumers should
// produce when creating or updating notes.
const NoteFormatContract = `# Zap Note Format

A note has a title and a content string. The content is a flat sequence of
HTML-like blocks; nothing else is kept. Tags, tasks, links and due dates
are derived from the content on every save.

## Blocks

- Line: ` + "`<div>text</div>`" + `; an empty line is ` + "`<div><br/></div>`" + `.
- Heading: ` + "`<h2>Title</h2>`" + ` (levels 1 to 3).
- To-do item:

` + "```" + `html
<label class="checkbox-item" contenteditable="false"><input type="checkbox" class="checkbox-input"/><span class="checkbox-text" contenteditable="true">call mom</span></label>
` + "```" + `

  A completed item has ` + "`class=\"checkbox-item checked\"`" + ` and ` + "`checked=\"\"`" + ` on the input.
  Completed items live after ` + "`<hr class=\"completed-divider\"/>`" + ` and
  ` + "`<h3 class=\"completed-heading\" contenteditable=\"false\">Completed</h3>`" + `.

## Inline elements

- Tag: plain ` + "`#word`" + ` (letters, digits, _ and -). Tags are case-insensitive.
- Link to another note, by id:
  ` + "`<span class=\"wiki-link\" contenteditable=\"false\" data-note-id=\"ID\">[[Title]]</span>`" + `.
  The label is a snapshot and is not updated when the target is renamed.
- Due date on a to-do item, epoch milliseconds:
  ` + "`<span class=\"due-date-badge\" contenteditable=\"false\" data-due=\"MS\">📅 Feb 17</span>`" + `.

## Rules

1. Use ` + "`list_notes`" + ` or ` + "`search_notes`" + ` to find note ids before linking.
2. Keep one to-do per label element; do not nest to-do items.
3. Do not invent attributes; unknown elements are flattened to their text.
`
