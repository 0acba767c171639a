// Package trigger recognizes inline editing triggers in the text run holding the caret.
//
// Every matcher is a pure function of the text and a byte offset of the caret
// inside it. A matcher never looks past the current text run.
package trigger

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind identifies the trigger a Match was produced by.
type Kind uint8

// Trigger kinds.
const (
	KindTag Kind = iota + 1
	KindCheckbox
	KindSlash
	KindWikiOpen
	KindDate
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindTag:
		return "tag"
	case KindCheckbox:
		return "checkbox"
	case KindSlash:
		return "slash"
	case KindWikiOpen:
		return "wiki-open"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	}
	return "none"
}

// Match is a recognized trigger. Start and End are byte offsets into the text the
// matcher was given; Payload carries the trigger-specific value (tag name without
// '#', wiki query, date keyword, time literal including '@').
type Match struct {
	Kind    Kind
	Start   int
	End     int
	Payload string
}

var (
	tagSuffixRe = regexp.MustCompile(`#([A-Za-z0-9_-]+)$`)
	dateWordRe  = regexp.MustCompile(`(?i)\b(today|tomorrow)\b`)
	dateNumRe   = regexp.MustCompile(`\b(\d{1,2}/\d{1,2})\b`)
	time24Re    = regexp.MustCompile(`@(\d{1,2}):(\d{2})\b`)
	time12Re    = regexp.MustCompile(`(?i)@(\d{1,2})(?::(\d{2}))?(am|pm)`)
)

func before(text string, cursor int) (string, bool) {
	if cursor < 0 || cursor > len(text) {
		return "", false
	}
	return text[:cursor], true
}

// Tag matches a #tag ending exactly at the caret.
func Tag(text string, cursor int) (Match, bool) {
	b, ok := before(text, cursor)
	if !ok {
		return Match{}, false
	}
	loc := tagSuffixRe.FindStringSubmatchIndex(b)
	if loc == nil {
		return Match{}, false
	}
	return Match{Kind: KindTag, Start: loc[0], End: loc[1], Payload: b[loc[2]:loc[3]]}, true
}

// Checkbox matches the two characters "[]" immediately before the caret.
func Checkbox(text string, cursor int) (Match, bool) {
	b, ok := before(text, cursor)
	if !ok || !strings.HasSuffix(b, "[]") {
		return Match{}, false
	}
	return Match{Kind: KindCheckbox, Start: cursor - 2, End: cursor}, true
}

// Slash matches when the text before the caret is exactly "/".
func Slash(text string, cursor int) (Match, bool) {
	b, ok := before(text, cursor)
	if !ok || b != "/" {
		return Match{}, false
	}
	return Match{Kind: KindSlash, Start: 0, End: 1}, true
}

// WikiOpen matches an unclosed "[[" before the caret. The payload is the query
// typed between the brackets and the caret.
func WikiOpen(text string, cursor int) (Match, bool) {
	b, ok := before(text, cursor)
	if !ok {
		return Match{}, false
	}
	idx := strings.LastIndex(b, "[[")
	if idx < 0 {
		return Match{}, false
	}
	query := b[idx+2:]
	if strings.Contains(query, "]]") {
		return Match{}, false
	}
	return Match{Kind: KindWikiOpen, Start: idx, End: cursor, Payload: query}, true
}

// Date matches a date keyword (today, tomorrow, MM/DD) once whitespace has been
// typed after it. Offsets locate the first keyword in the whole text run.
func Date(text string, cursor int) (Match, bool) {
	typed, ok := trailingWord(text, cursor)
	if !ok {
		return Match{}, false
	}
	for _, re := range []*regexp.Regexp{dateWordRe, dateNumRe} {
		if !re.MatchString(typed) {
			continue
		}
		if loc := re.FindStringIndex(text); loc != nil {
			return Match{Kind: KindDate, Start: loc[0], End: loc[1], Payload: text[loc[0]:loc[1]]}, true
		}
	}
	return Match{}, false
}

// Time matches an @HH:MM (24h) or @H[:MM]am|pm (12h) literal once whitespace has
// been typed after it. The 24h form is tried first.
func Time(text string, cursor int) (Match, bool) {
	typed, ok := trailingWord(text, cursor)
	if !ok {
		return Match{}, false
	}
	for _, re := range []*regexp.Regexp{time24Re, time12Re} {
		if !re.MatchString(typed) {
			continue
		}
		if loc := re.FindStringIndex(text); loc != nil {
			return Match{Kind: KindTime, Start: loc[0], End: loc[1], Payload: text[loc[0]:loc[1]]}, true
		}
	}
	return Match{}, false
}

// trailingWord returns the text before the caret with trailing whitespace removed,
// but only when the caret directly follows whitespace.
func trailingWord(text string, cursor int) (string, bool) {
	b, ok := before(text, cursor)
	if !ok || b == "" {
		return "", false
	}
	r, _ := utf8.DecodeLastRuneInString(b)
	if !unicode.IsSpace(r) {
		return "", false
	}
	return strings.TrimRightFunc(b, unicode.IsSpace), true
}
