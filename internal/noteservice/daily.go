package noteservice

import (
	"context"
	"errors"
	"time"

	"github.com/starford/zap/internal/apperr"
	"github.com/starford/zap/internal/document"
	"github.com/starford/zap/internal/models"
)

// DailyTag marks daily notes.
const DailyTag = "daily"

// DailyID returns the id of the daily note for the given day.
func DailyID(day time.Time) string {
	return "daily-" + day.Format(time.DateOnly)
}

// DailyTitle returns the title of the daily note for the given day.
func DailyTitle(day time.Time) string {
	return day.Format("Jan 2, 2006")
}

// DailyContent builds the initial document of a daily note: a dated heading,
// a Focus section holding one empty to-do and a Log section.
func DailyContent(day time.Time) string {
	d := document.New()
	heading := func(level int, text string) {
		h := d.NewNode(document.Node{Kind: document.KindHeading, Level: level})
		d.Append(h, d.NewText(text))
		d.Append(d.Root(), h)
	}

	heading(2, DailyTitle(day)+" — "+day.Weekday().String())
	heading(3, "Focus")
	cb := d.NewNode(document.Node{Kind: document.KindCheckbox})
	label := d.NewNode(document.Node{Kind: document.KindCheckboxText})
	d.Append(label, d.NewText(document.NBSP))
	d.Append(cb, label)
	d.Append(d.Root(), cb)
	heading(3, "Log")
	block := d.NewNode(document.Node{Kind: document.KindBlock})
	d.Append(block, d.NewNode(document.Node{Kind: document.KindBreak}))
	d.Append(d.Root(), block)
	return d.Serialize()
}

// Daily returns the daily note for day, creating it from the template when
// it does not exist yet. created reports whether a note was written.
func (s *Service) Daily(ctx context.Context, day time.Time) (n *models.Note, created bool, err error) {
	id := DailyID(day)
	n, err = s.GetNote(ctx, id)
	if err == nil {
		return n, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}
	n, err = s.create(ctx, id, NoteInput{Title: DailyTitle(day), Content: DailyContent(day)}, true)
	if errors.Is(err, apperr.ErrAlreadyExists) {
		n, err = s.GetNote(ctx, id)
		return n, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}
