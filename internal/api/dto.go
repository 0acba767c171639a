package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/zap/internal/editor"
	"github.com/starford/zap/internal/index"
	"github.com/starford/zap/internal/models"
	"github.com/starford/zap/internal/noteservice"
)

const (
	maxTitle  = 500
	maxEvents = 1000
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   string `json:"title" example:"Groceries"`
	Content string `json:"content" example:"<div>milk</div>"`
}

// Validate checks the request.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.RuneLength(0, maxTitle)),
	)
}

func (r CreateNoteRequest) input() noteservice.NoteInput {
	return noteservice.NoteInput{Title: r.Title, Content: r.Content}
}

// UpdateNoteRequest changes the title and/or content. Omitted fields keep
// their value.
type UpdateNoteRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Validate checks the request.
func (r UpdateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.RuneLength(0, maxTitle)),
		validation.Field(&r.Content, validation.NotNil.When(r.Title == nil).Error("title or content is required")),
	)
}

func (r UpdateNoteRequest) update() noteservice.NoteUpdate {
	return noteservice.NoteUpdate{Title: r.Title, Content: r.Content}
}

// DispatchRequest carries a batch of editor events.
type DispatchRequest struct {
	Events []editor.Event `json:"events"`
}

// Validate checks the request.
func (r DispatchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Events,
			validation.Required,
			validation.Length(1, maxEvents),
			validation.Each(validation.By(validEvent)),
		),
	)
}

func validEvent(v any) error {
	ev, _ := v.(editor.Event)
	return validation.Validate(ev.Type, validation.Required, validation.In(
		editor.EventKey, editor.EventClick, editor.EventCursor, editor.EventMenuHover, editor.EventMenuSelect,
	))
}

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []models.NoteSummary `json:"notes"`
	Total int                  `json:"total" example:"42"`
}

// BacklinksResponse lists the notes linking to a note.
type BacklinksResponse struct {
	Notes []models.NoteSummary `json:"notes"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

// TagsResponse lists tags with note counts.
type TagsResponse struct {
	Tags []models.TagCount `json:"tags"`
}

// TasksResponse lists open to-do items across notes.
type TasksResponse struct {
	Tasks []models.Task `json:"tasks"`
}

// DailyResponse is returned by POST /daily.
type DailyResponse struct {
	Note    *models.Note `json:"note"`
	Created bool         `json:"created"`
}
