package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/zap/internal/noteservice"
	"github.com/starford/zap/internal/session"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *noteservice.Service
	sessions *session.Manager
	now      func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithClock sets the time source used to pick today's daily note.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, sessions *session.Manager, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc, sessions: sessions, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func noteID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// setETag exposes the note checksum for If-Match.
func setETag(w http.ResponseWriter, checksum string) {
	w.Header().Set("ETag", strconv.Quote(checksum))
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes with optional pagination and filtering
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated, created, title)
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListNotes(r.Context(), limit, offset, q.Get("tag"), q.Get("sort"))
	if err != nil {
		writeError(w, err, "list notes")
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		writeError(w, err, "get note", slog.String("note_id", id))
		return
	}
	setETag(w, note.Checksum)
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decode(w, r, &req) {
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.input())
	if err != nil {
		writeError(w, err, "create note")
		return
	}
	setETag(w, note.Checksum)
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Update a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Note id"
//	@Param			If-Match	header		string				false	"Checksum for optimistic concurrency"
//	@Param			body		body		UpdateNoteRequest	true	"Changed fields"
//	@Success		200			{object}	models.Note
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	var req UpdateNoteRequest
	if !decode(w, r, &req) {
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	note, err := h.svc.UpdateNote(r.Context(), id, req.update(), ifMatch)
	if err != nil {
		writeError(w, err, "update note", slog.String("note_id", id))
		return
	}
	setETag(w, note.Checksum)
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note and cancel its reminders
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		writeError(w, err, "delete note", slog.String("note_id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Backlinks handles GET /api/notes/{id}/backlinks.
//
//	@Summary		Notes linking to a note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	BacklinksResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	notes, err := h.svc.Backlinks(r.Context(), id)
	if err != nil {
		writeError(w, err, "backlinks", slog.String("note_id", id))
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Notes: notes})
}

// Daily handles POST /api/daily. The optional date query parameter
// (YYYY-MM-DD) defaults to today.
//
//	@Summary		Open or create a daily note
//	@Tags			notes
//	@Produce		json
//	@Param			date	query		string	false	"Day (YYYY-MM-DD)"
//	@Success		200		{object}	DailyResponse
//	@Success		201		{object}	DailyResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/daily [post]
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	if err := validation.Validate(raw, validation.Date(time.DateOnly)); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("date: "+err.Error()))
		return
	}
	day := h.now()
	if raw != "" {
		day, _ = time.ParseInLocation(time.DateOnly, raw, day.Location())
	}

	note, created, err := h.svc.Daily(r.Context(), day)
	if err != nil {
		writeError(w, err, "daily note", slog.String("date", raw))
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	setETag(w, note.Checksum)
	writeJSON(w, status, DailyResponse{Note: note, Created: created})
}

// Tags handles GET /api/tags.
//
//	@Summary		Tags with note counts
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.Tags(r.Context())
	if err != nil {
		writeError(w, err, "tags")
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// Tasks handles GET /api/tasks.
//
//	@Summary		Open to-do items across all notes
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	TasksResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.Tasks(r.Context())
	if err != nil {
		writeError(w, err, "tasks")
		return
	}
	writeJSON(w, http.StatusOK, TasksResponse{Tasks: tasks})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, err, "search", slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the wiki-link graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	models.Graph
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Graph(r.Context())
	if err != nil {
		writeError(w, err, "graph")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// OpenEditor handles GET /api/notes/{id}/editor. It starts a session or
// returns the state of the running one.
//
//	@Summary		Open a live editing session
//	@Tags			editor
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	editor.State
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/editor [get]
func (h *Handler) OpenEditor(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	st, err := h.sessions.Open(r.Context(), id)
	if err != nil {
		writeError(w, err, "open editor", slog.String("note_id", id))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// DispatchEvents handles POST /api/notes/{id}/editor.
//
//	@Summary		Feed input events to a session
//	@Tags			editor
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Note id"
//	@Param			body	body		DispatchRequest	true	"Events in order"
//	@Success		200		{object}	session.Result
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/editor [post]
func (h *Handler) DispatchEvents(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	var req DispatchRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.sessions.Dispatch(r.Context(), id, req.Events)
	if err != nil {
		writeError(w, err, "dispatch events", slog.String("note_id", id))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CloseEditor handles DELETE /api/notes/{id}/editor.
//
//	@Summary		End a live editing session
//	@Tags			editor
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Session closed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/editor [delete]
func (h *Handler) CloseEditor(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Close(noteID(r)) {
		writeJSON(w, http.StatusNotFound, errorBody("no editor session"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
