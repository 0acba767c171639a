// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes zap notes to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/zap/internal/apperr"
	"github.com/starford/zap/internal/index"
	"github.com/starford/zap/internal/models"
	"github.com/starford/zap/internal/noteservice"
)

const defaultLimit = 20

// Notes is the note store surface the tools use.
type Notes interface {
	ListNotes(ctx context.Context, limit, offset int, tag, sort string) ([]models.NoteSummary, int, error)
	GetNote(ctx context.Context, id string) (*models.Note, error)
	CreateNote(ctx context.Context, in noteservice.NoteInput) (*models.Note, error)
	UpdateNote(ctx context.Context, id string, upd noteservice.NoteUpdate, ifMatch string) (*models.Note, error)
	Daily(ctx context.Context, day time.Time) (*models.Note, bool, error)
	Backlinks(ctx context.Context, id string) ([]models.NoteSummary, error)
	Tags(ctx context.Context) ([]models.TagCount, error)
	Tasks(ctx context.Context) ([]models.Task, error)
	Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error)
}

// Server wraps the MCP server with zap tools.
type Server struct {
	mcp   *server.MCPServer
	notes Notes
	now   func() time.Time
}

// New creates a new MCP server with all tools registered.
func New(notes Notes) *Server {
	s := &Server{notes: notes, now: time.Now}

	s.mcp = server.NewMCPServer(
		"Zap",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note: title, markup content, tags, due dates and timestamps."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. Content MUST follow the zap note format; "+
			"read it first via get_note_contract or the "+contractURI+" resource."),
		mcp.WithString("title", mcp.Description("Note title")),
		mcp.WithString("content", mcp.Description("Note markup")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Change the title and/or content of a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New markup")),
		mcp.WithString("checksum", mcp.Description("Expected current checksum; the update fails if the note changed")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("daily_note",
		mcp.WithDescription("Open the daily note for a day, creating it from the template when missing."),
		mcp.WithString("date", mcp.Description("Day as YYYY-MM-DD (default today)")),
	), s.dailyNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the zap note format. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, most recently updated first."),
		mcp.WithString("tag", mcp.Description("Only notes with this tag")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of notes (default all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List open to-do items across all notes, most recently updated note first."),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List tags with the number of notes carrying each."),
	), s.listTags)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format Contract",
			mcp.WithResourceDescription("Markup format that all notes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("note not found")
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("checksum mismatch: the note changed, read it again")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.notes.Search(ctx, query, req.GetInt("limit", defaultLimit))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(results)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.notes.GetNote(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(n)
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := s.notes.CreateNote(ctx, noteservice.NoteInput{
		Title:   req.GetString("title", ""),
		Content: req.GetString("content", ""),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.ID)), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var upd noteservice.NoteUpdate
	args := req.GetArguments()
	if v, ok := args["title"].(string); ok {
		upd.Title = &v
	}
	if v, ok := args["content"].(string); ok {
		upd.Content = &v
	}
	if upd.Title == nil && upd.Content == nil {
		return mcp.NewToolResultError("title or content is required"), nil
	}
	n, err := s.notes.UpdateNote(ctx, id, upd, req.GetString("checksum", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (checksum %s)", n.ID, n.Checksum)), nil
}

func (s *Server) dailyNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	day := s.now()
	if raw := req.GetString("date", ""); raw != "" {
		d, err := time.ParseInLocation(time.DateOnly, raw, day.Location())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid date %q, want YYYY-MM-DD", raw)), nil
		}
		day = d
	}
	n, _, err := s.notes.Daily(ctx, day)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(n)
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.notes.ListNotes(ctx, req.GetInt("limit", 0), 0, req.GetString("tag", ""), "")
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"notes": items, "total": total})
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.notes.Backlinks(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return jsonResult(bl)
}

func (s *Server) listTasks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := s.notes.Tasks(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tasks)
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.notes.Tags(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tags)
}

func (s *Server) getNoteContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
