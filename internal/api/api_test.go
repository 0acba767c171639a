package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/starford/zap/internal/editor"
	"github.com/starford/zap/internal/models"
	"github.com/starford/zap/internal/noteservice"
	"github.com/starford/zap/internal/session"
	"github.com/starford/zap/internal/testutil"
)

var refNow = time.Date(2026, time.February, 18, 10, 0, 0, 0, time.UTC)

// testEnv sets up a temp vault, SQLite DB, service, sessions and router.
// An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	return testEnvWithSSE(t, authToken, nil)
}

func testEnvWithSSE(t *testing.T, authToken string, sseHandler http.Handler) http.Handler {
	t.Helper()
	_, store := testutil.TestVault(t)
	clock := func() time.Time { return refNow }

	var mgr *session.Manager
	svc := noteservice.NewService(store, testutil.TestDB(t),
		noteservice.WithClock(clock),
		noteservice.WithHook(func(kind, id string) { mgr.NoteChanged(kind, id) }))
	mgr = session.NewManager(svc, session.WithClock(clock))
	return NewRouter(svc, mgr, authToken != "", authToken, sseHandler, WithClock(clock))
}

func do(t *testing.T, h http.Handler, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func createNote(t *testing.T, h http.Handler, title, content string) models.Note {
	t.Helper()
	w := do(t, h, http.MethodPost, "/notes", CreateNoteRequest{Title: title, Content: content})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	return decodeBody[models.Note](t, w)
}

func TestCreateAndGetNote(t *testing.T) {
	router := testEnv(t, "")
	created := createNote(t, router, "Hello", "<div>World #Greeting</div>")

	w := do(t, router, http.MethodGet, "/notes/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if etag := w.Header().Get("ETag"); etag != strconv.Quote(created.Checksum) {
		t.Errorf("ETag = %q, want %q", etag, created.Checksum)
	}
	note := decodeBody[models.Note](t, w)
	if note.Title != "Hello" || note.Content != "<div>World #Greeting</div>" {
		t.Errorf("note = %+v", note)
	}
	if len(note.Tags) != 1 || note.Tags[0] != "greeting" {
		t.Errorf("tags = %v", note.Tags)
	}
}

func TestCreateNote_Validation(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: strings.Repeat("x", maxTitle+1)})
	if w.Code != http.StatusBadRequest {
		t.Errorf("long title = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	router := testEnv(t, "")
	created := createNote(t, router, "Lock", "<div>v1</div>")

	content := "<div>v2</div>"
	w := do(t, router, http.MethodPut, "/notes/"+created.ID, UpdateNoteRequest{Content: &content},
		"If-Match", strconv.Quote(created.Checksum))
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}
	updated := decodeBody[models.Note](t, w)
	if updated.Title != "Lock" || !updated.CreatedAt.Equal(created.CreatedAt) || !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("updated = %+v", updated)
	}

	// Stale checksum.
	w = do(t, router, http.MethodPut, "/notes/"+created.ID, UpdateNoteRequest{Content: &content},
		"If-Match", created.Checksum)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestUpdateNote_RequiresAField(t *testing.T) {
	router := testEnv(t, "")
	created := createNote(t, router, "A", "")

	w := do(t, router, http.MethodPut, "/notes/"+created.ID, map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty update = %d, want 400", w.Code)
	}

	title := "B"
	w = do(t, router, http.MethodPut, "/notes/"+created.ID, UpdateNoteRequest{Title: &title})
	if w.Code != http.StatusOK || decodeBody[models.Note](t, w).Title != "B" {
		t.Errorf("rename = %d %s", w.Code, w.Body.String())
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	router := testEnv(t, "")
	content := "x"
	w := do(t, router, http.MethodPut, "/notes/ghost", UpdateNoteRequest{Content: &content})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	router := testEnv(t, "")
	created := createNote(t, router, "bye", "")

	if w := do(t, router, http.MethodDelete, "/notes/"+created.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/notes/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/notes/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	router := testEnv(t, "")
	createNote(t, router, "a", "<div>#x</div>")
	createNote(t, router, "b", "")

	w := do(t, router, http.MethodGet, "/notes?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	if resp := decodeBody[NoteListResponse](t, w); resp.Total != 2 || len(resp.Notes) != 2 {
		t.Errorf("list = %+v", resp)
	}

	w = do(t, router, http.MethodGet, "/notes?tag=x", nil)
	if resp := decodeBody[NoteListResponse](t, w); resp.Total != 1 || resp.Notes[0].Title != "a" {
		t.Errorf("filtered = %+v", resp)
	}
}

func TestBacklinksAndGraph(t *testing.T) {
	router := testEnv(t, "")
	target := createNote(t, router, "Target", "")
	link := `<div><span class="wiki-link" contenteditable="false" data-note-id="` + target.ID + `">[[Target]]</span></div>`
	source := createNote(t, router, "Source", link)

	w := do(t, router, http.MethodGet, "/notes/"+target.ID+"/backlinks", nil)
	bl := decodeBody[BacklinksResponse](t, w)
	if len(bl.Notes) != 1 || bl.Notes[0].ID != source.ID {
		t.Errorf("backlinks = %+v", bl)
	}

	g := decodeBody[models.Graph](t, do(t, router, http.MethodGet, "/graph", nil))
	if len(g.Nodes) != 2 || len(g.Edges) != 1 || g.Edges[0].Source != source.ID || g.Edges[0].Target != target.ID {
		t.Errorf("graph = %+v", g)
	}
}

func TestTagsAndTasks(t *testing.T) {
	router := testEnv(t, "")
	todo := `<label class="checkbox-item" contenteditable="false"><input type="checkbox" class="checkbox-input"/>` +
		`<span class="checkbox-text" contenteditable="true">call mom</span></label><div>#home</div>`
	note := createNote(t, router, "Home", todo)

	tags := decodeBody[TagsResponse](t, do(t, router, http.MethodGet, "/tags", nil))
	if len(tags.Tags) != 1 || tags.Tags[0].Tag != "home" || tags.Tags[0].Count != 1 {
		t.Errorf("tags = %+v", tags)
	}
	tasks := decodeBody[TasksResponse](t, do(t, router, http.MethodGet, "/tasks", nil))
	if len(tasks.Tasks) != 1 || tasks.Tasks[0].Text != "call mom" || tasks.Tasks[0].NoteID != note.ID {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router := testEnv(t, "")
	createNote(t, router, "Golang", "<div>concurrency patterns</div>")
	createNote(t, router, "Cooking", "<div>pasta</div>")

	w := do(t, router, http.MethodGet, "/search?q=concurrency", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	resp := decodeBody[SearchResponse](t, w)
	if len(resp.Results) != 1 || resp.Results[0].Title != "Golang" {
		t.Errorf("results = %+v", resp.Results)
	}

	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestDaily(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/daily", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("first daily = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeBody[DailyResponse](t, w)
	if !resp.Created || resp.Note.ID != "daily-2026-02-18" || !resp.Note.IsDaily {
		t.Errorf("daily = %+v", resp)
	}

	w = do(t, router, http.MethodPost, "/daily?date=2026-02-18", nil)
	if w.Code != http.StatusOK || decodeBody[DailyResponse](t, w).Created {
		t.Errorf("second daily = %d %s", w.Code, w.Body.String())
	}

	if w := do(t, router, http.MethodPost, "/daily?date=18/02/2026", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d, want 400", w.Code)
	}
}

func keyEvents(s string) []editor.Event {
	var out []editor.Event
	for _, r := range s {
		out = append(out, editor.Event{Type: editor.EventKey, Key: string(r)})
	}
	return out
}

func TestEditorSession(t *testing.T) {
	router := testEnv(t, "")
	note := createNote(t, router, "Errands", "")
	base := "/notes/" + note.ID + "/editor"

	if w := do(t, router, http.MethodPost, base, DispatchRequest{Events: keyEvents("a")}); w.Code != http.StatusNotFound {
		t.Errorf("dispatch before open = %d, want 404", w.Code)
	}

	w := do(t, router, http.MethodGet, base, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("open = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPost, base, DispatchRequest{Events: keyEvents("[] buy milk")})
	if w.Code != http.StatusOK {
		t.Fatalf("dispatch = %d, body = %s", w.Code, w.Body.String())
	}
	res := decodeBody[session.Result](t, w)
	if !strings.Contains(res.State.Content, `class="checkbox-item"`) {
		t.Errorf("content = %s", res.State.Content)
	}

	saved := decodeBody[models.Note](t, do(t, router, http.MethodGet, "/notes/"+note.ID, nil))
	if saved.Content != res.State.Content {
		t.Errorf("saved %q, editor %q", saved.Content, res.State.Content)
	}
	tasks := decodeBody[TasksResponse](t, do(t, router, http.MethodGet, "/tasks", nil))
	if len(tasks.Tasks) != 1 || tasks.Tasks[0].Text != "buy milk" {
		t.Errorf("tasks = %+v", tasks)
	}

	if w := do(t, router, http.MethodDelete, base, nil); w.Code != http.StatusNoContent {
		t.Errorf("close = %d, want 204", w.Code)
	}
	if w := do(t, router, http.MethodDelete, base, nil); w.Code != http.StatusNotFound {
		t.Errorf("second close = %d, want 404", w.Code)
	}
}

func TestEditorSession_RejectsBadEvents(t *testing.T) {
	router := testEnv(t, "")
	note := createNote(t, router, "", "")
	base := "/notes/" + note.ID + "/editor"
	do(t, router, http.MethodGet, base, nil)

	for name, req := range map[string]DispatchRequest{
		"empty":        {},
		"unknown type": {Events: []editor.Event{{Type: "scroll"}}},
	} {
		if w := do(t, router, http.MethodPost, base, req); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, w.Code)
		}
	}
}

func TestOpenEditor_NotFound(t *testing.T) {
	router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes/nope/editor", nil); w.Code != http.StatusNotFound {
		t.Errorf("open missing = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router := testEnv(t, "secret123")

	tests := []struct {
		name   string
		header []string
		want   int
	}{
		{"valid token", []string{"Authorization", "Bearer secret123"}, http.StatusOK},
		{"missing token", nil, http.StatusUnauthorized},
		{"wrong token", []string{"Authorization", "Bearer wrong"}, http.StatusUnauthorized},
		{"wrong scheme", []string{"Authorization", "Basic secret123"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, router, http.MethodGet, "/notes", nil, tt.header...); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// stubSSE writes headers and blocks until the request context is done.
var stubSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, "secret", stubSSE)
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, "tok", stubSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
