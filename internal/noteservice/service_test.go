package noteservice

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/starford/zap/internal/apperr"
	"github.com/starford/zap/internal/testutil"
)

type cancelRecorder struct{ notes []string }

func (c *cancelRecorder) CancelNote(id string) int {
	c.notes = append(c.notes, id)
	return 1
}

type fixture struct {
	*Service
	clock     *testutil.Clock
	reminders *cancelRecorder
	events    []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, store := testutil.TestVault(t)
	f := &fixture{
		clock:     testutil.NewClock(time.Date(2026, time.February, 18, 9, 0, 0, 0, time.UTC)),
		reminders: &cancelRecorder{},
	}
	f.Service = NewService(store, testutil.TestDB(t),
		WithClock(f.clock.Now),
		WithReminders(f.reminders),
		WithHook(func(kind, id string) { f.events = append(f.events, kind+":"+id) }))
	return f
}

func ptr(s string) *string { return &s }

const checkbox = `<label class="checkbox-item" contenteditable="false"><input type="checkbox" class="checkbox-input"/>` +
	`<span class="checkbox-text" contenteditable="true">call mom</span></label>`

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.CreateNote(ctx, NoteInput{Title: "Plan", Content: "<div>hello #Work</div>"})
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if n.ID == "" || !n.CreatedAt.Equal(n.UpdatedAt) {
		t.Errorf("note = %+v", n)
	}
	got, err := f.GetNote(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Title != "Plan" || got.Content != "<div>hello #Work</div>" || !slices.Equal(got.Tags, []string{"work"}) {
		t.Errorf("got = %+v", got)
	}
	if got.Checksum != n.Checksum {
		t.Errorf("checksum %s != %s", got.Checksum, n.Checksum)
	}
	if !slices.Equal(f.events, []string{"created:" + n.ID}) {
		t.Errorf("events = %v", f.events)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.GetNote(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdate_RefreshesUpdatedAtKeepsCreatedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, _ := f.CreateNote(ctx, NoteInput{Title: "A"})

	f.clock.Advance(time.Minute)
	upd, err := f.UpdateNote(ctx, n.ID, NoteUpdate{Content: ptr(checkbox)}, n.Checksum)
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if !upd.CreatedAt.Equal(n.CreatedAt) {
		t.Errorf("createdAt changed: %v -> %v", n.CreatedAt, upd.CreatedAt)
	}
	if !upd.UpdatedAt.After(n.UpdatedAt) {
		t.Errorf("updatedAt not refreshed: %v -> %v", n.UpdatedAt, upd.UpdatedAt)
	}
	if upd.Title != "A" {
		t.Errorf("title = %q", upd.Title)
	}

	tasks, _ := f.Tasks(ctx)
	if len(tasks) != 1 || tasks[0].Text != "call mom" || tasks[0].NoteTitle != "A" {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestUpdate_SameInstantStillAdvances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, _ := f.CreateNote(ctx, NoteInput{})
	upd, err := f.UpdateNote(ctx, n.ID, NoteUpdate{Title: ptr("x")}, "")
	if err != nil {
		t.Fatal(err)
	}
	if !upd.UpdatedAt.After(n.UpdatedAt) {
		t.Errorf("updatedAt = %v, want after %v", upd.UpdatedAt, n.UpdatedAt)
	}
}

func TestUpdate_Conflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, _ := f.CreateNote(ctx, NoteInput{Title: "A"})
	if _, err := f.UpdateNote(ctx, n.ID, NoteUpdate{Title: ptr("B")}, "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	if _, err := f.UpdateNote(ctx, "missing", NoteUpdate{Title: ptr("B")}, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRenameKeepsLinkLabels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target, _ := f.CreateNote(ctx, NoteInput{Title: "Plan A"})
	link := `<div>see <span class="wiki-link" contenteditable="false" data-note-id="` + target.ID + `">[[Plan A]]</span></div>`
	source, _ := f.CreateNote(ctx, NoteInput{Title: "Source", Content: link})

	if _, err := f.UpdateNote(ctx, target.ID, NoteUpdate{Title: ptr("Plan B")}, ""); err != nil {
		t.Fatal(err)
	}
	got, _ := f.GetNote(ctx, source.ID)
	if !strings.Contains(got.Content, "[[Plan A]]") {
		t.Errorf("label changed: %s", got.Content)
	}
	bl, err := f.Backlinks(ctx, target.ID)
	if err != nil || len(bl) != 1 || bl[0].ID != source.ID {
		t.Errorf("backlinks = %+v, %v", bl, err)
	}
	g, _ := f.Graph(ctx)
	if len(g.Edges) != 1 {
		t.Errorf("edges = %+v", g.Edges)
	}
}

func TestDelete_CancelsReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, _ := f.CreateNote(ctx, NoteInput{Title: "gone"})

	if err := f.DeleteNote(ctx, n.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if !slices.Equal(f.reminders.notes, []string{n.ID}) {
		t.Errorf("cancelled = %v", f.reminders.notes)
	}
	if _, err := f.GetNote(ctx, n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := f.DeleteNote(ctx, n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
	if f.events[len(f.events)-1] != "deleted:"+n.ID {
		t.Errorf("events = %v", f.events)
	}
}

func TestListNotes_MostRecentFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.CreateNote(ctx, NoteInput{Title: "a"})
	f.clock.Advance(time.Minute)
	b, _ := f.CreateNote(ctx, NoteInput{Title: "b"})
	f.clock.Advance(time.Minute)
	_, _ = f.UpdateNote(ctx, a.ID, NoteUpdate{Content: ptr("<div>x</div>")}, "")

	items, total, err := f.ListNotes(ctx, 0, 0, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || items[0].ID != a.ID || items[1].ID != b.ID {
		t.Errorf("items = %+v", items)
	}
}

func TestDaily_CreatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := time.Date(2026, time.February, 18, 0, 0, 0, 0, time.UTC)

	n, created, err := f.Daily(ctx, day)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if !created || n.ID != "daily-2026-02-18" || n.Title != "Feb 18, 2026" || !n.IsDaily {
		t.Fatalf("note = %+v created=%v", n, created)
	}
	if !slices.Equal(n.Tags, []string{DailyTag}) {
		t.Errorf("tags = %v", n.Tags)
	}
	for _, want := range []string{
		"<h2>Feb 18, 2026 — Wednesday</h2>",
		"<h3>Focus</h3>",
		`class="checkbox-item"`,
		"<h3>Log</h3><div><br/></div>",
	} {
		if !strings.Contains(n.Content, want) {
			t.Errorf("content missing %q: %s", want, n.Content)
		}
	}

	again, created, err := f.Daily(ctx, day)
	if err != nil || created || again.ID != n.ID {
		t.Errorf("second Daily = %+v created=%v err=%v", again, created, err)
	}
	if tasks, _ := f.Tasks(ctx); len(tasks) != 0 {
		t.Errorf("placeholder to-do listed as task: %+v", tasks)
	}
}

func TestDaily_KeepsTagAfterEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, _, _ := f.Daily(ctx, time.Date(2026, time.February, 18, 0, 0, 0, 0, time.UTC))
	upd, err := f.UpdateNote(ctx, n.ID, NoteUpdate{Content: ptr("<div>#Work</div>")}, "")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(upd.Tags, []string{DailyTag, "work"}) {
		t.Errorf("tags = %v", upd.Tags)
	}
	tags, _ := f.Tags(ctx)
	if len(tags) != 2 {
		t.Errorf("tag counts = %+v", tags)
	}
}
