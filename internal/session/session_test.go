package session

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/starford/zap/internal/apperr"
	"github.com/starford/zap/internal/editor"
	"github.com/starford/zap/internal/noteservice"
	"github.com/starford/zap/internal/testutil"
)

var refNow = time.Date(2026, time.February, 18, 10, 0, 0, 0, time.UTC)

type reminder struct {
	noteID string
	at     time.Time
	body   string
}

type fakeScheduler struct{ got []reminder }

func (f *fakeScheduler) Remind(noteID string, at time.Time, body string) error {
	f.got = append(f.got, reminder{noteID, at, body})
	return nil
}

type env struct {
	svc   *noteservice.Service
	mgr   *Manager
	sched *fakeScheduler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	_, store := testutil.TestVault(t)
	e := &env{sched: &fakeScheduler{}}
	e.svc = noteservice.NewService(store, testutil.TestDB(t),
		noteservice.WithHook(func(kind, id string) { e.mgr.NoteChanged(kind, id) }))
	e.mgr = NewManager(e.svc, WithScheduler(e.sched), WithClock(func() time.Time { return refNow }))
	return e
}

func keys(s string) []editor.Event {
	var out []editor.Event
	for _, r := range s {
		out = append(out, editor.Event{Type: editor.EventKey, Key: string(r)})
	}
	return out
}

func nodeOfKind(t *testing.T, st editor.State, kind string) editor.NodeView {
	t.Helper()
	for _, n := range st.Nodes {
		if n.Kind == kind {
			return n
		}
	}
	t.Fatalf("no %s node in %s", kind, st.Content)
	return editor.NodeView{}
}

func TestDispatch_PersistsEveryChange(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	n, _ := e.svc.CreateNote(ctx, noteservice.NoteInput{Title: "Todo"})
	if _, err := e.mgr.Open(ctx, n.ID); err != nil {
		t.Fatalf("Open: %v", err)
	}

	res, err := e.mgr.Dispatch(ctx, n.ID, keys("[] ship"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(res.State.Content, `class="checkbox-item"`) {
		t.Fatalf("content = %s", res.State.Content)
	}
	saved, _ := e.svc.GetNote(ctx, n.ID)
	if saved.Content != res.State.Content {
		t.Errorf("saved %q, editor %q", saved.Content, res.State.Content)
	}
	tasks, _ := e.svc.Tasks(ctx)
	if len(tasks) != 1 || tasks[0].Text != "ship" {
		t.Errorf("tasks = %+v", tasks)
	}
	if st, err := e.mgr.State(n.ID); err != nil || st.Content != res.State.Content {
		t.Errorf("own save dropped the session: %v", err)
	}
}

func TestDispatch_NotOpen(t *testing.T) {
	e := newEnv(t)
	if _, err := e.mgr.Dispatch(context.Background(), "nope", keys("a")); !errors.Is(err, ErrNotOpen) {
		t.Errorf("err = %v, want ErrNotOpen", err)
	}
	if _, err := e.mgr.Open(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("open err = %v", err)
	}
}

func TestDispatch_TimeBadgeArmsReminder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	n, _ := e.svc.CreateNote(ctx, noteservice.NoteInput{})
	_, _ = e.mgr.Open(ctx, n.ID)

	res, err := e.mgr.Dispatch(ctx, n.ID, keys("[] standup @9pm "))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.State.Content, `class="time-badge"`) {
		t.Fatalf("content = %s", res.State.Content)
	}
	want := time.Date(2026, time.February, 18, 21, 0, 0, 0, time.UTC)
	if len(e.sched.got) != 1 || e.sched.got[0].noteID != n.ID || !e.sched.got[0].at.Equal(want) || e.sched.got[0].body != "standup" {
		t.Errorf("reminders = %+v", e.sched.got)
	}
}

func TestDispatch_LinkClickNavigates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	target, _ := e.svc.CreateNote(ctx, noteservice.NoteInput{Title: "Plan A"})
	src, _ := e.svc.CreateNote(ctx, noteservice.NoteInput{})
	_, _ = e.mgr.Open(ctx, src.ID)

	res, err := e.mgr.Dispatch(ctx, src.ID, append(keys("see [[pla"), editor.Event{Type: editor.EventKey, Key: editor.KeyEnter}))
	if err != nil {
		t.Fatal(err)
	}
	link := nodeOfKind(t, res.State, "wiki-link")
	if link.Target != target.ID || link.Text != "[[Plan A]]" {
		t.Fatalf("link = %+v", link)
	}

	_, _ = e.svc.UpdateNote(ctx, target.ID, noteservice.NoteUpdate{Title: ptr("Plan B")}, "")
	res, err = e.mgr.Dispatch(ctx, src.ID, []editor.Event{{Type: editor.EventClick, Node: link.ID}})
	if err != nil {
		t.Fatal(err)
	}
	if res.NavigateTo != target.ID {
		t.Errorf("navigate = %q", res.NavigateTo)
	}
	if got := nodeOfKind(t, res.State, "wiki-link"); got.Text != "[[Plan A]]" {
		t.Errorf("label after rename = %q", got.Text)
	}
	bl, _ := e.svc.Backlinks(ctx, target.ID)
	if len(bl) != 1 || bl[0].ID != src.ID {
		t.Errorf("backlinks = %+v", bl)
	}
}

func TestDispatch_CheckPulses(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	n, _ := e.svc.CreateNote(ctx, noteservice.NoteInput{})
	_, _ = e.mgr.Open(ctx, n.ID)
	res, _ := e.mgr.Dispatch(ctx, n.ID, keys("[] a"))
	cb := nodeOfKind(t, res.State, "checkbox")

	res, err := e.mgr.Dispatch(ctx, n.ID, []editor.Event{{Type: editor.EventClick, Node: cb.ID}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Haptics) != 1 || !slices.Equal(res.Haptics[0], []int{editor.CheckPulse}) {
		t.Errorf("haptics = %v", res.Haptics)
	}
	if tasks, _ := e.svc.Tasks(ctx); len(tasks) != 0 {
		t.Errorf("completed item still listed: %+v", tasks)
	}
}

func TestExternalChangesDropSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	n, _ := e.svc.CreateNote(ctx, noteservice.NoteInput{})
	_, _ = e.mgr.Open(ctx, n.ID)

	_, _ = e.svc.UpdateNote(ctx, n.ID, noteservice.NoteUpdate{Content: ptr("<div>remote</div>")}, "")
	if _, err := e.mgr.State(n.ID); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("session survived external update: %v", err)
	}
	st, err := e.mgr.Open(ctx, n.ID)
	if err != nil || st.Content != "<div>remote</div>" {
		t.Errorf("reopened = %q, %v", st.Content, err)
	}

	_ = e.svc.DeleteNote(ctx, n.ID)
	if _, err := e.mgr.State(n.ID); !errors.Is(err, ErrNotOpen) {
		t.Errorf("session survived delete: %v", err)
	}
}

func TestClose(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	n, _ := e.svc.CreateNote(ctx, noteservice.NoteInput{})
	_, _ = e.mgr.Open(ctx, n.ID)
	if !e.mgr.Close(n.ID) || e.mgr.Close(n.ID) {
		t.Error("Close should report true once")
	}
}

func ptr(s string) *string { return &s }
