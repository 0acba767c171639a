package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/zap/internal/apperr"
	"github.com/starford/zap/internal/checksum"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	vault, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return vault
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("---\nid: n1\n---\n<div>World</div>\n")
	if err := s.Write("n1.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("n1.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("del.md", []byte("bye"))
	if err := s.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("read deleted: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete("del.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("b.md", []byte("b"))
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("readme.txt", []byte("not a note"))
	_ = os.WriteFile(filepath.Join(s.root, tmpPrefix+"123.md"), []byte("partial"), 0o644)

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Path != "a.md" || items[1].Path != "b.md" {
		t.Errorf("order = %s, %s", items[0].Path, items[1].Path)
	}
	if items[0].Checksum != checksum.Sum([]byte("a")) {
		t.Errorf("checksum = %s", items[0].Checksum)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow", "a/../../b.md"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("atomic.md", []byte("original"))
	if err := s.Write("atomic.md", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, tmpPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_Invalid(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
	f, _ := os.CreateTemp(t.TempDir(), "zap-test-*")
	_ = f.Close()
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestNotePath(t *testing.T) {
	p, err := NotePath("daily-2026-02-18")
	if err != nil || p != "daily-2026-02-18.md" {
		t.Fatalf("NotePath = %q, %v", p, err)
	}
	if NoteID("sub/"+p) != "daily-2026-02-18" {
		t.Errorf("NoteID = %q", NoteID(p))
	}
	for _, bad := range []string{"", "..", "a/b", `a\b`} {
		if _, err := NotePath(bad); err == nil {
			t.Errorf("NotePath(%q) should fail", bad)
		}
	}
}
