package filebackend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/langgraph-go/graph/memstore"
)

func TestWorkspaceWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	ws, err := NewWorkspaceBackend(dir)
	if err != nil {
		t.Fatalf("new workspace: %v", err)
	}
	ctx := context.Background()

	if _, err := ws.Write(ctx, "a.txt", "x"); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ws.Read(ctx, "a.txt", 0, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "     1\tx"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestWorkspaceRejectsDotDot(t *testing.T) {
	dir := t.TempDir()
	ws, err := NewWorkspaceBackend(dir)
	if err != nil {
		t.Fatalf("new workspace: %v", err)
	}
	_, err = ws.Write(context.Background(), "../escape.txt", "x")
	if err == nil {
		t.Fatal("expected path-escape error")
	}
}

func TestWorkspaceEditRequiresSingleOccurrence(t *testing.T) {
	dir := t.TempDir()
	ws, _ := NewWorkspaceBackend(dir)
	ctx := context.Background()
	_, _ = ws.Write(ctx, "f.txt", "aa")

	if _, err := ws.Edit(ctx, "f.txt", "a", "b", false); err == nil {
		t.Fatal("expected error for multiple occurrences without replace_all")
	}
	res, err := ws.Edit(ctx, "f.txt", "a", "b", true)
	if err != nil {
		t.Fatalf("edit replace_all: %v", err)
	}
	if res.OccurrencesEdited != 2 {
		t.Fatalf("expected 2 occurrences, got %d", res.OccurrencesEdited)
	}
}

func TestWorkspaceGlobRecursive(t *testing.T) {
	dir := t.TempDir()
	ws, _ := NewWorkspaceBackend(dir)
	ctx := context.Background()
	if err := os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, _ = ws.Write(ctx, "a/b/c.go", "package c")
	_, _ = ws.Write(ctx, "top.go", "package top")

	infos, err := ws.Glob(ctx, "**/*.go", "")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(infos), infos)
	}
}

func TestStoreBackendRoundTrip(t *testing.T) {
	s := memstore.NewMemStore(nil)
	fb := NewStoreBackend(s)
	ctx := context.Background()

	if _, err := fb.Write(ctx, "memories/a", "x"); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := fb.Read(ctx, "memories/a", 0, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "     1\tx" {
		t.Fatalf("got %q", got)
	}

	infos, err := fb.Ls(ctx, "memories")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if len(infos) != 1 || infos[0].Path != "memories/a" {
		t.Fatalf("unexpected ls result: %+v", infos)
	}
}

func TestCompositeRouting(t *testing.T) {
	dir := t.TempDir()
	ws, err := NewWorkspaceBackend(dir)
	if err != nil {
		t.Fatalf("new workspace: %v", err)
	}
	s := memstore.NewMemStore(nil)
	storeBackend := NewStoreBackend(s)

	composite := NewCompositeBackend(ws).WithRoute("memories", storeBackend)
	ctx := context.Background()

	if _, err := composite.Write(ctx, "memories/a", "x"); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := composite.Read(ctx, "memories/a", 0, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "     1\tx" {
		t.Fatalf("got %q", got)
	}

	infos, err := composite.Ls(ctx, "memories")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if len(infos) != 1 || infos[0].Path != "memories/a" {
		t.Fatalf("unexpected ls: %+v", infos)
	}

	if _, err := composite.Write(ctx, "scratch.txt", "y"); err != nil {
		t.Fatalf("write to default: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "scratch.txt")); err != nil {
		t.Fatalf("expected default-routed file on disk: %v", err)
	}
}

func TestRestorePrefixNoDuplicateSlashes(t *testing.T) {
	cases := []struct{ prefix, inner, want string }{
		{"memories", "a", "memories/a"},
		{"memories/", "a", "memories/a"},
		{"", "a", "a"},
		{"memories", "", "memories"},
	}
	for _, tc := range cases {
		if got := restorePrefix(tc.prefix, tc.inner); got != tc.want {
			t.Errorf("restorePrefix(%q, %q) = %q, want %q", tc.prefix, tc.inner, got, tc.want)
		}
	}
}
