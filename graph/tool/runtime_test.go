package tool

import (
	"context"
	"testing"

	"github.com/dshills/langgraph-go/graph/filebackend"
	"github.com/dshills/langgraph-go/graph/memstore"
)

type fakeState struct{}

func (fakeState) Snapshot() map[string]any { return nil }

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"  search web  ": "search_web",
		"calc":           "calc",
		"a b c":          "a_b_c",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(FuncTool{
		BaseTool: BaseTool{ToolName: "echo"},
		Fn: func(_ context.Context, input map[string]any) (string, error) {
			return "ok", nil
		},
	})
	tl, ok := r.Lookup(" echo ")
	if !ok {
		t.Fatal("expected lookup with whitespace to resolve via normalization")
	}
	out, err := tl.Run(context.Background(), nil)
	if err != nil || out != "ok" {
		t.Fatalf("Run() = %q, %v", out, err)
	}
}

func TestFromLegacyAdapter(t *testing.T) {
	legacy := &MockTool{ToolName: "legacy", Responses: []map[string]interface{}{{"ok": true}}}
	rich := FromLegacy(legacy, "legacy tool", map[string]any{"type": "object"})
	out, err := rich.Run(context.Background(), map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out == "" {
		t.Fatal("expected non-empty JSON result")
	}
	if len(legacy.Calls) != 1 {
		t.Fatalf("expected legacy tool to be invoked once, got %d", len(legacy.Calls))
	}
}

func TestRuntimeFuncToolRequiresRuntime(t *testing.T) {
	rt := RuntimeFuncTool{
		BaseTool: BaseTool{ToolName: "needs_rt", Requires: true},
		Fn: func(_ context.Context, _ map[string]any, _ *Runtime) (Result, error) {
			return Result{Text: "done"}, nil
		},
	}
	if _, err := rt.Run(context.Background(), nil); err != ErrRequiresRuntime {
		t.Fatalf("expected ErrRequiresRuntime, got %v", err)
	}
	res, err := rt.RunWithRuntime(context.Background(), nil, &Runtime{})
	if err != nil || res.Text != "done" {
		t.Fatalf("RunWithRuntime() = %+v, %v", res, err)
	}
}

func TestFromStructDecodesInput(t *testing.T) {
	type addArgs struct {
		A int `json:"a"`
		B int `json:"b"`
	}
	rt := FromStruct[addArgs]("add", "adds two numbers", func(_ context.Context, in addArgs) (string, error) {
		return itoa(in.A + in.B), nil
	})
	out, err := rt.Run(context.Background(), map[string]any{"a": float64(2), "b": float64(3)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "5" {
		t.Fatalf("got %q, want 5", out)
	}
	schema := rt.Parameters()
	if schema["type"] != "object" {
		t.Fatalf("expected object schema, got %+v", schema)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

func TestReadWriteEditFileTools(t *testing.T) {
	dir := t.TempDir()
	ws, err := filebackend.NewWorkspaceBackend(dir)
	if err != nil {
		t.Fatalf("new workspace: %v", err)
	}
	rt := &Runtime{FileBackend: ws}
	ctx := context.Background()

	writeTool := NewWriteFileTool()
	if _, err := writeTool.Run(ctx, nil); err != ErrRequiresRuntime {
		t.Fatalf("expected ErrRequiresRuntime from Run, got %v", err)
	}
	if _, err := writeTool.RunWithRuntime(ctx, map[string]any{"path": "a.txt", "content": "hello"}, rt); err != nil {
		t.Fatalf("write: %v", err)
	}

	readTool := NewReadFileTool()
	res, err := readTool.RunWithRuntime(ctx, map[string]any{"path": "a.txt"}, rt)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Text != "     1\thello" {
		t.Fatalf("got %q", res.Text)
	}

	editTool := NewEditFileTool()
	replacements := []any{map[string]any{"old_string": "hello", "new_string": "world"}}
	if _, err := editTool.RunWithRuntime(ctx, map[string]any{"path": "a.txt", "replacements": replacements}, rt); err != nil {
		t.Fatalf("edit: %v", err)
	}
	res, _ = readTool.RunWithRuntime(ctx, map[string]any{"path": "a.txt"}, rt)
	if res.Text != "     1\tworld" {
		t.Fatalf("got %q after edit", res.Text)
	}
}

func TestWriteTodosToolPersistsToStore(t *testing.T) {
	store := memstore.NewMemStore(nil)
	rt := &Runtime{Store: store, Context: map[string]any{"thread_id": "t1"}}
	todos := NewWriteTodosTool()

	input := map[string]any{"todos": []any{
		map[string]any{"title": "First", "status": "pending"},
		map[string]any{"title": "Second", "status": "done"},
	}}
	res, err := todos.RunWithRuntime(context.Background(), input, rt)
	if err != nil {
		t.Fatalf("write_todos: %v", err)
	}
	if res.Text == "" {
		t.Fatal("expected confirmation text")
	}

	item, err := store.Get(context.Background(), TodosNamespace, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	list, ok := item.Value.([]TodoItem)
	if !ok || len(list) != 2 {
		t.Fatalf("unexpected stored value: %+v", item.Value)
	}
}
