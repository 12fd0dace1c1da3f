package tool

import (
	"context"
	"fmt"
	"strings"
)

// TodosNamespace is the fixed Store namespace write_todos persists under.
var TodosNamespace = []string{"todos"}

// TodoStatus mirrors the three states a todo item can be in.
type TodoStatus string

const (
	TodoPending   TodoStatus = "pending"
	TodoDone      TodoStatus = "done"
	TodoCancelled TodoStatus = "cancelled"
)

// TodoItem is a single planning step.
type TodoItem struct {
	ID     string     `json:"id,omitempty"`
	Title  string     `json:"title"`
	Status TodoStatus `json:"status,omitempty"`
}

func normalizeTodoStatus(raw string) TodoStatus {
	switch strings.ToLower(raw) {
	case "done":
		return TodoDone
	case "cancelled", "canceled":
		return TodoCancelled
	default:
		return TodoPending
	}
}

func todoStoreKey(ctxValues map[string]any) string {
	for _, k := range []string{"session_id", "thread_id", "user_id"} {
		if v, ok := ctxValues[k].(string); ok && v != "" {
			return v
		}
	}
	return "default"
}

// NewWriteTodosTool persists a full todo list to the Store under
// TodosNamespace, keyed by session/thread/user id from the runtime
// context (or "default"). It always requires a runtime since it writes to
// the Store.
func NewWriteTodosTool() RichTool {
	return RuntimeFuncTool{
		BaseTool: BaseTool{
			ToolName: "write_todos",
			ToolDescription: "Write or update the current to-do list. Use this to break down complex tasks into steps, " +
				"track progress, and adapt the plan as new information arrives. Pass a JSON array of items with optional " +
				"'id', 'title', and 'status' (pending, done, cancelled).",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"todos": map[string]any{
						"type":        "array",
						"description": "Array of todo items. Each may have id (optional), title, status (optional).",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"id":     map[string]any{"type": "string"},
								"title":  map[string]any{"type": "string"},
								"status": map[string]any{"type": "string", "enum": []string{"pending", "done", "cancelled"}},
							},
						},
					},
				},
				"required": []string{"todos"},
			},
			Requires: true,
		},
		Fn: func(ctx context.Context, input map[string]any, rt *Runtime) (Result, error) {
			if rt == nil || rt.Store == nil {
				return Result{}, fmt.Errorf("write_todos: no store in runtime")
			}
			raw, _ := input["todos"].([]any)
			items := make([]TodoItem, 0, len(raw))
			for i, v := range raw {
				m, ok := v.(map[string]any)
				if !ok {
					continue
				}
				id := stringField(m, "id")
				if id == "" {
					id = fmt.Sprintf("todo_%d", i)
				}
				title := stringField(m, "title")
				if title == "" {
					title = fmt.Sprintf("Item %d", i+1)
				}
				items = append(items, TodoItem{ID: id, Title: title, Status: normalizeTodoStatus(stringField(m, "status"))})
			}

			key := todoStoreKey(rt.Context)
			if err := rt.Store.Put(ctx, TodosNamespace, key, items); err != nil {
				return Result{}, fmt.Errorf("write_todos: %w", err)
			}
			return Result{Text: fmt.Sprintf("Todo list updated (%d items saved for this session).", len(items))}, nil
		},
	}
}
