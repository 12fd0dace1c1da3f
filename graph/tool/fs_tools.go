package tool

import (
	"context"
	"fmt"

	"github.com/dshills/langgraph-go/graph/filebackend"
)

// fsTool wraps a single filebackend.FileBackend method as a RichTool that
// always requires a runtime, matching the reference fs tools which refuse
// Run() and only implement RunWithRuntime().
type fsTool struct {
	BaseTool
	call func(ctx context.Context, fb filebackend.FileBackend, input map[string]any) (string, error)
}

func (f fsTool) Run(context.Context, map[string]any) (string, error) {
	return "", ErrRequiresRuntime
}

func (f fsTool) RunWithRuntime(ctx context.Context, input map[string]any, rt *Runtime) (Result, error) {
	if rt == nil || rt.FileBackend == nil {
		return Result{}, fmt.Errorf("tool %s: no file backend in runtime", f.ToolName)
	}
	text, err := f.call(ctx, rt.FileBackend, input)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text}, nil
}

func stringField(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}

func intField(input map[string]any, key string) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// NewReadFileTool reads file contents via the runtime's FileBackend, with
// optional 1-based offset/limit for large files.
func NewReadFileTool() RichTool {
	return fsTool{
		BaseTool: BaseTool{
			ToolName:        "read_file",
			ToolDescription: "Read contents of a file. Path is relative to workspace root. Optionally use offset (1-based line number) and limit (number of lines) for large files.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path":   map[string]any{"type": "string", "description": "File path relative to workspace"},
					"offset": map[string]any{"type": "integer", "description": "Start line (1-based); omit to read from start"},
					"limit":  map[string]any{"type": "integer", "description": "Max lines to return; omit for full file"},
				},
				"required": []string{"path"},
			},
			Requires: true,
		},
		call: func(ctx context.Context, fb filebackend.FileBackend, input map[string]any) (string, error) {
			return fb.Read(ctx, stringField(input, "path"), intField(input, "offset"), intField(input, "limit"))
		},
	}
}

// NewWriteFileTool overwrites (or creates) a file via the runtime's
// FileBackend.
func NewWriteFileTool() RichTool {
	return fsTool{
		BaseTool: BaseTool{
			ToolName:        "write_file",
			ToolDescription: "Write content to a file, creating it (and parent directories) if needed, or overwriting if it exists. Path is relative to workspace root.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path":    map[string]any{"type": "string", "description": "File path relative to workspace"},
					"content": map[string]any{"type": "string", "description": "Full file content"},
				},
				"required": []string{"path", "content"},
			},
			Requires: true,
		},
		call: func(ctx context.Context, fb filebackend.FileBackend, input map[string]any) (string, error) {
			res, err := fb.Write(ctx, stringField(input, "path"), stringField(input, "content"))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Wrote %s", res.Path), nil
		},
	}
}

// NewEditFileTool applies one or more exact old_string -> new_string
// replacements to a file via the runtime's FileBackend.
func NewEditFileTool() RichTool {
	return fsTool{
		BaseTool: BaseTool{
			ToolName:        "edit_file",
			ToolDescription: "Edit a file by exact string replacement. Pass one or more replacements (old_string, new_string). Path is relative to workspace root.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{"type": "string", "description": "File path relative to workspace"},
					"replacements": map[string]any{
						"type":        "array",
						"description": "List of { old_string, new_string } replacements",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"old_string": map[string]any{"type": "string"},
								"new_string": map[string]any{"type": "string"},
							},
							"required": []string{"old_string", "new_string"},
						},
					},
				},
				"required": []string{"path", "replacements"},
			},
			Requires: true,
		},
		call: func(ctx context.Context, fb filebackend.FileBackend, input map[string]any) (string, error) {
			path := stringField(input, "path")
			reps, _ := input["replacements"].([]any)
			total := 0
			for _, raw := range reps {
				rep, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				oldStr := stringField(rep, "old_string")
				newStr := stringField(rep, "new_string")
				if oldStr == "" {
					continue
				}
				res, err := fb.Edit(ctx, path, oldStr, newStr, false)
				if err != nil {
					return "", err
				}
				total += res.OccurrencesEdited
			}
			return fmt.Sprintf("Applied %d replacement(s) to %s", total, path), nil
		},
	}
}

// NewLsTool lists directory contents via the runtime's FileBackend.
func NewLsTool() RichTool {
	return fsTool{
		BaseTool: BaseTool{
			ToolName:        "ls",
			ToolDescription: "List files and directories at a path relative to workspace root.",
			Schema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": map[string]any{"type": "string", "description": "Directory path relative to workspace"}},
			},
			Requires: true,
		},
		call: func(ctx context.Context, fb filebackend.FileBackend, input map[string]any) (string, error) {
			infos, err := fb.Ls(ctx, stringField(input, "path"))
			if err != nil {
				return "", err
			}
			out := ""
			for _, info := range infos {
				suffix := ""
				if info.IsDir {
					suffix = "/"
				}
				out += info.Path + suffix + "\n"
			}
			return out, nil
		},
	}
}

// NewGlobTool matches files by a glob pattern via the runtime's
// FileBackend.
func NewGlobTool() RichTool {
	return fsTool{
		BaseTool: BaseTool{
			ToolName:        "glob",
			ToolDescription: "Find files matching a glob pattern (supports ** for recursive matching), optionally rooted at a path.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pattern": map[string]any{"type": "string"},
					"path":    map[string]any{"type": "string", "description": "Directory to search under; omit to search the whole workspace"},
				},
				"required": []string{"pattern"},
			},
			Requires: true,
		},
		call: func(ctx context.Context, fb filebackend.FileBackend, input map[string]any) (string, error) {
			infos, err := fb.Glob(ctx, stringField(input, "pattern"), stringField(input, "path"))
			if err != nil {
				return "", err
			}
			out := ""
			for _, info := range infos {
				out += info.Path + "\n"
			}
			return out, nil
		},
	}
}

// NewGrepTool searches file contents for a substring via the runtime's
// FileBackend.
func NewGrepTool() RichTool {
	return fsTool{
		BaseTool: BaseTool{
			ToolName:        "grep",
			ToolDescription: "Search file contents for a literal substring, optionally rooted at a path and filtered by a glob pattern.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pattern": map[string]any{"type": "string"},
					"path":    map[string]any{"type": "string", "description": "Directory or file to search under; omit to search the whole workspace"},
					"glob":    map[string]any{"type": "string", "description": "Optional glob filter over candidate files"},
				},
				"required": []string{"pattern"},
			},
			Requires: true,
		},
		call: func(ctx context.Context, fb filebackend.FileBackend, input map[string]any) (string, error) {
			matches, err := fb.Grep(ctx, stringField(input, "pattern"), stringField(input, "path"), stringField(input, "glob"))
			if err != nil {
				return "", err
			}
			out := ""
			for _, m := range matches {
				out += fmt.Sprintf("%s:%d:%s\n", m.Path, m.Line, m.Text)
			}
			return out, nil
		},
	}
}
