package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/langgraph-go/graph/filebackend"
	"github.com/dshills/langgraph-go/graph/memstore"
)

// ErrRequiresRuntime is returned by RichTool.Run when RequiresRuntime is
// true but the plain (no-runtime) call path was used anyway.
var ErrRequiresRuntime = errors.New("tool: this tool requires a runtime and cannot be called via Run")

// Result is the ToolResult sum type (§4.5): either a plain text
// observation, or text paired with a Command the executor should apply
// after recording the observation.
type Result struct {
	Text    string
	Command any // *agent.Command, kept as `any` here to avoid an import cycle with graph/agent
}

// SharedState is the minimal read/update surface a RichTool needs on the
// caller's mutable state, kept generic so this package does not depend on
// graph/agent's concrete AgentState type.
type SharedState interface {
	// Snapshot returns a read-only copy suitable for inspection.
	Snapshot() map[string]any
}

// Runtime is the per-call context bundle injected into tools whose
// RequiresRuntime() is true (§4.5).
type Runtime struct {
	State       SharedState
	Context     map[string]any // immutable per-run context (user_id, etc.)
	Store       memstore.Store
	StreamWrite func(event any) // optional stream sink; nil if not streaming
	FileBackend filebackend.FileBackend
	ToolCallID  string
}

// RichTool is the full Tool capability described by §4.5, distinct from
// the simpler Tool interface above (which graph/tool/http.go and
// graph/tool/mock.go still implement directly for basic non-agent use).
type RichTool interface {
	Name() string
	Description() string
	// Parameters returns the tool's JSON Schema (type: object, properties,
	// required).
	Parameters() map[string]any
	// Run executes the tool given a parsed JSON input. Returns
	// ErrRequiresRuntime if RequiresRuntime() is true.
	Run(ctx context.Context, input map[string]any) (string, error)
	// RunWithRuntime executes the tool with full runtime access. Tools
	// that do not require a runtime may leave this unimplemented (return
	// ErrRequiresRuntime is not expected here — only Run needs the
	// inverse guard).
	RunWithRuntime(ctx context.Context, input map[string]any, rt *Runtime) (Result, error)
	RequiresRuntime() bool
	// ParseInput normalizes a raw JSON object or string into the map form
	// Run/RunWithRuntime expect.
	ParseInput(raw any) (map[string]any, error)
}

// BaseTool provides the common ParseInput behavior and safe defaults so
// concrete tools only need to implement the methods relevant to them.
type BaseTool struct {
	ToolName        string
	ToolDescription string
	Schema          map[string]any
	Requires        bool
}

func (b BaseTool) Name() string               { return b.ToolName }
func (b BaseTool) Description() string        { return b.ToolDescription }
func (b BaseTool) Parameters() map[string]any { return b.Schema }
func (b BaseTool) RequiresRuntime() bool      { return b.Requires }

func (b BaseTool) ParseInput(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		var out map[string]any
		if v == "" {
			return map[string]any{}, nil
		}
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("tool: parse input: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("tool: unsupported input type %T", raw)
	}
}

// FuncTool adapts a plain function into a RichTool that does not need a
// runtime.
type FuncTool struct {
	BaseTool
	Fn func(ctx context.Context, input map[string]any) (string, error)
}

func (f FuncTool) Run(ctx context.Context, input map[string]any) (string, error) {
	return f.Fn(ctx, input)
}

func (f FuncTool) RunWithRuntime(ctx context.Context, input map[string]any, _ *Runtime) (Result, error) {
	text, err := f.Fn(ctx, input)
	return Result{Text: text}, err
}

// RuntimeFuncTool adapts a function that needs runtime access (files,
// store, streaming) into a RichTool with RequiresRuntime() == true.
type RuntimeFuncTool struct {
	BaseTool
	Fn func(ctx context.Context, input map[string]any, rt *Runtime) (Result, error)
}

func (f RuntimeFuncTool) Run(context.Context, map[string]any) (string, error) {
	return "", ErrRequiresRuntime
}

func (f RuntimeFuncTool) RunWithRuntime(ctx context.Context, input map[string]any, rt *Runtime) (Result, error) {
	return f.Fn(ctx, input, rt)
}

// FromLegacy adapts the simpler Tool interface (used by http.go, mock.go)
// into RichTool for use with the agent executor, preserving those
// implementations rather than duplicating their logic.
func FromLegacy(t Tool, description string, schema map[string]any) RichTool {
	return FuncTool{
		BaseTool: BaseTool{ToolName: t.Name(), ToolDescription: description, Schema: schema},
		Fn: func(ctx context.Context, input map[string]any) (string, error) {
			out, err := t.Call(ctx, input)
			if err != nil {
				return "", err
			}
			b, err := json.Marshal(out)
			if err != nil {
				return "", fmt.Errorf("tool: marshal legacy result: %w", err)
			}
			return string(b), nil
		},
	}
}

// Registry resolves tools by name with the executor's normalization rule:
// leading/trailing whitespace trimmed and internal spaces replaced with
// underscores (§4.7 Dispatch).
type Registry struct {
	mu    sync.RWMutex
	tools map[string]RichTool
}

// NewRegistry builds a Registry from an initial tool set.
func NewRegistry(tools ...RichTool) *Registry {
	r := &Registry{tools: make(map[string]RichTool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool under its normalized name.
func (r *Registry) Register(t RichTool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[NormalizeName(t.Name())] = t
}

// Lookup resolves a tool by (unnormalized) name.
func (r *Registry) Lookup(name string) (RichTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[NormalizeName(name)]
	return t, ok
}

// All returns every registered tool, for building ToolSpecs to pass to a
// model.
func (r *Registry) All() []RichTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RichTool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// NormalizeName trims whitespace and replaces internal spaces with
// underscores, matching the executor's tool-name resolution rule.
func NormalizeName(name string) string {
	trimmed := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == ' ' {
			c = '_'
		}
		trimmed = append(trimmed, c)
	}
	return trimSpace(string(trimmed))
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n') {
		end--
	}
	return s[start:end]
}
