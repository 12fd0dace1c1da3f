package tool

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaFor derives a JSON Schema object (as a plain map, ready to hand to
// a model provider) for T using struct tags, the same way a RichTool's
// Parameters() method is expected to.
func SchemaFor[T any]() map[string]any {
	r := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	var zero T
	schema := r.Reflect(zero)
	b, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}

// structTool adapts a typed handler into a RichTool by round-tripping the
// raw input map through JSON into T.
type structTool[T any] struct {
	BaseTool
	fn func(ctx context.Context, input T) (string, error)
}

func (s structTool[T]) decode(input map[string]any) (T, error) {
	var zero T
	b, err := json.Marshal(input)
	if err != nil {
		return zero, err
	}
	var typed T
	if err := json.Unmarshal(b, &typed); err != nil {
		return zero, err
	}
	return typed, nil
}

func (s structTool[T]) Run(ctx context.Context, input map[string]any) (string, error) {
	typed, err := s.decode(input)
	if err != nil {
		return "", err
	}
	return s.fn(ctx, typed)
}

func (s structTool[T]) RunWithRuntime(ctx context.Context, input map[string]any, _ *Runtime) (Result, error) {
	text, err := s.Run(ctx, input)
	return Result{Text: text}, err
}

// FromStruct builds a RichTool whose Parameters() is derived from T's JSON
// Schema and whose Run unmarshals the raw input map into T before calling
// fn, giving callers typed tool handlers without hand-writing schemas.
func FromStruct[T any](name, description string, fn func(ctx context.Context, input T) (string, error)) RichTool {
	return structTool[T]{
		BaseTool: BaseTool{ToolName: name, ToolDescription: description, Schema: SchemaFor[T]()},
		fn:       fn,
	}
}
