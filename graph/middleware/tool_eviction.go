package middleware

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/dshills/langgraph-go/graph/tool"
)

// ToolEvictionNamespace is the fixed Store namespace large tool results
// are written under before being replaced with a preview.
var ToolEvictionNamespace = []string{"tool_eviction"}

const defaultPreviewChars = 1500

// ToolResultEviction writes oversized tool observations to the runtime
// Store and replaces the in-context observation with a short preview plus
// a pointer to the full value, preventing a single large tool result from
// saturating the context window.
type ToolResultEviction struct {
	Base

	TokenLimit   int // 0 disables eviction
	PreviewChars int
	encoding     *tiktoken.Tiktoken
}

// NewToolResultEviction builds a ToolResultEviction using the cl100k_base
// encoding (the GPT-3.5/4-family tokenizer) for token estimation, with the
// reference default limit of 20000 tokens.
func NewToolResultEviction() *ToolResultEviction {
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &ToolResultEviction{TokenLimit: 20000, PreviewChars: defaultPreviewChars, encoding: enc}
}

func (e *ToolResultEviction) estimatedTokens(observation string) int {
	if e.encoding != nil {
		return len(e.encoding.Encode(observation, nil, nil))
	}
	return len([]rune(observation)) / 4
}

func (e *ToolResultEviction) AfterToolCall(ctx context.Context, action AgentAction, observation string, rt *tool.Runtime, _ *Context) (*string, error) {
	if e.TokenLimit == 0 || rt == nil || rt.Store == nil {
		return nil, nil
	}
	if e.estimatedTokens(observation) <= e.TokenLimit {
		return nil, nil
	}

	key := action.ToolCallID
	if key == "" {
		key = "unknown"
	}
	if err := rt.Store.Put(ctx, ToolEvictionNamespace, key, observation); err != nil {
		return nil, ExecutionError("tool eviction store write", err)
	}

	runes := []rune(observation)
	preview := observation
	if len(runes) > e.PreviewChars {
		preview = string(runes[:e.PreviewChars]) + "\n\n... [truncated]"
	}
	notice := fmt.Sprintf("\n\n[Full output (%d chars) written to store key tool_eviction/%s]. You can read it via the store if needed.", len(observation), key)
	result := preview + notice
	return &result, nil
}

var _ Middleware = (*ToolResultEviction)(nil)
