package middleware

import (
	"context"
	"fmt"

	"github.com/dshills/langgraph-go/graph/tool"
)

// ActionRequest describes one pending action awaiting human review,
// surfaced via Error.Payload on an Interrupt.
type ActionRequest struct {
	Tool      string         `json:"tool"`
	ToolInput map[string]any `json:"tool_input"`
	Reason    string         `json:"reason"`
}

// InterruptPayload is the payload attached to an Interrupt error: one or
// more pending actions (tool calls, or the final answer) waiting for a
// human decision before the run can continue.
type InterruptPayload struct {
	ActionRequests []ActionRequest `json:"action_requests"`
}

// Decision is what a human supplies to resume a paused run: approve as-is,
// edit the input and approve, or reject outright.
type Decision struct {
	Approved bool
	Edited   map[string]any // if non-nil, replaces the action's ToolInput before execution
}

func decisionKey(kind, name string) string {
	return fmt.Sprintf("hitl_decision_%s_%s", kind, name)
}

// HumanInTheLoop pauses execution before configured tool calls (and
// optionally before finishing) so a human can approve, edit, or reject
// them. Unlike an auto-approving placeholder, this middleware genuinely
// suspends the run: the first pass with no decision on record returns an
// Interrupt, and the executor is expected to persist a checkpoint and
// return control to the caller. Resuming means calling Decide (or setting
// the same custom-data key directly) before replaying the step.
type HumanInTheLoop struct {
	Base

	ApprovalRequiredForToolCalls bool
	ApprovalRequiredForFinish    bool
	InterruptOn                  map[string]bool // per-tool override of the global tool-call setting
}

// NewHumanInTheLoop builds an unconfigured HumanInTheLoop; nothing
// requires approval until InterruptOn entries or the global flags are set.
func NewHumanInTheLoop() *HumanInTheLoop {
	return &HumanInTheLoop{InterruptOn: make(map[string]bool)}
}

func (h *HumanInTheLoop) requiresApprovalForTool(name string) bool {
	if v, ok := h.InterruptOn[name]; ok {
		return v
	}
	return h.ApprovalRequiredForToolCalls
}

// Decide records a human's decision for a specific pending tool call so
// the next pass through BeforeToolCall honors it instead of interrupting
// again.
func Decide(mc *Context, toolName string, d Decision) {
	mc.Set(decisionKey("tool", toolName), d)
}

// DecideFinish records a human's decision on the final answer.
func DecideFinish(mc *Context, d Decision) {
	mc.Set(decisionKey("finish", "_"), d)
}

func (h *HumanInTheLoop) BeforeToolCall(_ context.Context, action AgentAction, _ *tool.Runtime, mc *Context) (*AgentAction, error) {
	if !h.requiresApprovalForTool(action.Tool) {
		return nil, nil
	}

	if raw, ok := mc.Get(decisionKey("tool", action.Tool)); ok && raw != nil {
		mc.Set(decisionKey("tool", action.Tool), nil)
		d, ok := raw.(Decision)
		if !ok {
			return nil, ExecutionError("human_in_the_loop: malformed decision", nil)
		}
		if !d.Approved {
			return nil, RejectTool()
		}
		mc.Set(fmt.Sprintf("human_approved_tool_%s", action.Tool), true)
		if d.Edited != nil {
			edited := action
			edited.ToolInput = d.Edited
			return &edited, nil
		}
		return nil, nil
	}

	return nil, Interrupt(InterruptPayload{ActionRequests: []ActionRequest{{
		Tool:      action.Tool,
		ToolInput: action.ToolInput,
		Reason:    "tool call requires human approval",
	}}})
}

func (h *HumanInTheLoop) BeforeFinish(_ context.Context, finish AgentFinish, _ *tool.Runtime, mc *Context) (*AgentFinish, error) {
	if !h.ApprovalRequiredForFinish {
		return nil, nil
	}

	if raw, ok := mc.Get(decisionKey("finish", "_")); ok && raw != nil {
		mc.Set(decisionKey("finish", "_"), nil)
		d, ok := raw.(Decision)
		if !ok {
			return nil, ExecutionError("human_in_the_loop: malformed decision", nil)
		}
		if !d.Approved {
			return nil, Aborted("human rejected final result")
		}
		mc.Set("human_approved_finish", true)
		return nil, nil
	}

	return nil, Interrupt(InterruptPayload{ActionRequests: []ActionRequest{{
		Reason: "final answer requires human approval",
	}}})
}

var _ Middleware = (*HumanInTheLoop)(nil)
