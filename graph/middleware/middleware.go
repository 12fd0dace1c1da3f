// Package middleware provides interception hooks around the agent
// plan/act loop (graph/agent): before/after planning, before/after tool
// calls, and before/after finish, plus model-call hooks for context
// engineering concerns (prompt injection, response shaping).
package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dshills/langgraph-go/graph/model"
	"github.com/dshills/langgraph-go/graph/tool"
)

// PromptArgs is the loosely-typed bag of template variables handed to the
// agent's prompt builder; kept as a map (not a struct) because middleware
// needs to inspect and rewrite arbitrary keys ("input", "messages", ...).
type PromptArgs map[string]any

// AgentAction is a single tool invocation the agent planner decided on.
type AgentAction struct {
	Tool       string
	ToolInput  map[string]any
	Log        string
	ToolCallID string
}

// AgentFinish is the agent's terminal output.
type AgentFinish struct {
	Output       string
	ReturnValues map[string]any
}

// AgentEvent is the sum of what a planning step can produce: a next
// action to take, or a finish. Exactly one of Action/Finish is non-nil.
type AgentEvent struct {
	Action *AgentAction
	Finish *AgentFinish
}

// Step records one completed (action, observation) pair in agent history.
type Step struct {
	Action      AgentAction
	Observation string
}

// ModelRequest is the payload BeforeModelCall receives: the exact messages
// and tool specs about to be sent to the chat model, mutable so middleware
// can inject, redact, or reorder context before the call is made.
type ModelRequest struct {
	Messages []model.Message
	Tools    []model.ToolSpec
}

// ModelResponse is the payload AfterModelCall receives: the model's raw
// output, mutable so middleware can filter or rewrite it before the
// executor interprets it as an action or a finish.
type ModelResponse struct {
	Out model.ChatOut
}

// Sentinel error kinds a Middleware can return. Aborted/ValidationError
// stop the loop with a user-facing error; Interrupt pauses execution and
// asks the caller to resume later; RejectTool skips the pending tool call
// and injects a fixed observation instead of executing it.
var (
	ErrAborted    = errors.New("middleware: aborted execution")
	ErrRejectTool = errors.New("middleware: tool call rejected")
)

// Error wraps a middleware failure with its kind and (for Interrupt) a
// caller-defined payload describing what input is needed to resume.
type Error struct {
	Kind    string // "execution", "validation", "aborted", "interrupt", "reject_tool"
	Message string
	Payload any // set only for Kind == "interrupt"
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

// ExecutionError reports an unexpected internal failure in a middleware.
func ExecutionError(format string, err error) *Error {
	return &Error{Kind: "execution", Message: format, Err: err}
}

// ValidationError reports that the middleware rejected the input/output
// on policy grounds (e.g. rate limit exceeded).
func ValidationError(message string) *Error {
	return &Error{Kind: "validation", Message: message, Err: ErrAborted}
}

// Aborted reports that the middleware is deliberately halting the run.
func Aborted(message string) *Error {
	return &Error{Kind: "aborted", Message: message, Err: ErrAborted}
}

// Interrupt pauses the run and surfaces payload to the caller so a human
// (or external system) can supply the missing input before resuming.
func Interrupt(payload any) *Error {
	return &Error{Kind: "interrupt", Message: "execution interrupted", Payload: payload}
}

// RejectTool signals the executor to skip the pending tool call.
func RejectTool() *Error {
	return &Error{Kind: "reject_tool", Message: "tool call rejected by user", Err: ErrRejectTool}
}

// Context carries stateful information threaded through one agent run
// across all middleware hook invocations.
type Context struct {
	Iteration     int
	StartTime     time.Time
	ToolCallCount int

	mu         sync.Mutex
	customData map[string]any
}

// NewContext starts a fresh middleware context for a run.
func NewContext() *Context {
	return &Context{StartTime: time.Now(), customData: make(map[string]any)}
}

func (c *Context) IncrementIteration()     { c.Iteration++ }
func (c *Context) IncrementToolCallCount() { c.ToolCallCount++ }

func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.customData[key]
	return v, ok
}

func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customData[key] = value
}

// runCtxKey namespaces the context keys Executor uses to hand its Chain and
// *Context down to an Agent.Plan implementation that needs to run the
// BeforeModelCall/AfterModelCall hooks around its own model call, without
// widening the Agent interface itself.
type runCtxKey string

const (
	chainCtxKey   runCtxKey = "langgraph.middleware_chain"
	runCtxKeyName runCtxKey = "langgraph.middleware_context"
)

// WithChain attaches chain to ctx so an Agent.Plan implementation can find
// it via ChainFrom.
func WithChain(ctx context.Context, chain *Chain) context.Context {
	return context.WithValue(ctx, chainCtxKey, chain)
}

// ChainFrom recovers the Chain attached via WithChain, or nil if none.
func ChainFrom(ctx context.Context) *Chain {
	c, _ := ctx.Value(chainCtxKey).(*Chain)
	return c
}

// WithRunContext attaches mc to ctx so an Agent.Plan implementation can
// find it via RunContextFrom.
func WithRunContext(ctx context.Context, mc *Context) context.Context {
	return context.WithValue(ctx, runCtxKeyName, mc)
}

// RunContextFrom recovers the *Context attached via WithRunContext, or nil
// if none.
func RunContextFrom(ctx context.Context) *Context {
	mc, _ := ctx.Value(runCtxKeyName).(*Context)
	return mc
}

// Middleware intercepts the agent loop at each of its natural seams.
// Every method returning (T, error) follows the same convention: a nil
// T with nil error means "use the original value unchanged"; a non-nil T
// replaces it; a non-nil error (typically built via ValidationError,
// Aborted, Interrupt, or RejectTool) stops or redirects the loop.
type Middleware interface {
	BeforeAgentPlan(ctx context.Context, input PromptArgs, steps []Step, mc *Context) (PromptArgs, error)
	AfterAgentPlan(ctx context.Context, input PromptArgs, event AgentEvent, mc *Context) (*AgentEvent, error)
	BeforeModelCall(ctx context.Context, req ModelRequest, mc *Context) (*ModelRequest, error)
	AfterModelCall(ctx context.Context, resp ModelResponse, mc *Context) (*ModelResponse, error)
	BeforeToolCall(ctx context.Context, action AgentAction, rt *tool.Runtime, mc *Context) (*AgentAction, error)
	AfterToolCall(ctx context.Context, action AgentAction, observation string, rt *tool.Runtime, mc *Context) (*string, error)
	BeforeFinish(ctx context.Context, finish AgentFinish, rt *tool.Runtime, mc *Context) (*AgentFinish, error)
	AfterFinish(ctx context.Context, finish AgentFinish, rt *tool.Runtime, mc *Context) error
}

// Base implements every Middleware hook as a no-op, so concrete
// middlewares only need to override the hooks they actually use.
type Base struct{}

func (Base) BeforeAgentPlan(context.Context, PromptArgs, []Step, *Context) (PromptArgs, error) {
	return nil, nil
}
func (Base) AfterAgentPlan(context.Context, PromptArgs, AgentEvent, *Context) (*AgentEvent, error) {
	return nil, nil
}
func (Base) BeforeModelCall(context.Context, ModelRequest, *Context) (*ModelRequest, error) {
	return nil, nil
}
func (Base) AfterModelCall(context.Context, ModelResponse, *Context) (*ModelResponse, error) {
	return nil, nil
}
func (Base) BeforeToolCall(context.Context, AgentAction, *tool.Runtime, *Context) (*AgentAction, error) {
	return nil, nil
}
func (Base) AfterToolCall(context.Context, AgentAction, string, *tool.Runtime, *Context) (*string, error) {
	return nil, nil
}
func (Base) BeforeFinish(context.Context, AgentFinish, *tool.Runtime, *Context) (*AgentFinish, error) {
	return nil, nil
}
func (Base) AfterFinish(context.Context, AgentFinish, *tool.Runtime, *Context) error {
	return nil
}
