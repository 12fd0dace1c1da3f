package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/langgraph-go/graph/filebackend"
	"github.com/dshills/langgraph-go/graph/memstore"
	"github.com/dshills/langgraph-go/graph/middleware"
	"github.com/dshills/langgraph-go/graph/tool"
)

// streamWriteCtxKey threads Executor.StreamWrite down to an Agent.Plan
// implementation (LLMAgent, notably) that needs to publish StreamModeMessages
// chunks as it calls the model, without adding a StreamWrite parameter to
// the Agent interface itself.
type streamWriteCtxKey struct{}

func withStreamWrite(ctx context.Context, fn func(event any)) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, streamWriteCtxKey{}, fn)
}

func streamWriteFrom(ctx context.Context) func(event any) {
	fn, _ := ctx.Value(streamWriteCtxKey{}).(func(event any))
	return fn
}

// ErrToolNotFound is returned when an agent requests a tool name that
// isn't registered with the executor.
var ErrToolNotFound = errors.New("agent: tool not found")

// ErrMaxIterations names the iteration-cap condition. Run does not return
// it: when the configured cap is reached without the agent finishing, Run
// returns a Result whose Output is "Max iterations reached" and a nil error.
var ErrMaxIterations = errors.New("agent: max iterations reached")

// InterruptError is returned from Executor.Run when a middleware pauses
// execution (graph/middleware.HumanInTheLoop, most notably). The caller is
// expected to persist enough state to resume later (via the graph
// engine's checkpointer) and, once a human decision is available, record
// it with middleware.Decide/DecideFinish before replaying the step.
type InterruptError struct {
	Payload any
}

func (e *InterruptError) Error() string { return "agent: execution interrupted" }

// Executor runs one Agent through the plan/act loop described in
// original_source/src/agent/executor.rs: before/after hooks bracket every
// seam (plan, tool call, finish), dangling tool calls from an interrupted
// prior turn are repaired before the loop starts, and a Command a tool
// attaches to its Result is applied to State once the step is recorded.
type Executor struct {
	Agent         Agent
	MaxIterations int
	BreakIfError  bool

	State       *AgentState
	ExecContext map[string]any
	Store       memstore.Store
	FileBackend filebackend.FileBackend
	StreamWrite func(event any)

	// NodeID identifies the graph.AgentNode hosting this Executor, if any.
	// Set into the run's middleware.Context under "node_id" so an Agent
	// implementation (LLMAgent, notably) can tag its StreamModeMessages
	// chunks with the originating node without the Agent interface needing
	// to know about graph nodes at all.
	NodeID string

	Chain *middleware.Chain
}

// NewExecutor builds an Executor with the reference default of 10 max
// iterations and no middleware.
func NewExecutor(a Agent) *Executor {
	return &Executor{
		Agent:         a,
		MaxIterations: 10,
		State:         NewAgentState(),
		ExecContext:   make(map[string]any),
		Chain:         middleware.NewChain(),
	}
}

func (e *Executor) WithMaxIterations(n int) *Executor  { e.MaxIterations = n; return e }
func (e *Executor) WithBreakIfError(v bool) *Executor  { e.BreakIfError = v; return e }
func (e *Executor) WithState(s *AgentState) *Executor  { e.State = s; return e }
func (e *Executor) WithStore(s memstore.Store) *Executor {
	e.Store = s
	return e
}
func (e *Executor) WithFileBackend(fb filebackend.FileBackend) *Executor {
	e.FileBackend = fb
	return e
}
func (e *Executor) WithContext(ctx map[string]any) *Executor { e.ExecContext = ctx; return e }
func (e *Executor) WithNodeID(id string) *Executor { e.NodeID = id; return e }
func (e *Executor) WithStreamWrite(fn func(event any)) *Executor {
	e.StreamWrite = fn
	return e
}
func (e *Executor) WithMiddleware(mw ...middleware.Middleware) *Executor {
	e.Chain = middleware.NewChain(mw...)
	return e
}

// convertMessagesToPromptArgs mirrors the reference's message-based-input
// adapter: when callers pass a "messages" list instead of "input"/
// "chat_history" directly, extract the last human message as the turn's
// input and keep the rest as chat_history.
func convertMessagesToPromptArgs(input middleware.PromptArgs) (middleware.PromptArgs, error) {
	raw, ok := input["messages"]
	if !ok {
		return nil, fmt.Errorf("agent: missing 'messages' key")
	}
	messages := MessagesFromAny(raw)

	text := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Type == HumanMessage {
			text = messages[i].Content
			break
		}
	}
	if text == "" && len(messages) > 0 {
		text = messages[len(messages)-1].Content
	}

	out := middleware.PromptArgs{"input": text}
	if ch, ok := input["chat_history"]; ok {
		out["chat_history"] = ch
	} else {
		out["chat_history"] = MessagesToAny(messages)
	}
	for k, v := range input {
		if k != "messages" && k != "chat_history" {
			out[k] = v
		}
	}
	return out, nil
}

func toolNameToMap(tools []tool.RichTool) map[string]tool.RichTool {
	out := make(map[string]tool.RichTool, len(tools))
	for _, t := range tools {
		out[tool.NormalizeName(t.Name())] = t
	}
	return out
}

func classifyMiddlewareError(err error) error {
	var mwErr *middleware.Error
	if errors.As(err, &mwErr) && mwErr.Kind == "interrupt" {
		return &InterruptError{Payload: mwErr.Payload}
	}
	return err
}

// Run executes the agent loop to completion: planning, dispatching tool
// calls, and applying middleware at every hook, until the agent finishes,
// a middleware aborts or interrupts the run, or MaxIterations is reached.
func (e *Executor) Run(ctx context.Context, input middleware.PromptArgs) (Result, error) {
	if _, ok := input["messages"]; ok {
		converted, err := convertMessagesToPromptArgs(input)
		if err != nil {
			return Result{}, err
		}
		input = converted
	}

	if history := MessagesFromAny(input["chat_history"]); history != nil {
		repaired := RepairDanglingToolCalls(history)
		out := make(middleware.PromptArgs, len(input))
		for k, v := range input {
			out[k] = v
		}
		out["chat_history"] = MessagesToAny(repaired)
		input = out
	}

	nameToTools := toolNameToMap(e.Agent.Tools())
	var steps []middleware.Step
	mc := middleware.NewContext()
	if e.NodeID != "" {
		mc.Set("node_id", e.NodeID)
	}

	ctx = middleware.WithChain(ctx, e.Chain)
	ctx = middleware.WithRunContext(ctx, mc)
	ctx = withStreamWrite(ctx, e.StreamWrite)

	rt := &tool.Runtime{
		State:       e.State,
		Context:     e.ExecContext,
		Store:       e.Store,
		StreamWrite: e.StreamWrite,
		FileBackend: e.FileBackend,
	}

	for {
		mc.IncrementIteration()

		planInput := input
		if modified, err := e.Chain.BeforeAgentPlan(ctx, input, steps, mc); err != nil {
			return Result{}, classifyMiddlewareError(err)
		} else if modified != nil {
			planInput = modified
		}

		event, err := e.Agent.Plan(ctx, steps, planInput)
		if err != nil {
			return Result{}, fmt.Errorf("agent: plan failed: %w", err)
		}

		if modified, err := e.Chain.AfterAgentPlan(ctx, planInput, event, mc); err != nil {
			return Result{}, classifyMiddlewareError(err)
		} else if modified != nil {
			event = *modified
		}

		switch {
		case event.Action != nil:
			action := *event.Action

			modifiedAction, err := e.Chain.BeforeToolCall(ctx, action, rt, mc)
			if err != nil {
				var mwErr *middleware.Error
				if errors.As(err, &mwErr) && mwErr.Kind == "reject_tool" {
					steps = append(steps, middleware.Step{Action: action, Observation: "Tool call rejected by user."})
					continue
				}
				return Result{}, classifyMiddlewareError(err)
			}
			if modifiedAction != nil {
				action = *modifiedAction
			}

			mc.IncrementToolCallCount()
			observation, cmd, err := e.callTool(ctx, action, rt, len(steps), nameToTools)
			if err != nil {
				if e.BreakIfError {
					return Result{}, err
				}
				observation = fmt.Sprintf("The tool returned the following error: %v", err)
			}

			if modifiedObs, err := e.Chain.AfterToolCall(ctx, action, observation, rt, mc); err != nil {
				return Result{}, classifyMiddlewareError(err)
			} else if modifiedObs != nil {
				observation = *modifiedObs
			}

			steps = append(steps, middleware.Step{Action: action, Observation: observation})
			if c, ok := cmd.(Command); ok {
				ApplyCommand(e.State, c)
			}

		case event.Finish != nil:
			finish := *event.Finish

			if modified, err := e.Chain.BeforeFinish(ctx, finish, rt, mc); err != nil {
				return Result{}, classifyMiddlewareError(err)
			} else if modified != nil {
				finish = *modified
			}

			result := Result{Output: finish.Output, ReturnValues: finish.ReturnValues}

			e.persistMemory(ctx, input, steps, finish)

			if err := e.Chain.AfterFinish(ctx, finish, rt, mc); err != nil {
				return Result{}, classifyMiddlewareError(err)
			}

			return result, nil

		default:
			return Result{}, fmt.Errorf("agent: plan returned neither an action nor a finish")
		}

		if e.MaxIterations > 0 && len(steps) >= e.MaxIterations {
			return Result{Output: "Max iterations reached"}, nil
		}
	}
}

func (e *Executor) callTool(ctx context.Context, action middleware.AgentAction, rt *tool.Runtime, stepIndex int, nameToTools map[string]tool.RichTool) (string, any, error) {
	t, ok := nameToTools[tool.NormalizeName(action.Tool)]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrToolNotFound, action.Tool)
	}

	if !t.RequiresRuntime() {
		out, err := t.Run(ctx, action.ToolInput)
		return out, nil, err
	}

	callRT := *rt
	callRT.ToolCallID = fmt.Sprintf("call_%d", stepIndex)
	parsed, err := t.ParseInput(action.ToolInput)
	if err != nil {
		return "", nil, err
	}
	result, err := t.RunWithRuntime(ctx, parsed, &callRT)
	if err != nil {
		return "", nil, err
	}
	return result.Text, result.Command, nil
}

// memoryNamespace scopes a run's persisted transcript under the caller's
// thread_id (set via Executor.ExecContext), so concurrent threads sharing
// one Store don't overwrite each other's history. Runs with no thread_id
// fall back to a single shared "default" thread.
func memoryNamespace(execCtx map[string]any) []string {
	if tid, ok := execCtx["thread_id"].(string); ok && tid != "" {
		return []string{"agent", tid}
	}
	return []string{"agent", "default"}
}

// persistMemory writes the completed turn's transcript - the user input,
// the interleaved AI-tool-call/tool-observation pairs, and the final AI
// message - to long-term memory (§C2, §4.7). A nil Store means the caller
// never opted into memory; a write failure is logged as a stream event but
// does not fail the run, since the agent already has its answer.
func (e *Executor) persistMemory(ctx context.Context, input middleware.PromptArgs, steps []middleware.Step, finish middleware.AgentFinish) {
	if e.Store == nil {
		return
	}

	var transcript []Message
	if s, ok := input["input"].(string); ok && s != "" {
		transcript = append(transcript, NewHumanMessage(s))
	}
	for i, step := range steps {
		callID := fmt.Sprintf("call_%d", i)
		transcript = append(transcript, Message{
			Type:      AIMessage,
			Content:   step.Action.Log,
			ToolCalls: []ToolCallRef{{ID: callID, Name: step.Action.Tool, Input: step.Action.ToolInput}},
		})
		transcript = append(transcript, NewToolMessage(step.Observation, callID))
	}
	transcript = append(transcript, NewAIMessage(finish.Output))

	namespace := memoryNamespace(e.ExecContext)
	key := fmt.Sprintf("turn_%d", time.Now().UnixNano())
	if err := e.Store.Put(ctx, namespace, key, MessagesToAny(transcript)); err != nil {
		if write := streamWriteFrom(ctx); write != nil {
			write(fmt.Sprintf("agent: memory write failed: %v", err))
		}
	}
}

var _ tool.SharedState = (*AgentState)(nil)
