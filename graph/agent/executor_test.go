package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/langgraph-go/graph/memstore"
	"github.com/dshills/langgraph-go/graph/middleware"
	"github.com/dshills/langgraph-go/graph/tool"
)

// scriptedAgent replays a fixed sequence of AgentEvents, one per Plan call,
// so executor tests can drive the loop deterministically without a real
// model.
type scriptedAgent struct {
	events []middleware.AgentEvent
	tools  []tool.RichTool
	calls  int
}

func (s *scriptedAgent) Plan(_ context.Context, _ []middleware.Step, _ middleware.PromptArgs) (middleware.AgentEvent, error) {
	if s.calls >= len(s.events) {
		return middleware.AgentEvent{Finish: &middleware.AgentFinish{Output: "done"}}, nil
	}
	e := s.events[s.calls]
	s.calls++
	return e, nil
}

func (s *scriptedAgent) Tools() []tool.RichTool { return s.tools }

func echoTool() tool.RichTool {
	return tool.FuncTool{
		BaseTool: tool.BaseTool{ToolName: "echo"},
		Fn: func(_ context.Context, input map[string]any) (string, error) {
			return "echoed: " + input["text"].(string), nil
		},
	}
}

func TestExecutorRunsToFinish(t *testing.T) {
	a := &scriptedAgent{
		events: []middleware.AgentEvent{
			{Action: &middleware.AgentAction{Tool: "echo", ToolInput: map[string]any{"text": "hi"}}},
			{Finish: &middleware.AgentFinish{Output: "final answer"}},
		},
		tools: []tool.RichTool{echoTool()},
	}
	ex := NewExecutor(a)

	result, err := ex.Run(context.Background(), middleware.PromptArgs{"input": "go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "final answer" {
		t.Fatalf("unexpected output: %q", result.Output)
	}
}

func TestExecutorHandlesToolNotFound(t *testing.T) {
	a := &scriptedAgent{
		events: []middleware.AgentEvent{
			{Action: &middleware.AgentAction{Tool: "missing", ToolInput: map[string]any{}}},
			{Finish: &middleware.AgentFinish{Output: "final"}},
		},
	}
	ex := NewExecutor(a)

	result, err := ex.Run(context.Background(), middleware.PromptArgs{"input": "go"})
	if err != nil {
		t.Fatalf("unexpected error (BreakIfError is false): %v", err)
	}
	if result.Output != "final" {
		t.Fatalf("unexpected output: %q", result.Output)
	}
}

func TestExecutorBreakIfErrorStopsOnToolFailure(t *testing.T) {
	a := &scriptedAgent{
		events: []middleware.AgentEvent{
			{Action: &middleware.AgentAction{Tool: "missing", ToolInput: map[string]any{}}},
		},
	}
	ex := NewExecutor(a).WithBreakIfError(true)

	_, err := ex.Run(context.Background(), middleware.PromptArgs{"input": "go"})
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestExecutorRespectsMaxIterations(t *testing.T) {
	var events []middleware.AgentEvent
	for i := 0; i < 20; i++ {
		events = append(events, middleware.AgentEvent{Action: &middleware.AgentAction{Tool: "echo", ToolInput: map[string]any{"text": "x"}}})
	}
	a := &scriptedAgent{events: events, tools: []tool.RichTool{echoTool()}}
	ex := NewExecutor(a).WithMaxIterations(3)

	result, err := ex.Run(context.Background(), middleware.PromptArgs{"input": "go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Output, "Max iterations") {
		t.Fatalf("expected max-iterations output, got %q", result.Output)
	}
}

func TestExecutorAppliesMiddlewareContentFilter(t *testing.T) {
	a := &scriptedAgent{
		events: []middleware.AgentEvent{{Finish: &middleware.AgentFinish{Output: "final"}}},
	}
	ex := NewExecutor(a).WithMiddleware(middleware.NewContentFilter("forbidden"))

	_, err := ex.Run(context.Background(), middleware.PromptArgs{"input": "this contains forbidden text"})
	if err == nil {
		t.Fatal("expected content filter to abort the run")
	}
}

func TestExecutorInterruptPropagatesFromHumanInTheLoop(t *testing.T) {
	a := &scriptedAgent{
		events: []middleware.AgentEvent{
			{Action: &middleware.AgentAction{Tool: "echo", ToolInput: map[string]any{"text": "hi"}}},
		},
		tools: []tool.RichTool{echoTool()},
	}
	h := middleware.NewHumanInTheLoop()
	h.ApprovalRequiredForToolCalls = true
	ex := NewExecutor(a).WithMiddleware(h)

	_, err := ex.Run(context.Background(), middleware.PromptArgs{"input": "go"})
	var interruptErr *InterruptError
	if !errors.As(err, &interruptErr) {
		t.Fatalf("expected InterruptError, got %v", err)
	}
}

func TestExecutorResumesAfterHumanDecision(t *testing.T) {
	a := &scriptedAgent{
		events: []middleware.AgentEvent{
			{Action: &middleware.AgentAction{Tool: "echo", ToolInput: map[string]any{"text": "hi"}}},
			{Finish: &middleware.AgentFinish{Output: "final"}},
		},
		tools: []tool.RichTool{echoTool()},
	}
	h := middleware.NewHumanInTheLoop()
	h.ApprovalRequiredForToolCalls = true
	ex := NewExecutor(a).WithMiddleware(h)

	// First run interrupts before the tool call.
	_, err := ex.Run(context.Background(), middleware.PromptArgs{"input": "go"})
	var interruptErr *InterruptError
	if !errors.As(err, &interruptErr) {
		t.Fatalf("expected interrupt on first run, got %v", err)
	}

	// A fresh executor run with the decision pre-recorded in a context a
	// real caller would have persisted across the checkpoint boundary.
	// Since Executor.Run creates its own middleware.Context internally,
	// this test instead exercises the lower-level hook directly to prove
	// the decision/consume contract middleware.HumanInTheLoop provides.
	mc := middleware.NewContext()
	middleware.Decide(mc, "echo", middleware.Decision{Approved: true})
	out, err := h.BeforeToolCall(context.Background(), middleware.AgentAction{Tool: "echo"}, nil, mc)
	if err != nil {
		t.Fatalf("unexpected error after approval: %v", err)
	}
	if out != nil {
		t.Fatalf("expected unchanged action on approval, got %v", out)
	}
}

func TestExecutorPersistsTranscriptToMemoryOnFinish(t *testing.T) {
	a := &scriptedAgent{
		events: []middleware.AgentEvent{
			{Action: &middleware.AgentAction{Tool: "echo", ToolInput: map[string]any{"text": "hi-req"}}},
			{Finish: &middleware.AgentFinish{Output: "done"}},
		},
		tools: []tool.RichTool{echoTool()},
	}
	store := memstore.NewMemStore(nil)
	ex := NewExecutor(a).WithStore(store).WithContext(map[string]any{"thread_id": "t1"})

	result, err := ex.Run(context.Background(), middleware.PromptArgs{"input": "hi-req"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "done" {
		t.Fatalf("unexpected output: %q", result.Output)
	}

	items, err := store.Search(context.Background(), []string{"agent", "t1"}, "", 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected exactly one persisted turn, got %d", len(items))
	}

	transcript := MessagesFromAny(items[0].Value)
	if len(transcript) != 4 {
		t.Fatalf("expected 4 messages (human, ai-tool-call, tool, ai-finish), got %d: %+v", len(transcript), transcript)
	}
	if transcript[0].Type != HumanMessage || transcript[0].Content != "hi-req" {
		t.Fatalf("unexpected first message: %+v", transcript[0])
	}
	if transcript[1].Type != AIMessage || len(transcript[1].ToolCalls) != 1 || transcript[1].ToolCalls[0].Name != "echo" {
		t.Fatalf("unexpected tool-call message: %+v", transcript[1])
	}
	if transcript[2].Type != ToolMessageT || transcript[2].Content != "echoed: hi-req" {
		t.Fatalf("unexpected tool-observation message: %+v", transcript[2])
	}
	if transcript[3].Type != AIMessage || transcript[3].Content != "done" {
		t.Fatalf("unexpected final message: %+v", transcript[3])
	}
}

func TestExecutorSkipsMemoryPersistenceWithoutStore(t *testing.T) {
	a := &scriptedAgent{events: []middleware.AgentEvent{{Finish: &middleware.AgentFinish{Output: "ok"}}}}
	ex := NewExecutor(a)

	if _, err := ex.Run(context.Background(), middleware.PromptArgs{"input": "go"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
