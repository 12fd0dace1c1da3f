package agent

import (
	"context"
	"testing"

	"github.com/dshills/langgraph-go/graph/emit"
	"github.com/dshills/langgraph-go/graph/middleware"
	"github.com/dshills/langgraph-go/graph/model"
	"github.com/dshills/langgraph-go/graph/tool"
)

// recordingMiddleware records every BeforeModelCall/AfterModelCall
// invocation it sees and, if SystemSuffix is set, appends a system message
// to the outgoing request to prove BeforeModelCall's mutation is honored.
type recordingMiddleware struct {
	middleware.Base
	SystemSuffix string
	beforeCalls  int
	afterCalls   int
	lastRespText string
}

func (r *recordingMiddleware) BeforeModelCall(_ context.Context, req middleware.ModelRequest, _ *middleware.Context) (*middleware.ModelRequest, error) {
	r.beforeCalls++
	if r.SystemSuffix == "" {
		return nil, nil
	}
	req.Messages = append(req.Messages, model.Message{Role: model.RoleSystem, Content: r.SystemSuffix})
	return &req, nil
}

func (r *recordingMiddleware) AfterModelCall(_ context.Context, resp middleware.ModelResponse, _ *middleware.Context) (*middleware.ModelResponse, error) {
	r.afterCalls++
	r.lastRespText = resp.Out.Text
	return nil, nil
}

func TestLLMAgentPlanReturnsFinishOnPlainText(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "the answer is 4"}}}
	a := NewLLMAgent(mock)

	event, err := a.Plan(context.Background(), nil, middleware.PromptArgs{"input": "what is 2+2?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Finish == nil || event.Finish.Output != "the answer is 4" {
		t.Fatalf("expected finish event, got %+v", event)
	}
}

func TestLLMAgentPlanReturnsActionOnToolCall(t *testing.T) {
	mock := &model.MockChatModel{
		Responses: []model.ChatOut{
			{Text: "using a tool", ToolCalls: []model.ToolCall{{Name: "search", Input: map[string]any{"q": "go"}}}},
		},
	}
	a := NewLLMAgent(mock, tool.FuncTool{BaseTool: tool.BaseTool{ToolName: "search"}})

	event, err := a.Plan(context.Background(), nil, middleware.PromptArgs{"input": "look something up"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Action == nil || event.Action.Tool != "search" {
		t.Fatalf("expected action event for 'search', got %+v", event)
	}
	if event.Action.ToolInput["q"] != "go" {
		t.Fatalf("expected tool input to round-trip, got %+v", event.Action.ToolInput)
	}
}

func TestLLMAgentBuildMessagesIncludesHistoryAndSteps(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "done"}}}
	a := NewLLMAgent(mock)
	a.SystemPrompt = "be concise"

	history := MessagesToAny([]Message{
		NewHumanMessage("hello"),
		NewAIMessage("hi there"),
	})
	steps := []middleware.Step{
		{Action: middleware.AgentAction{Tool: "search", ToolInput: map[string]any{"q": "go"}}, Observation: "found it"},
	}

	_, err := a.Plan(context.Background(), steps, middleware.PromptArgs{
		"input":        "what next?",
		"chat_history": history,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.CallCount() != 1 {
		t.Fatalf("expected exactly one model call, got %d", mock.CallCount())
	}
	msgs := mock.Calls[0].Messages
	if len(msgs) == 0 || msgs[0].Role != model.RoleSystem || msgs[0].Content != "be concise" {
		t.Fatalf("expected system prompt first, got %+v", msgs)
	}
	last := msgs[len(msgs)-1]
	if last.Role != model.RoleUser || last.Content != "what next?" {
		t.Fatalf("expected current input last, got %+v", last)
	}

	foundObservation := false
	for _, m := range msgs {
		if m.Content == "found it" {
			foundObservation = true
		}
	}
	if !foundObservation {
		t.Fatalf("expected prior step's observation to appear in messages, got %+v", msgs)
	}
}

func TestLLMAgentToolSpecsReflectRegisteredTools(t *testing.T) {
	mock := &model.MockChatModel{}
	a := NewLLMAgent(mock,
		tool.FuncTool{BaseTool: tool.BaseTool{ToolName: "alpha", ToolDescription: "does alpha things"}},
		tool.FuncTool{BaseTool: tool.BaseTool{ToolName: "beta", ToolDescription: "does beta things"}},
	)

	specs := a.toolSpecs()
	if len(specs) != 2 {
		t.Fatalf("expected 2 tool specs, got %d", len(specs))
	}
	if specs[0].Name != "alpha" || specs[0].Description != "does alpha things" {
		t.Fatalf("unexpected first spec: %+v", specs[0])
	}
}

func TestLLMAgentPlanInvokesModelCallHooksAndStreams(t *testing.T) {
	mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "hi there"}}}
	a := NewLLMAgent(mock)

	rm := &recordingMiddleware{SystemSuffix: "be terse"}
	chain := middleware.NewChain(rm)
	mc := middleware.NewContext()
	mc.Set("node_id", "chat")

	ctx := middleware.WithChain(context.Background(), chain)
	ctx = middleware.WithRunContext(ctx, mc)

	var chunks []emit.StreamChunk
	ctx = withStreamWrite(ctx, func(event any) {
		if c, ok := event.(emit.StreamChunk); ok {
			chunks = append(chunks, c)
		}
	})

	event, err := a.Plan(ctx, nil, middleware.PromptArgs{"input": "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Finish == nil || event.Finish.Output != "hi there" {
		t.Fatalf("unexpected event: %+v", event)
	}

	if rm.beforeCalls != 1 || rm.afterCalls != 1 {
		t.Fatalf("expected hooks invoked once each, got before=%d after=%d", rm.beforeCalls, rm.afterCalls)
	}
	if rm.lastRespText != "hi there" {
		t.Fatalf("expected AfterModelCall to see model output, got %q", rm.lastRespText)
	}

	last := mock.Calls[0].Messages[len(mock.Calls[0].Messages)-1]
	if last.Role != model.RoleSystem || last.Content != "be terse" {
		t.Fatalf("expected BeforeModelCall's appended message to reach the model, got %+v", mock.Calls[0].Messages)
	}

	if len(chunks) != 1 || chunks[0].Mode != emit.StreamModeMessages {
		t.Fatalf("expected one StreamModeMessages chunk, got %+v", chunks)
	}
	if chunks[0].Metadata == nil || chunks[0].Metadata.LanggraphNode != "chat" {
		t.Fatalf("expected chunk metadata to carry node_id from middleware.Context, got %+v", chunks[0].Metadata)
	}
}
