package middleware

import (
	"context"
	"testing"
)

type recordingMiddleware struct {
	Base
	name   string
	events *[]string
}

func (r *recordingMiddleware) BeforeAgentPlan(_ context.Context, _ PromptArgs, _ []Step, _ *Context) (PromptArgs, error) {
	*r.events = append(*r.events, r.name)
	return nil, nil
}

func TestChainRunsInRegistrationOrder(t *testing.T) {
	var events []string
	chain := NewChain(
		&recordingMiddleware{name: "first", events: &events},
		&recordingMiddleware{name: "second", events: &events},
	)

	out, err := chain.BeforeAgentPlan(context.Background(), PromptArgs{}, nil, NewContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil (unchanged), got %v", out)
	}
	if len(events) != 2 || events[0] != "first" || events[1] != "second" {
		t.Fatalf("unexpected order: %v", events)
	}
}

type replacingMiddleware struct{ Base }

func (replacingMiddleware) BeforeAgentPlan(_ context.Context, _ PromptArgs, _ []Step, _ *Context) (PromptArgs, error) {
	return PromptArgs{"input": "replaced"}, nil
}

func TestChainPropagatesReplacement(t *testing.T) {
	var events []string
	chain := NewChain(replacingMiddleware{}, &recordingMiddleware{name: "x", events: &events})

	out, err := chain.BeforeAgentPlan(context.Background(), PromptArgs{"input": "orig"}, nil, NewContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil || (*out)["input"] != "replaced" {
		t.Fatalf("expected replaced input, got %v", out)
	}
}

type erroringMiddleware struct{ Base }

func (erroringMiddleware) BeforeAgentPlan(_ context.Context, _ PromptArgs, _ []Step, _ *Context) (PromptArgs, error) {
	return nil, Aborted("nope")
}

func TestChainShortCircuitsOnError(t *testing.T) {
	var events []string
	mw2 := &recordingMiddleware{name: "second", events: &events}
	chain := NewChain(erroringMiddleware{}, mw2)

	_, err := chain.BeforeAgentPlan(context.Background(), PromptArgs{}, nil, NewContext())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(events) != 0 {
		t.Fatal("should not have run second middleware after first errored")
	}
}
