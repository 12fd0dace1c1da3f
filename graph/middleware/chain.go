package middleware

import (
	"context"

	"github.com/dshills/langgraph-go/graph/tool"
)

// Chain runs a fixed, ordered list of middleware through each hook,
// threading the possibly-modified value from one middleware into the
// next (registration order), and short-circuiting on the first error.
type Chain struct {
	stack []Middleware
}

// NewChain builds a Chain that runs mw in the given order.
func NewChain(mw ...Middleware) *Chain {
	return &Chain{stack: mw}
}

// Use appends more middleware to the chain.
func (c *Chain) Use(mw ...Middleware) *Chain {
	c.stack = append(c.stack, mw...)
	return c
}

func (c *Chain) BeforeAgentPlan(ctx context.Context, input PromptArgs, steps []Step, mc *Context) (PromptArgs, error) {
	current := input
	changed := false
	for _, mw := range c.stack {
		next, err := mw.BeforeAgentPlan(ctx, current, steps, mc)
		if err != nil {
			return nil, err
		}
		if next != nil {
			current = next
			changed = true
		}
	}
	if !changed {
		return nil, nil
	}
	return current, nil
}

func (c *Chain) AfterAgentPlan(ctx context.Context, input PromptArgs, event AgentEvent, mc *Context) (*AgentEvent, error) {
	current := event
	changed := false
	for _, mw := range c.stack {
		next, err := mw.AfterAgentPlan(ctx, input, current, mc)
		if err != nil {
			return nil, err
		}
		if next != nil {
			current = *next
			changed = true
		}
	}
	if !changed {
		return nil, nil
	}
	return &current, nil
}

func (c *Chain) BeforeToolCall(ctx context.Context, action AgentAction, rt *tool.Runtime, mc *Context) (*AgentAction, error) {
	current := action
	changed := false
	for _, mw := range c.stack {
		next, err := mw.BeforeToolCall(ctx, current, rt, mc)
		if err != nil {
			return nil, err
		}
		if next != nil {
			current = *next
			changed = true
		}
	}
	if !changed {
		return nil, nil
	}
	return &current, nil
}

func (c *Chain) AfterToolCall(ctx context.Context, action AgentAction, observation string, rt *tool.Runtime, mc *Context) (*string, error) {
	current := observation
	changed := false
	for _, mw := range c.stack {
		next, err := mw.AfterToolCall(ctx, action, current, rt, mc)
		if err != nil {
			return nil, err
		}
		if next != nil {
			current = *next
			changed = true
		}
	}
	if !changed {
		return nil, nil
	}
	return &current, nil
}

func (c *Chain) BeforeFinish(ctx context.Context, finish AgentFinish, rt *tool.Runtime, mc *Context) (*AgentFinish, error) {
	current := finish
	changed := false
	for _, mw := range c.stack {
		next, err := mw.BeforeFinish(ctx, current, rt, mc)
		if err != nil {
			return nil, err
		}
		if next != nil {
			current = *next
			changed = true
		}
	}
	if !changed {
		return nil, nil
	}
	return &current, nil
}

func (c *Chain) AfterFinish(ctx context.Context, finish AgentFinish, rt *tool.Runtime, mc *Context) error {
	for _, mw := range c.stack {
		if err := mw.AfterFinish(ctx, finish, rt, mc); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) BeforeModelCall(ctx context.Context, req ModelRequest, mc *Context) (*ModelRequest, error) {
	current := req
	changed := false
	for _, mw := range c.stack {
		next, err := mw.BeforeModelCall(ctx, current, mc)
		if err != nil {
			return nil, err
		}
		if next != nil {
			current = *next
			changed = true
		}
	}
	if !changed {
		return nil, nil
	}
	return &current, nil
}

func (c *Chain) AfterModelCall(ctx context.Context, resp ModelResponse, mc *Context) (*ModelResponse, error) {
	current := resp
	changed := false
	for _, mw := range c.stack {
		next, err := mw.AfterModelCall(ctx, current, mc)
		if err != nil {
			return nil, err
		}
		if next != nil {
			current = *next
			changed = true
		}
	}
	if !changed {
		return nil, nil
	}
	return &current, nil
}
