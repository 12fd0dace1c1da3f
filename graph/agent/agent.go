package agent

import (
	"context"

	"github.com/dshills/langgraph-go/graph/middleware"
	"github.com/dshills/langgraph-go/graph/tool"
)

// Agent decides the next step given the run's completed steps and the
// (possibly middleware-rewritten) prompt input: either one more tool call
// or a final answer.
type Agent interface {
	Plan(ctx context.Context, steps []middleware.Step, input middleware.PromptArgs) (middleware.AgentEvent, error)
	Tools() []tool.RichTool
}

// Result is what a completed Executor.Run returns: the agent's final text
// output plus any structured return values it attached.
type Result struct {
	Output       string
	ReturnValues map[string]any
}
