package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/langgraph-go/graph/agent"
	"github.com/dshills/langgraph-go/graph/emit"
	"github.com/dshills/langgraph-go/graph/middleware"
	"github.com/dshills/langgraph-go/graph/model"
)

// LLMNode is the LLM node variant (§4.8): it renders state into a chat
// request, calls a model.ChatModel directly (no tool loop — that's
// AgentNode's job), and folds the response back into state. Useful for a
// single summarize/classify/extract step that doesn't need tool access.
type LLMNode[S any] struct {
	Model model.ChatModel

	// ToRequest builds the outgoing messages/tools from state.
	ToRequest func(state S) (messages []model.Message, tools []model.ToolSpec)

	// ApplyResponse folds the model's output back into a state delta.
	ApplyResponse func(state S, out model.ChatOut) S

	// Route is this node's static routing decision. Zero-value (Route{})
	// falls through to the graph's own Connect/ConnectConditional wiring,
	// same as any other Node.
	Route Next
}

func (n LLMNode[S]) Run(ctx context.Context, state S) NodeResult[S] {
	if n.Model == nil {
		return NodeResult[S]{Err: &NodeError{Message: "LLMNode: Model is nil"}}
	}
	messages, tools := n.ToRequest(state)

	out, err := n.Model.Chat(ctx, messages, tools)
	if err != nil {
		return NodeResult[S]{Err: fmt.Errorf("graph: LLMNode model call failed: %w", err)}
	}

	cfg := nodeConfigFrom(ctx)
	nodeID := ""
	if cfg != nil {
		nodeID = cfg.NodeID
	}
	if tracker := nodeCostTrackerFrom(ctx); tracker != nil && out.Model != "" {
		_ = tracker.RecordLLMCall(out.Model, out.Usage.InputTokens, out.Usage.OutputTokens, nodeID)
	}
	if write := nodeStreamWriteFrom(ctx); write != nil {
		write(emit.StreamChunk{
			Mode:     emit.StreamModeMessages,
			NodeID:   nodeID,
			Data:     out.Text,
			Metadata: &emit.MessageMetadata{LanggraphNode: nodeID},
		})
	}

	return NodeResult[S]{Delta: n.ApplyResponse(state, out), Route: n.Route}
}

// ChainNode is the chain node variant (§4.8): a fixed sequence of Node[S]
// steps run in order within a single graph node, each step's Delta merged
// into state via reducer before the next step runs. This is the same
// "compose small Runnables into one step" idiom as LCEL chains, collapsed
// to a single super-step so the scheduler sees it as one node.
type ChainNode[S any] struct {
	Steps   []Node[S]
	Reducer Reducer[S]

	// Route is this node's static routing decision; see LLMNode.Route.
	Route Next
}

func (n ChainNode[S]) Run(ctx context.Context, state S) NodeResult[S] {
	if n.Reducer == nil {
		return NodeResult[S]{Err: &NodeError{Message: "ChainNode: Reducer is nil"}}
	}
	current := state
	for i, step := range n.Steps {
		result := step.Run(ctx, current)
		if result.Err != nil {
			return NodeResult[S]{Err: fmt.Errorf("graph: ChainNode step %d: %w", i, result.Err)}
		}
		current = n.Reducer(current, result.Delta)
	}
	return NodeResult[S]{Delta: current, Route: n.Route}
}

// AgentNode is the agent node variant (§4.8): it drives a fully-configured
// graph/agent.Executor (plan/act loop, tool calls, memory persistence, the
// whole of graph/agent) to completion as a single super-step, translating
// state into the executor's PromptArgs on the way in and merging its
// Result back into state on the way out.
type AgentNode[S any] struct {
	Executor *agent.Executor

	ToInput     func(state S) middleware.PromptArgs
	ApplyResult func(state S, result agent.Result) S

	// Route is this node's static routing decision; see LLMNode.Route.
	Route Next
}

func (n AgentNode[S]) Run(ctx context.Context, state S) NodeResult[S] {
	if n.Executor == nil {
		return NodeResult[S]{Err: &NodeError{Message: "AgentNode: Executor is nil"}}
	}

	// Run against a shallow copy carrying this call's NodeID/StreamWrite, so
	// concurrent runs of the same AgentNode (e.g. two engine.Run calls
	// sharing one compiled graph) don't race over the shared Executor's
	// fields. State/Store/Chain pointers are still shared, which is the
	// point: they carry memory and middleware config across calls.
	exec := *n.Executor
	if cfg := nodeConfigFrom(ctx); cfg != nil && exec.NodeID == "" {
		exec.NodeID = cfg.NodeID
	}
	if exec.StreamWrite == nil {
		if write := nodeStreamWriteFrom(ctx); write != nil {
			exec.StreamWrite = write
		}
	}

	result, err := exec.Run(ctx, n.ToInput(state))
	if err != nil {
		var interruptErr *agent.InterruptError
		if errors.As(err, &interruptErr) {
			return NodeResult[S]{Err: err}
		}
		return NodeResult[S]{Err: fmt.Errorf("graph: AgentNode run failed: %w", err)}
	}

	return NodeResult[S]{Delta: n.ApplyResult(state, result), Route: n.Route}
}

// SubgraphNode is the subgraph node variant (§4.8 / §1): it embeds a fully
// compiled inner Engine[S2] as a single node of the outer graph, translating
// outer state to the subgraph's own state type on the way in and merging
// the subgraph's final state back into the outer state on the way out.
// Every StreamModeMessages/Updates chunk the subgraph emits is re-emitted
// through the outer node's StreamWrite with this node's ID prefixed onto
// StreamChunk.Path, per the subgraph path-prefixing rule.
type SubgraphNode[S, S2 any] struct {
	Graph *Engine[S2]

	ToInner func(outer S) S2
	ToOuter func(outer S, inner S2) S

	// RunID names the sub-run. Defaults to the parent run's RunID with the
	// subgraph node's ID appended, so checkpoints/streams can be told apart.
	RunID func(cfg *NodeConfig) string

	// Route is this node's static routing decision; see LLMNode.Route.
	Route Next
}

func (n SubgraphNode[S, S2]) Run(ctx context.Context, state S) NodeResult[S] {
	if n.Graph == nil {
		return NodeResult[S]{Err: &NodeError{Message: "SubgraphNode: Graph is nil"}}
	}

	cfg := nodeConfigFrom(ctx)
	runID := ""
	switch {
	case n.RunID != nil:
		runID = n.RunID(cfg)
	case cfg != nil:
		runID = cfg.RunID + "/" + cfg.NodeID
	}

	innerState := n.ToInner(state)

	innerCtx := ctx
	if parentWrite := nodeStreamWriteFrom(ctx); parentWrite != nil {
		nodeID := ""
		if cfg != nil {
			nodeID = cfg.NodeID
		}
		wrapped := func(event any) {
			if chunk, ok := event.(emit.StreamChunk); ok {
				parentWrite(chunk.WithPathPrefix(nodeID))
				return
			}
			parentWrite(event)
		}
		innerCtx = withNodeStreamWrite(ctx, wrapped)
	}

	finalInner, err := n.Graph.Run(innerCtx, runID, innerState)
	if err != nil {
		return NodeResult[S]{Err: fmt.Errorf("graph: SubgraphNode run failed: %w", err)}
	}

	return NodeResult[S]{Delta: n.ToOuter(state, finalInner), Route: n.Route}
}
