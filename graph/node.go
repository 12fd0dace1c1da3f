package graph

import (
	"context"

	"github.com/dshills/langgraph-go/graph/memstore"
)

// Node represents a processing unit in the workflow graph.
// It receives state of type S, performs computation, and returns a NodeResult.
//
// Nodes are the fundamental building blocks of LangGraph workflows.
// Each node can:
//   - Access the current state
//   - Perform computation (call LLMs, tools, or custom logic)
//   - Return state modifications via Delta
//   - Control routing via Route
//   - Emit observability events
//   - Handle errors
//
// Type parameter S is the state type shared across the workflow.
type Node[S any] interface {
	// Run executes the node's logic with the given context and state.
	// It returns a NodeResult containing state changes, routing decisions,
	// events, and any errors encountered.
	Run(ctx context.Context, state S) NodeResult[S]
}

// NodeResult represents the output of a node execution.
//
// It contains all information needed to continue workflow execution:
//   - Delta: Partial state update to be merged via reducer
//   - Route: Next hop(s) for execution flow
//   - Err: Node-level error (if any)
//
// NodeResult has no events field; the engine emits node events itself.
type NodeResult[S any] struct {
	// Delta is the partial state update produced by this node.
	// It will be merged with the current state using the configured reducer.
	Delta S

	// Route specifies the next step(s) in workflow execution.
	// Use Stop() for terminal nodes, Goto(id) for explicit routing,
	// or set Many for fan-out to multiple nodes.
	Route Next

	// TODO: Add Events []Event field after T029-T030 (Event type definition)

	// Err contains any error that occurred during node execution.
	// Non-nil errors halt the workflow unless custom error handling is implemented.
	Err error
}

// Next specifies the next step(s) in workflow execution after a node completes.
//
// It supports three routing modes:
//   - Terminal: Stop execution (Route.Terminal = true)
//   - Single: Go to a specific node (Route.To = "nodeID")
//   - Fan-out: Go to multiple nodes in parallel (Route.Many = []string{"node1", "node2"})
type Next struct {
	// To specifies the next single node to execute.
	// Mutually exclusive with Many and Terminal.
	To string

	// Many specifies multiple nodes to execute in parallel (fan-out).
	// Mutually exclusive with To and Terminal.
	Many []string

	// Terminal indicates workflow execution should stop.
	// Mutually exclusive with To and Many.
	Terminal bool
}

// Stop returns a Next that terminates workflow execution.
func Stop() Next {
	return Next{Terminal: true}
}

// Goto returns a Next that routes to the specified node.
func Goto(nodeID string) Next {
	return Next{To: nodeID}
}

// NodeFunc is a function adapter that implements the Node interface.
// It allows using plain functions as nodes without creating custom types.
//
// Example:
//
//	processNode := NodeFunc[MyState](func(ctx context.Context, s MyState) NodeResult[MyState] {
//	    return NodeResult[MyState]{
//	        Delta: MyState{Result: "processed"},
//	        Route: Stop(),
//	    }
//	})
type NodeFunc[S any] func(ctx context.Context, state S) NodeResult[S]

// Run implements the Node interface for NodeFunc.
func (f NodeFunc[S]) Run(ctx context.Context, state S) NodeResult[S] {
	return f(ctx, state)
}

// NodeConfig is the per-call metadata the invoke_with_context arities expose
// to a node beyond the state itself: which run and node this call belongs
// to. The engine seeds one into ctx immediately before invoking a node, so
// NodeFuncWithConfig and NodeFuncWithStore can recover it without widening
// the Node interface itself.
type NodeConfig struct {
	RunID  string
	NodeID string
}

// nodeCtxKey namespaces the context keys the engine uses to carry
// invoke_with_context's optional config/store parameters down to a node.
type nodeCtxKey string

const (
	nodeConfigCtxKey nodeCtxKey = "langgraph.node_config"
	nodeStoreCtxKey  nodeCtxKey = "langgraph.node_store"
)

func withNodeConfig(ctx context.Context, cfg *NodeConfig) context.Context {
	return context.WithValue(ctx, nodeConfigCtxKey, cfg)
}

func nodeConfigFrom(ctx context.Context) *NodeConfig {
	cfg, _ := ctx.Value(nodeConfigCtxKey).(*NodeConfig)
	return cfg
}

// withNodeStore attaches the engine's long-term memory store (§C2) to ctx so
// NodeFuncWithStore can reach it. No-op (reads back nil) if the engine was
// built without WithMemoryStore.
func withNodeStore(ctx context.Context, store memstore.Store) context.Context {
	if store == nil {
		return ctx
	}
	return context.WithValue(ctx, nodeStoreCtxKey, store)
}

func nodeStoreFrom(ctx context.Context) memstore.Store {
	s, _ := ctx.Value(nodeStoreCtxKey).(memstore.Store)
	return s
}

// nodeStreamWriteCtxKey carries the engine's streaming sink (§4.8) down to
// a node's Run call, so LLMNode/AgentNode/SubgraphNode can publish
// emit.StreamChunk values without the Node interface needing a dedicated
// streaming parameter.
const nodeStreamWriteCtxKey nodeCtxKey = "langgraph.node_stream_write"

func withNodeStreamWrite(ctx context.Context, write func(event any)) context.Context {
	if write == nil {
		return ctx
	}
	return context.WithValue(ctx, nodeStreamWriteCtxKey, write)
}

func nodeStreamWriteFrom(ctx context.Context) func(event any) {
	write, _ := ctx.Value(nodeStreamWriteCtxKey).(func(event any))
	return write
}

// nodeCostTrackerCtxKey carries the engine's *CostTracker (graph/cost.go,
// Options.CostTracker) down to LLMNode's Run call, so it can attribute
// token cost per call without a dedicated Node interface parameter.
const nodeCostTrackerCtxKey nodeCtxKey = "langgraph.node_cost_tracker"

func withNodeCostTracker(ctx context.Context, tracker *CostTracker) context.Context {
	if tracker == nil {
		return ctx
	}
	return context.WithValue(ctx, nodeCostTrackerCtxKey, tracker)
}

func nodeCostTrackerFrom(ctx context.Context) *CostTracker {
	tracker, _ := ctx.Value(nodeCostTrackerCtxKey).(*CostTracker)
	return tracker
}

// NodeFuncWithConfig is invoke_with_context's middle arity: a function node
// that, besides state, also receives the run's NodeConfig (which run, which
// node). Useful for nodes whose behavior depends on their own identity,
// e.g. emitting events tagged with NodeID.
type NodeFuncWithConfig[S any] func(ctx context.Context, state S, cfg *NodeConfig) NodeResult[S]

// Run implements the Node interface for NodeFuncWithConfig.
func (f NodeFuncWithConfig[S]) Run(ctx context.Context, state S) NodeResult[S] {
	return f(ctx, state, nodeConfigFrom(ctx))
}

// NodeFuncWithStore is invoke_with_context's widest arity: a function node
// that additionally receives the engine's long-term memory Store (§C2), for
// nodes that read or write cross-thread memory directly rather than through
// a tool call. Store is nil if the engine was built without
// WithMemoryStore.
type NodeFuncWithStore[S any] func(ctx context.Context, state S, cfg *NodeConfig, store memstore.Store) NodeResult[S]

// Run implements the Node interface for NodeFuncWithStore.
func (f NodeFuncWithStore[S]) Run(ctx context.Context, state S) NodeResult[S] {
	return f(ctx, state, nodeConfigFrom(ctx), nodeStoreFrom(ctx))
}

// NodeError represents an error that occurred during node execution.
// It provides structured error information for better observability and debugging.
type NodeError struct {
	// Message is the human-readable error description.
	Message string

	// Code is a machine-readable error code for programmatic handling.
	Code string

	// NodeID identifies which node produced this error.
	NodeID string

	// Cause is the underlying error that caused this NodeError.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *NodeError) Unwrap() error {
	return e.Cause
}
