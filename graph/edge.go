// Package graph provides the core graph execution engine for LangGraph-Go.
package graph

// Edge represents a connection between two nodes in the workflow graph.
//
// Edges define the control flow between nodes. They can be:
// - Unconditional: Always traverse (When = nil).
// - Conditional: Only traverse if predicate returns true (When != nil).
//
// Edges are used during graph construction to define possible transitions.
// At runtime, the Engine evaluates predicates to determine which edge to follow.
//
// For explicit routing, nodes can return Next in NodeResult which overrides.
// edge-based routing.
//
// Type parameter S is the state type used for predicate evaluation.
type Edge[S any] struct {
	// From is the source node ID.
	From string

	// To is the destination node ID.
	To string

	// When is an optional predicate that determines if this edge should be traversed.
	// If nil, the edge is unconditional (always traverse).
	// If non-nil, the edge is only traversed when When(state) returns true.
	When Predicate[S]
}

// Predicate is a function that evaluates state to determine if an edge should be traversed.
//
// Predicates enable conditional routing based on workflow state.
// They should be pure functions (deterministic, no side effects).
//
// Common patterns:
// - Threshold: state.Score > 0.8.
// - Presence: state.Result != "".
// - Boolean flag: state.IsReady.
// - Complex logic: state.Retries < 3 && state.Error == nil.
//
// Type parameter S is the state type to evaluate.
type Predicate[S any] func(state S) bool

// ConditionalEdge represents a single node's named-branch router: Cond
// inspects state and names a branch, Mapping resolves that branch name to
// the next node ID. This is the mapping-keyed form of conditional routing
// (a router node with many possible named destinations), distinct from
// Edge's ordered Predicate chain (a short if/else/else fallthrough between a
// handful of fixed destinations). A node has at most one ConditionalEdge;
// Engine.ConnectConditional replaces any prior one for the same From node.
//
// If Cond returns a branch with no entry in Mapping, the engine reports a
// ConditionError rather than silently falling through to Edge-based routing.
type ConditionalEdge[S any] struct {
	// From is the source node ID.
	From string

	// Cond inspects state and returns the name of the branch to take.
	Cond func(state S) string

	// Mapping resolves a branch name (as returned by Cond) to the next node ID.
	Mapping map[string]string
}
