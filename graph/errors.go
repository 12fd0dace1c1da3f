// Package graph provides the core graph execution engine for LangGraph-Go.
package graph

import (
	"errors"
	"fmt"
)

// ErrMaxStepsExceeded indicates that the graph execution reached the maximum.
// allowed step count without completing. This prevents infinite loops and.
// runaway executions.
var ErrMaxStepsExceeded = errors.New("execution exceeded maximum steps limit")

// ErrBackpressure indicates that downstream processing cannot keep up with.
// the current execution rate. This typically occurs when output buffers are.
// full or rate limits are exceeded. This is distinct from ErrBackpressureTimeout.
// which is specifically for frontier queue overflow.
var ErrBackpressure = errors.New("downstream backpressure exceeded threshold")

// Note: The following errors are already defined in checkpoint.go:
// - ErrReplayMismatch: replay mismatch detection.
// - ErrNoProgress: deadlock/no runnable nodes detection.
// - ErrIdempotencyViolation: duplicate checkpoint prevention.
// - ErrMaxAttemptsExceeded: retry exhaustion.
// - ErrBackpressureTimeout: frontier queue overflow.

// ConditionError is returned when a ConditionalEdge's Cond function names a
// branch with no corresponding entry in Mapping. This is a fatal routing
// error: the engine has no way to guess the intended destination, so it
// halts the run rather than silently falling back to Edge-based routing.
type ConditionError struct {
	// NodeID is the node whose ConditionalEdge produced the unresolved branch.
	NodeID string

	// Branch is the value Cond returned that has no Mapping entry.
	Branch string
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("graph: conditional edge from %q: no mapping entry for branch %q", e.NodeID, e.Branch)
}
