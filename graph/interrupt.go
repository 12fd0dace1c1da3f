package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/langgraph-go/graph/checkpointer"
)

// interruptCtxKey and friends let Interrupt find the task-local state that
// original_source/src/langgraph/interrupts/context.rs keeps in a
// tokio::task_local. Go has no task-local storage, but a context.Context
// threaded down to the node is the same "ambient, call-stack-scoped state"
// idea, so the engine seeds one into the context it passes to Node.Run.
type interruptCtxKey string

const (
	interruptStateKey interruptCtxKey = "langgraph.interrupt_state"
	interruptNodeKey  interruptCtxKey = "langgraph.interrupt_node"
)

// InterruptState is the per-run resume context: the decisions supplied by a
// Command.Resume, consumed in interrupt() call order. Mirrors
// interrupts/context.rs's InterruptContext (resume_values + current_index),
// collapsed from task-local storage into an explicit, mutex-protected
// struct threaded through context.Context.
type InterruptState struct {
	mu           sync.Mutex
	ResumeValues []any
	index        int
}

// NewInterruptState seeds a fresh run with no pending resume values (used
// for a first invocation) or with the decisions from a prior interrupt's
// Command.Resume (used when replaying after a pause).
func NewInterruptState(resumeValues ...any) *InterruptState {
	return &InterruptState{ResumeValues: resumeValues}
}

// next returns the k-th resume value in call order, or ok=false if the run
// has not been supplied with one yet (meaning the node should interrupt).
func (s *InterruptState) next() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.ResumeValues) {
		return nil, false
	}
	v := s.ResumeValues[s.index]
	s.index++
	return v, true
}

// withInterruptState attaches state to ctx for Interrupt to find.
func withInterruptState(ctx context.Context, state *InterruptState) context.Context {
	return context.WithValue(ctx, interruptStateKey, state)
}

func interruptStateFrom(ctx context.Context) *InterruptState {
	s, _ := ctx.Value(interruptStateKey).(*InterruptState)
	return s
}

// withInterruptNode records which node is currently executing, so a panic
// raised deep inside that node's Run (possibly several call frames down,
// exactly like interrupt() being callable from anywhere in the reference)
// can be attributed to it when the engine recovers.
func withInterruptNode(ctx context.Context, nodeID string) context.Context {
	return context.WithValue(ctx, interruptNodeKey, nodeID)
}

func interruptNodeFrom(ctx context.Context) string {
	s, _ := ctx.Value(interruptNodeKey).(string)
	return s
}

// InterruptError is the payload a node's interrupt() call panics with when
// no matching resume value is available. It is never meant to be returned
// as a normal error — original_source's interrupt() is itself a non-local
// exit (it raises rather than returning a Result), and Go's equivalent for
// "abort the current call stack from arbitrary depth without every caller
// threading an error return" is panic/recover, recovered by the engine at
// the single point it invokes Node.Run.
type InterruptError struct {
	NodeID string
	Value  any

	// State is filled in by Engine.Run with the state as of just before
	// the interrupted node executed, so RunInterruptible can persist a
	// resumable checkpoint without the panic itself needing to carry it.
	State any
}

func (e *InterruptError) Error() string {
	return fmt.Sprintf("graph: interrupted at node %q", e.NodeID)
}

// nodeRunOutcome wraps a node's normal result with whether it was instead
// interrupted, so the caller in Engine.Run can branch without re-parsing a
// generic error.
type nodeRunOutcome[S any] struct {
	NodeResult[S]
	interrupted *InterruptError
}

// runNode executes node and recovers an *InterruptError panic from
// Interrupt(), the one place in the engine allowed to catch it. Any other
// panic propagates unchanged.
func (e *Engine[S]) runNode(ctx context.Context, node Node[S], state S) (out nodeRunOutcome[S]) {
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*InterruptError)
			if !ok {
				panic(r)
			}
			ie.State = state
			out.interrupted = ie
		}
	}()
	out.NodeResult = node.Run(ctx, state)
	return out
}

// Interrupt pauses the current node: if the run has a resume value waiting
// (because this is the k-th interrupt() call in document order during a
// Command.Resume replay), it returns that value immediately. Otherwise it
// panics with *InterruptError, which Engine.Run recovers at the node-
// invocation boundary and returns as its error; RunInterruptible and
// ResumeRun then persist a paused snapshot and surface it to the caller as
// an InvokeResult with one Interrupt entry.
//
// Grounded on original_source/src/langgraph/interrupts/context.rs's
// get_interrupt_value/resume_values-by-index matching.
func Interrupt(ctx context.Context, value any) any {
	if state := interruptStateFrom(ctx); state != nil {
		if resumed, ok := state.next(); ok {
			return resumed
		}
	}
	panic(&InterruptError{NodeID: interruptNodeFrom(ctx), Value: value})
}

// CommandKind distinguishes the two ways a paused run can be continued,
// mirroring original_source/src/langgraph/interrupts/command.rs's Command
// enum (Resume{value} / Goto{node}).
type CommandKind string

const (
	CommandKindResume CommandKind = "resume"
	CommandKindGoto   CommandKind = "goto"
)

// Command tells ResumeRun how to continue a paused run.
type Command struct {
	Kind CommandKind

	// ResumeValues supplies one value per interrupt() call in the resumed
	// node, in document order (Command.Kind == CommandKindResume).
	ResumeValues []any

	// GotoNode re-enters the graph at the named node instead of the one
	// that paused (Command.Kind == CommandKindGoto).
	GotoNode string
}

// ResumeCommand builds a Command.Resume with the given decisions.
func ResumeCommand(values ...any) Command {
	return Command{Kind: CommandKindResume, ResumeValues: values}
}

// GotoCommand builds a Command.Goto routing to node.
func GotoCommand(node string) Command {
	return Command{Kind: CommandKindGoto, GotoNode: node}
}

// PendingInterrupt is one paused interrupt() call surfaced to the caller,
// matching the reference's Interrupt{value} wire shape (the "__interrupt__"
// field of §6's invocation result).
type PendingInterrupt struct {
	Value any `json:"value"`
}

// InvokeResult is what RunInterruptible/ResumeRun return: either a final
// state (Interrupts empty) or a paused run (Interrupts has exactly one
// entry, since this engine interrupts synchronously at the single node
// that called Interrupt rather than collecting several at once).
type InvokeResult[S any] struct {
	State      S
	Interrupts []PendingInterrupt
	Done       bool
}

// marshalState serializes state for persistence as a checkpointer.Snapshot's
// Values payload.
func marshalState(state any) (json.RawMessage, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("graph: marshal state: %w", err)
	}
	return b, nil
}

// RunInterruptible runs the engine like Run, but treats a node's Interrupt()
// call as a first-class outcome instead of a plain error: it persists a
// paused snapshot via cp (Next = the interrupted node) and returns an
// InvokeResult carrying the one pending interrupt, matching §4.8's
// "engine catches it, writes a snapshot ... returns InvokeResult::
// Interrupt{interrupts: [...]}". Only supported on the sequential
// (Options.MaxConcurrentNodes == 0) execution path; concurrent super-step
// execution does not yet thread interrupt state through the Frontier
// scheduler (see DESIGN.md).
func RunInterruptible[S any](ctx context.Context, e *Engine[S], cp checkpointer.Checkpointer, threadID, runID string, initial S) (InvokeResult[S], error) {
	ctx = withInterruptState(ctx, NewInterruptState())

	final, err := e.Run(ctx, runID, initial)
	var ie *InterruptError
	if errors.As(err, &ie) {
		values, merr := marshalState(ie.State)
		if merr != nil {
			return InvokeResult[S]{}, merr
		}
		if _, perr := cp.Put(ctx, threadID, checkpointer.Snapshot{
			Values: values,
			Next:   []string{ie.NodeID},
			Config: checkpointer.Config{ThreadID: threadID},
		}); perr != nil {
			return InvokeResult[S]{}, fmt.Errorf("graph: persist interrupt checkpoint: %w", perr)
		}
		return InvokeResult[S]{Interrupts: []PendingInterrupt{{Value: ie.Value}}}, nil
	}
	if err != nil {
		return InvokeResult[S]{}, err
	}
	return InvokeResult[S]{State: final, Done: true}, nil
}

// ResumeRun continues a run paused by RunInterruptible. For a Resume
// command it loads the latest paused snapshot for threadID, decodes its
// state back into S, and re-enters at the recorded node with the supplied
// resume values available to Interrupt() in call order. For a Goto command
// it re-enters at the named node instead, with no resume values (matching
// §4.8's Command::Goto{node} semantics).
func ResumeRun[S any](ctx context.Context, e *Engine[S], cp checkpointer.Checkpointer, threadID, runID string, cmd Command) (InvokeResult[S], error) {
	snap, err := cp.Get(ctx, threadID, "")
	if err != nil {
		return InvokeResult[S]{}, fmt.Errorf("graph: load paused checkpoint: %w", err)
	}

	var state S
	if err := json.Unmarshal(snap.Values, &state); err != nil {
		return InvokeResult[S]{}, fmt.Errorf("graph: decode paused state: %w", err)
	}

	startNode := e.startNode
	if len(snap.Next) > 0 {
		startNode = snap.Next[0]
	}
	if cmd.Kind == CommandKindGoto {
		startNode = cmd.GotoNode
	}
	prevStart := e.startNode
	if err := e.StartAt(startNode); err != nil {
		return InvokeResult[S]{}, err
	}
	defer func() { _ = e.StartAt(prevStart) }()

	if cmd.Kind == CommandKindResume {
		ctx = withInterruptState(ctx, NewInterruptState(cmd.ResumeValues...))
	} else {
		ctx = withInterruptState(ctx, NewInterruptState())
	}

	final, err := e.Run(ctx, runID, state)
	var ie *InterruptError
	if errors.As(err, &ie) {
		values, merr := marshalState(ie.State)
		if merr != nil {
			return InvokeResult[S]{}, merr
		}
		parent := snap.Config
		if _, perr := cp.Put(ctx, threadID, checkpointer.Snapshot{
			Values: values,
			Next:   []string{ie.NodeID},
			Config: checkpointer.Config{ThreadID: threadID},
			Parent: &parent,
		}); perr != nil {
			return InvokeResult[S]{}, fmt.Errorf("graph: persist interrupt checkpoint: %w", perr)
		}
		return InvokeResult[S]{Interrupts: []PendingInterrupt{{Value: ie.Value}}}, nil
	}
	if err != nil {
		return InvokeResult[S]{}, err
	}
	return InvokeResult[S]{State: final, Done: true}, nil
}
