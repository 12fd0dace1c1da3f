// Package checkpointer implements the append-only per-thread snapshot log
// (C2 of the runtime: the Checkpointer half of "Checkpointer & Store").
//
// A Checkpointer owns an ordered history of StateSnapshot values keyed by
// thread_id, with optional forking via parent_config. It is independent of
// the graph engine's internal scheduler checkpoint (graph.Checkpoint),
// which records frontier/RNG replay state for a single super-step run;
// this package records the caller-visible, time-travelable history.
package checkpointer

import (
	"context"
	"errors"
	"time"
)

// Errors returned by Checkpointer implementations, per spec §4.1/§7.
var (
	ErrCheckpointNotFound = errors.New("checkpointer: checkpoint not found")
	ErrThreadNotFound     = errors.New("checkpointer: thread not found")
	ErrSerialization      = errors.New("checkpointer: serialization error")
	ErrInvalidConfig      = errors.New("checkpointer: invalid config")
)

// Config identifies a point in a thread's history. Thread_id is required
// for persistence; CheckpointID and Namespace are optional.
type Config struct {
	ThreadID     string `json:"thread_id"`
	CheckpointID string `json:"checkpoint_id,omitempty"`
	Namespace    string `json:"checkpoint_ns,omitempty"`
}

// Snapshot is an immutable capture of state, pending nodes, and config at a
// point in time. Values is stored as raw JSON so the checkpointer does not
// need to be generic over the caller's state type.
type Snapshot struct {
	Values    []byte         `json:"values"`
	Next      []string       `json:"next"`
	Config    Config         `json:"config"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	Parent    *Config        `json:"parent_config,omitempty"`
}

// Durability controls when a snapshot write is considered complete.
type Durability int

const (
	// DurabilitySync blocks until the write is committed.
	DurabilitySync Durability = iota
	// DurabilityAsync returns immediately; the write may still be in flight.
	DurabilityAsync
	// DurabilityExit defers persistence until the caller explicitly flushes
	// the final snapshot (used by graph engine "Exit" mode).
	DurabilityExit
)

// Checkpointer is the pluggable persistence capability for C1/C2.
//
// Implementations must be safe under concurrent readers and a single
// writer per thread; concurrent writers to the same thread are undefined
// behavior, matching spec §4.1.
type Checkpointer interface {
	// Put appends snapshot to thread_id's history, assigning a
	// checkpoint_id if snap.Config.CheckpointID is empty, and returns the
	// final id used.
	Put(ctx context.Context, threadID string, snap Snapshot) (checkpointID string, err error)

	// Get returns the snapshot for checkpointID if given, else the latest
	// snapshot for the thread. Returns ErrCheckpointNotFound when the given
	// checkpointID is not in the thread. For a thread with no snapshots,
	// MemoryCheckpointer returns ErrThreadNotFound and SQLCheckpointer
	// returns ErrCheckpointNotFound.
	Get(ctx context.Context, threadID string, checkpointID string) (Snapshot, error)

	// List returns the thread's snapshots oldest-first, truncated to the
	// most recent `limit` entries when limit > 0.
	List(ctx context.Context, threadID string, limit int) ([]Snapshot, error)
}
