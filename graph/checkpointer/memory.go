package checkpointer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryCheckpointer is an in-process Checkpointer backed by a map of
// thread histories. It does not survive a restart; use SQLCheckpointer for
// durability across process lifetimes.
type MemoryCheckpointer struct {
	mu       sync.RWMutex
	threads  map[string][]Snapshot
	entropy  *ulid.MonotonicEntropy
	entropyM sync.Mutex
}

// NewMemoryCheckpointer constructs an empty in-memory checkpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{
		threads: make(map[string][]Snapshot),
		entropy: ulid.Monotonic(nil, 0),
	}
}

func (m *MemoryCheckpointer) newID(now time.Time) string {
	m.entropyM.Lock()
	defer m.entropyM.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), m.entropy).String()
}

func (m *MemoryCheckpointer) Put(_ context.Context, threadID string, snap Snapshot) (string, error) {
	if threadID == "" {
		return "", ErrInvalidConfig
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	if snap.Config.CheckpointID == "" {
		snap.Config.CheckpointID = m.newID(snap.CreatedAt)
	}
	snap.Config.ThreadID = threadID

	m.threads[threadID] = append(m.threads[threadID], snap)
	return snap.Config.CheckpointID, nil
}

func (m *MemoryCheckpointer) Get(_ context.Context, threadID string, checkpointID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history, ok := m.threads[threadID]
	if !ok || len(history) == 0 {
		return Snapshot{}, ErrThreadNotFound
	}

	if checkpointID == "" {
		return history[len(history)-1], nil
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Config.CheckpointID == checkpointID {
			return history[i], nil
		}
	}
	return Snapshot{}, ErrCheckpointNotFound
}

func (m *MemoryCheckpointer) List(_ context.Context, threadID string, limit int) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.threads[threadID]
	out := make([]Snapshot, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
