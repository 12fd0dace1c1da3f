package graph_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dshills/langgraph-go/graph"
	"github.com/dshills/langgraph-go/graph/emit"
	"github.com/dshills/langgraph-go/graph/store"
)

type replayState struct {
	Calls int
	Total int
}

func replayReducer(prev, delta replayState) replayState {
	prev.Calls += delta.Calls
	prev.Total += delta.Total
	return prev
}

// recordableAdderNode simulates a node with a billed external side effect
// (e.g. an LLM call): every live invocation increments liveCalls, and its
// Effects() declares it Recordable so the engine can replay it from a
// checkpoint's RecordedIOs instead of re-invoking it.
type recordableAdderNode struct {
	liveCalls *int
}

func (n *recordableAdderNode) Run(_ context.Context, _ replayState) graph.NodeResult[replayState] {
	*n.liveCalls++
	return graph.NodeResult[replayState]{
		Delta: replayState{Calls: 1, Total: 7},
		Route: graph.Stop(),
	}
}

func (n *recordableAdderNode) Effects() graph.SideEffectPolicy {
	return graph.SideEffectPolicy{Recordable: true}
}

func TestEngineReplayModeSkipsLiveExecutionOfRecordableNode(t *testing.T) {
	ctx := context.Background()
	liveCalls := 0

	memStore := store.NewMemStore[replayState]()
	recordEngine := graph.New(replayReducer, memStore, emit.NewNullEmitter(), graph.Options{MaxConcurrentNodes: 1})
	if err := recordEngine.Add("add", &recordableAdderNode{liveCalls: &liveCalls}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := recordEngine.StartAt("add"); err != nil {
		t.Fatalf("start: %v", err)
	}

	runID := "replay-run-1"
	final, err := recordEngine.Run(ctx, runID, replayState{})
	if err != nil {
		t.Fatalf("record run: %v", err)
	}
	if liveCalls != 1 {
		t.Fatalf("expected exactly one live call during record run, got %d", liveCalls)
	}
	if final.Total != 7 {
		t.Fatalf("expected recorded delta applied, got %+v", final)
	}

	checkpoint, err := memStore.LoadCheckpointV2(ctx, runID, 1)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	recordedJSON, err := json.Marshal(checkpoint.RecordedIOs)
	if err != nil {
		t.Fatalf("marshal recorded IOs: %v", err)
	}
	var recordedIOs []graph.RecordedIO
	if err := json.Unmarshal(recordedJSON, &recordedIOs); err != nil {
		t.Fatalf("unmarshal recorded IOs: %v", err)
	}
	if len(recordedIOs) != 1 {
		t.Fatalf("expected one recorded IO persisted to checkpoint, got %d", len(recordedIOs))
	}

	replayEngine := graph.New(replayReducer, store.NewMemStore[replayState](), emit.NewNullEmitter(),
		graph.Options{MaxConcurrentNodes: 1, ReplayMode: true})
	if err := replayEngine.Add("add", &recordableAdderNode{liveCalls: &liveCalls}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := replayEngine.StartAt("add"); err != nil {
		t.Fatalf("start: %v", err)
	}

	replayCtx := context.WithValue(ctx, graph.RecordedIOsKey, recordedIOs)
	replayed, err := replayEngine.Run(replayCtx, runID, replayState{})
	if err != nil {
		t.Fatalf("replay run: %v", err)
	}
	if liveCalls != 1 {
		t.Fatalf("expected no additional live call during replay, got %d total", liveCalls)
	}
	if replayed.Total != final.Total || replayed.Calls != final.Calls {
		t.Fatalf("expected replayed state to match recorded state, got %+v want %+v", replayed, final)
	}
}
