package agent

import "testing"

func TestRepairInsertsMissingToolMessages(t *testing.T) {
	messages := []Message{
		NewHumanMessage("run X"),
		{
			Type:      AIMessage,
			ToolCalls: []ToolCallRef{{ID: "call_1", Name: "tool_a"}, {ID: "call_2", Name: "tool_b"}},
		},
	}
	repaired := RepairDanglingToolCalls(messages)
	if len(repaired) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(repaired))
	}
	if repaired[2].Type != ToolMessageT || repaired[2].Content != cancelledToolContent || repaired[2].ID != "call_1" {
		t.Fatalf("unexpected repaired[2]: %+v", repaired[2])
	}
	if repaired[3].Type != ToolMessageT || repaired[3].ID != "call_2" {
		t.Fatalf("unexpected repaired[3]: %+v", repaired[3])
	}
}

func TestRepairLeavesCompleteSequenceUnchanged(t *testing.T) {
	messages := []Message{
		{Type: AIMessage, ToolCalls: []ToolCallRef{{ID: "c1"}}},
		NewToolMessage("ok", "c1"),
	}
	repaired := RepairDanglingToolCalls(messages)
	if len(repaired) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(repaired))
	}
	if repaired[1].Content != "ok" {
		t.Fatalf("expected unchanged tool message, got %+v", repaired[1])
	}
}

func TestRepairHandlesPartialCompletion(t *testing.T) {
	messages := []Message{
		{Type: AIMessage, ToolCalls: []ToolCallRef{{ID: "c1"}, {ID: "c2"}}},
		NewToolMessage("partial result", "c1"),
		NewHumanMessage("next turn"),
	}
	repaired := RepairDanglingToolCalls(messages)
	if len(repaired) != 4 {
		t.Fatalf("expected 4 messages, got %d: %+v", len(repaired), repaired)
	}
	if repaired[2].ID != "c2" || repaired[2].Content != cancelledToolContent {
		t.Fatalf("expected synthetic cancelled message for c2, got %+v", repaired[2])
	}
	if repaired[3].Type != HumanMessage {
		t.Fatalf("expected human message preserved after repair, got %+v", repaired[3])
	}
}
