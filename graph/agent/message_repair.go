package agent

import "fmt"

const cancelledToolContent = "Tool call was cancelled or interrupted."

// RepairDanglingToolCalls ensures every AIMessage with tool_calls is
// followed by a matching number of ToolMessages, inserting synthetic
// cancelled-tool messages for any that are missing (e.g. because
// execution was interrupted mid-turn). Without this, resuming a run whose
// history ends on an unanswered tool call would produce an invalid
// transcript for most chat model APIs.
func RepairDanglingToolCalls(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	i := 0
	for i < len(messages) {
		msg := messages[i]
		needed, ids := 0, []string(nil)
		if msg.Type == AIMessage {
			needed, ids = len(msg.ToolCalls), toolCallIDs(msg.ToolCalls)
		}

		if needed == 0 {
			out = append(out, msg)
			i++
			continue
		}

		count := 0
		j := i + 1
		for j < len(messages) && count < needed && messages[j].Type == ToolMessageT {
			count++
			j++
		}

		out = append(out, msg)
		for k := 0; k < count; k++ {
			out = append(out, messages[i+1+k])
		}
		for k := count; k < needed; k++ {
			id := fmt.Sprintf("call_cancelled_%d", k)
			if k < len(ids) && ids[k] != "" {
				id = ids[k]
			}
			out = append(out, NewToolMessage(cancelledToolContent, id))
		}
		i = j
	}
	return out
}

func toolCallIDs(calls []ToolCallRef) []string {
	ids := make([]string, len(calls))
	for i, c := range calls {
		ids[i] = c.ID
	}
	return ids
}
