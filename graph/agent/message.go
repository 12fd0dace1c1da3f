// Package agent implements the plan/act executor loop: an Agent decides
// the next action or final answer given the running step history, the
// executor dispatches tool calls, and graph/middleware hooks intercept
// every seam of that loop.
package agent

// MessageType names the role of a Message in a conversation transcript,
// mirroring the reference schema's AIMessage/HumanMessage/ToolMessage/
// SystemMessage variants.
type MessageType string

const (
	HumanMessage  MessageType = "human"
	AIMessage     MessageType = "ai"
	ToolMessageT  MessageType = "tool"
	SystemMessage MessageType = "system"
)

// ToolCallRef is one tool invocation an AIMessage requested.
type ToolCallRef struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input,omitempty"`
}

// Message is one turn of conversation history.
type Message struct {
	ID         string        `json:"id,omitempty"`
	Type       MessageType   `json:"message_type"`
	Content    string        `json:"content"`
	ToolCalls  []ToolCallRef `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"` // set on ToolMessageT
}

func NewHumanMessage(content string) Message {
	return Message{Type: HumanMessage, Content: content}
}

func NewAIMessage(content string) Message {
	return Message{Type: AIMessage, Content: content}
}

func NewToolMessage(content, toolCallID string) Message {
	return Message{Type: ToolMessageT, Content: content, ToolCallID: toolCallID, ID: toolCallID}
}

func NewSystemMessage(content string) Message {
	return Message{Type: SystemMessage, Content: content}
}

// ToMap converts a Message to the loosely-typed map form used in
// middleware.PromptArgs's "chat_history" slices.
func (m Message) ToMap() map[string]any {
	out := map[string]any{
		"message_type": string(m.Type),
		"content":      m.Content,
	}
	if m.ID != "" {
		out["id"] = m.ID
	}
	if m.ToolCallID != "" {
		out["tool_call_id"] = m.ToolCallID
	}
	if len(m.ToolCalls) > 0 {
		calls := make([]any, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			calls[i] = map[string]any{"id": c.ID, "name": c.Name, "input": c.Input}
		}
		out["tool_calls"] = calls
	}
	return out
}

// MessageFromMap parses the map form back into a Message, tolerating
// missing or mistyped fields (zero-value result rather than an error,
// since chat_history entries are foreign/untrusted data from callers).
func MessageFromMap(m map[string]any) Message {
	msg := Message{}
	if t, ok := m["message_type"].(string); ok {
		msg.Type = MessageType(t)
	}
	if c, ok := m["content"].(string); ok {
		msg.Content = c
	}
	if id, ok := m["id"].(string); ok {
		msg.ID = id
	}
	if tcid, ok := m["tool_call_id"].(string); ok {
		msg.ToolCallID = tcid
	}
	if calls, ok := m["tool_calls"].([]any); ok {
		for _, raw := range calls {
			cm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			ref := ToolCallRef{}
			if id, ok := cm["id"].(string); ok {
				ref.ID = id
			}
			if name, ok := cm["name"].(string); ok {
				ref.Name = name
			}
			if input, ok := cm["input"].(map[string]any); ok {
				ref.Input = input
			}
			msg.ToolCalls = append(msg.ToolCalls, ref)
		}
	}
	return msg
}

// MessagesToAny converts a Message slice into the []any form PromptArgs
// stores chat_history as.
func MessagesToAny(messages []Message) []any {
	out := make([]any, len(messages))
	for i, m := range messages {
		out[i] = m.ToMap()
	}
	return out
}

// MessagesFromAny parses a PromptArgs chat_history value back into
// Messages, tolerating a nil or wrongly-typed value (returns nil).
func MessagesFromAny(raw any) []Message {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]Message, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case map[string]any:
			out = append(out, MessageFromMap(v))
		case Message:
			out = append(out, v)
		}
	}
	return out
}
