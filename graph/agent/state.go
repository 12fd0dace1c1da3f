package agent

import "sync"

// AgentState is mutable state that flows through one executor run:
// conversation messages, custom fields tools can read/write, and an
// optional structured final response. It implements tool.SharedState so
// RichTool implementations can inspect it via Runtime.State.
type AgentState struct {
	mu                 sync.Mutex
	Messages           []Message
	CustomFields       map[string]any
	StructuredResponse any
}

// NewAgentState returns an empty AgentState.
func NewAgentState() *AgentState {
	return &AgentState{CustomFields: make(map[string]any)}
}

// NewAgentStateWithMessages returns an AgentState seeded with history.
func NewAgentStateWithMessages(messages []Message) *AgentState {
	return &AgentState{Messages: messages, CustomFields: make(map[string]any)}
}

func (s *AgentState) GetField(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.CustomFields[key]
	return v, ok
}

func (s *AgentState) SetField(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CustomFields == nil {
		s.CustomFields = make(map[string]any)
	}
	s.CustomFields[key] = value
}

func (s *AgentState) RemoveField(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.CustomFields[key]
	delete(s.CustomFields, key)
	return v, ok
}

// Snapshot implements tool.SharedState: a read-only copy of custom fields
// plus the message count, safe to hand to a tool without lock contention.
func (s *AgentState) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.CustomFields)+1)
	for k, v := range s.CustomFields {
		out[k] = v
	}
	out["message_count"] = len(s.Messages)
	return out
}

// CommandKind identifies a Command variant.
type CommandKind string

const (
	CommandUpdateState    CommandKind = "update_state"
	CommandRemoveMessages CommandKind = "remove_messages"
	CommandClearMessages  CommandKind = "clear_messages"
	CommandClearState     CommandKind = "clear_state"
)

// Command is a state-patch a tool can return (via tool.Result.Command) to
// update shared state or control execution flow, applied by the executor
// once the tool call's observation has been recorded.
type Command struct {
	Kind       CommandKind
	Fields     map[string]any // CommandUpdateState
	MessageIDs []string       // CommandRemoveMessages
}

// ApplyCommand mutates state according to cmd.
func ApplyCommand(state *AgentState, cmd Command) {
	state.mu.Lock()
	defer state.mu.Unlock()
	switch cmd.Kind {
	case CommandUpdateState:
		if state.CustomFields == nil {
			state.CustomFields = make(map[string]any)
		}
		for k, v := range cmd.Fields {
			state.CustomFields[k] = v
		}
	case CommandRemoveMessages:
		ids := make(map[string]struct{}, len(cmd.MessageIDs))
		for _, id := range cmd.MessageIDs {
			ids[id] = struct{}{}
		}
		kept := state.Messages[:0]
		for _, m := range state.Messages {
			if _, drop := ids[m.ID]; !drop {
				kept = append(kept, m)
			}
		}
		state.Messages = kept
	case CommandClearMessages:
		state.Messages = nil
	case CommandClearState:
		state.Messages = nil
		state.CustomFields = make(map[string]any)
	}
}
