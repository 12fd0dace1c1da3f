package agent

import (
	"context"
	"fmt"

	"github.com/dshills/langgraph-go/graph/emit"
	"github.com/dshills/langgraph-go/graph/middleware"
	"github.com/dshills/langgraph-go/graph/model"
	"github.com/dshills/langgraph-go/graph/tool"
)

// LLMAgent is the default Agent: it renders chat_history plus the current
// input into a model.ChatModel call, exposing every registered tool as a
// model.ToolSpec, and turns the response into either one AgentAction (the
// model requested a tool) or an AgentFinish (plain text response).
type LLMAgent struct {
	Model        model.ChatModel
	ToolList     []tool.RichTool
	SystemPrompt string
}

// NewLLMAgent builds an LLMAgent over the given chat model and tool set.
func NewLLMAgent(m model.ChatModel, tools ...tool.RichTool) *LLMAgent {
	return &LLMAgent{Model: m, ToolList: tools}
}

func (a *LLMAgent) Tools() []tool.RichTool { return a.ToolList }

func (a *LLMAgent) toolSpecs() []model.ToolSpec {
	specs := make([]model.ToolSpec, len(a.ToolList))
	for i, t := range a.ToolList {
		specs[i] = model.ToolSpec{Name: t.Name(), Description: t.Description(), Schema: t.Parameters()}
	}
	return specs
}

func (a *LLMAgent) buildMessages(input middleware.PromptArgs, steps []middleware.Step) []model.Message {
	var messages []model.Message
	if a.SystemPrompt != "" {
		messages = append(messages, model.Message{Role: model.RoleSystem, Content: a.SystemPrompt})
	}

	for _, m := range MessagesFromAny(input["chat_history"]) {
		messages = append(messages, messageToModel(m))
	}

	for _, step := range steps {
		messages = append(messages, model.Message{
			Role:    model.RoleAssistant,
			Content: fmt.Sprintf("Called tool %s with input %v", step.Action.Tool, step.Action.ToolInput),
		})
		messages = append(messages, model.Message{Role: model.RoleUser, Content: step.Observation})
	}

	if s, ok := input["input"].(string); ok && s != "" {
		messages = append(messages, model.Message{Role: model.RoleUser, Content: s})
	}
	return messages
}

func messageToModel(m Message) model.Message {
	role := model.RoleUser
	switch m.Type {
	case AIMessage:
		role = model.RoleAssistant
	case SystemMessage:
		role = model.RoleSystem
	case ToolMessageT:
		role = model.RoleUser
	}
	return model.Message{Role: role, Content: m.Content}
}

func (a *LLMAgent) Plan(ctx context.Context, steps []middleware.Step, input middleware.PromptArgs) (middleware.AgentEvent, error) {
	messages := a.buildMessages(input, steps)
	req := middleware.ModelRequest{Messages: messages, Tools: a.toolSpecs()}

	chain := middleware.ChainFrom(ctx)
	mc := middleware.RunContextFrom(ctx)
	if chain != nil && mc != nil {
		if modified, err := chain.BeforeModelCall(ctx, req, mc); err != nil {
			return middleware.AgentEvent{}, err
		} else if modified != nil {
			req = *modified
		}
	}

	out, err := a.Model.Chat(ctx, req.Messages, req.Tools)
	if err != nil {
		return middleware.AgentEvent{}, fmt.Errorf("agent: model call failed: %w", err)
	}

	resp := middleware.ModelResponse{Out: out}
	if chain != nil && mc != nil {
		if modified, err := chain.AfterModelCall(ctx, resp, mc); err != nil {
			return middleware.AgentEvent{}, err
		} else if modified != nil {
			resp = *modified
		}
	}
	out = resp.Out

	if write := streamWriteFrom(ctx); write != nil {
		nodeID := ""
		if mc != nil {
			if v, ok := mc.Get("node_id"); ok {
				nodeID, _ = v.(string)
			}
		}
		write(emit.StreamChunk{
			Mode:     emit.StreamModeMessages,
			Data:     out.Text,
			Metadata: &emit.MessageMetadata{LanggraphNode: nodeID},
		})
	}

	if len(out.ToolCalls) > 0 {
		call := out.ToolCalls[0]
		return middleware.AgentEvent{Action: &middleware.AgentAction{
			Tool:      call.Name,
			ToolInput: call.Input,
			Log:       out.Text,
		}}, nil
	}

	return middleware.AgentEvent{Finish: &middleware.AgentFinish{Output: out.Text}}, nil
}

var _ Agent = (*LLMAgent)(nil)
