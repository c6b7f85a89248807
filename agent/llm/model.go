// Package llm adapts a tool-calling chat model to the agent's message
// contract, binding the fetched tool schemas at construction time.
package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/hoteldesk/concierge/agent/contract"
	"github.com/hoteldesk/concierge/pkg/openrouter"
)

// Model implements contract.ChatModel over an eino ToolCallingChatModel.
type Model struct {
	inner model.BaseChatModel
}

// New builds the chat model from the provider config and binds the given tool
// schemas so the provider can emit structured tool calls.
func New(ctx context.Context, builder openrouter.LLMBuilder, tools []contractx.ToolSchema) (*Model, error) {
	base, err := builder.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrConnection, err)
	}
	return Bind(base, tools)
}

// Bind wraps an already-constructed model. Exposed separately so tests and
// auxiliary flows (memory analysis uses no tools) can reuse the conversion.
func Bind(base model.ToolCallingChatModel, tools []contractx.ToolSchema) (*Model, error) {
	if len(tools) == 0 {
		return &Model{inner: base}, nil
	}

	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, tool := range tools {
		infos = append(infos, toolInfo(tool))
	}
	bound, err := base.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrModelInvoke, err)
	}
	return &Model{inner: bound}, nil
}

func (m *Model) Generate(ctx context.Context, msgs []contractx.Message) (contractx.RawReply, error) {
	in := make([]*schema.Message, 0, len(msgs))
	for _, msg := range msgs {
		in = append(in, toSchemaMessage(msg))
	}

	out, err := m.inner.Generate(ctx, in)
	if err != nil {
		// Keep the cause in the chain; callers route cancellation and
		// deadline failures differently from provider failures.
		return contractx.RawReply{}, fmt.Errorf("%w: %w", contractx.ErrModelInvoke, err)
	}
	return fromSchemaMessage(out), nil
}

func toSchemaMessage(msg contractx.Message) *schema.Message {
	out := &schema.Message{
		Role:    schemaRole(msg.Role),
		Content: msg.Content,
	}
	if msg.Role == contractx.RoleTool {
		out.ToolCallID = msg.ToolCallID
	}
	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
			ID: call.ID,
			Function: schema.FunctionCall{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}
	return out
}

func fromSchemaMessage(msg *schema.Message) contractx.RawReply {
	if msg == nil {
		return contractx.RawReply{}
	}
	reply := contractx.RawReply{Content: msg.Content}
	for _, call := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, contractx.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return reply
}

func schemaRole(role contractx.Role) schema.RoleType {
	switch role {
	case contractx.RoleSystem:
		return schema.System
	case contractx.RoleAssistant:
		return schema.Assistant
	case contractx.RoleTool:
		return schema.Tool
	default:
		return schema.User
	}
}

func toolInfo(tool contractx.ToolSchema) *schema.ToolInfo {
	required := make(map[string]bool, len(tool.Required))
	for _, name := range tool.Required {
		required[name] = true
	}

	params := make(map[string]*schema.ParameterInfo, len(tool.Properties))
	for name, spec := range tool.Properties {
		desc := spec.Description
		if spec.Format == "date" {
			desc = fmt.Sprintf("%s (YYYY-MM-DD)", desc)
		}
		params[name] = &schema.ParameterInfo{
			Type:     dataType(spec.Type),
			Desc:     desc,
			Required: required[name],
		}
	}

	return &schema.ToolInfo{
		Name:        tool.Name,
		Desc:        tool.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

func dataType(t string) schema.DataType {
	switch t {
	case "integer":
		return schema.Integer
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}
