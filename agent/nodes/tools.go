package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/hoteldesk/concierge/agent/contract"
)

// ExecuteTools runs the queued tool calls strictly in request order and feeds
// every outcome, success or failure, back into the conversation. An unknown
// tool name and a failed execution are both relayed to the model so it can
// recover conversationally; only request cancellation aborts the turn.
func (n *Nodes) ExecuteTools(ctx context.Context, st *State) (*State, error) {
	for _, call := range st.PendingCalls {
		res, err := n.tools.Call(ctx, call.Tool, call.Args)

		switch {
		case err == nil:
			st.ToolResults = append(st.ToolResults, res)
			st.Conversation = append(st.Conversation, toolMessage(call, resultContent(res)))

		case errors.Is(err, contractx.ErrUnknownTool):
			log.Warn().Str("tool", call.Tool).Msg("model requested unknown tool")
			st.Conversation = append(st.Conversation, toolMessage(call,
				fmt.Sprintf(`{"error":{"kind":"unknown_tool","message":"no tool named %q exists; use only the provided tools"}}`, call.Tool)))

		default:
			var toolErr *contractx.ToolError
			if !errors.As(err, &toolErr) {
				// Cancellation or another non-tool failure ends the turn.
				return nil, err
			}
			log.Warn().Str("tool", call.Tool).Err(toolErr.Err).Msg("tool execution failed")
			st.ToolResults = append(st.ToolResults, contractx.ToolResult{
				Tool:  call.Tool,
				Fault: &contractx.ToolFault{Kind: toolErr.Kind, Message: toolErr.Error()},
			})
			st.Conversation = append(st.Conversation, toolMessage(call,
				`{"error":{"kind":"execution_failed","message":"the tool could not be reached; apologize and suggest trying again"}}`))
		}
	}

	st.PendingCalls = nil
	return st, nil
}

// toolMessage pairs a result with its originating call. Calls without an id
// came from content-embedded requests and go back as plain user turns.
func toolMessage(call contractx.ToolRequest, content string) contractx.Message {
	if call.ID == "" {
		return contractx.Message{
			Role:    contractx.RoleUser,
			Content: fmt.Sprintf("Tool %q result: %s", call.Tool, content),
		}
	}
	return contractx.Message{
		Role:       contractx.RoleTool,
		Content:    content,
		ToolCallID: call.ID,
	}
}

func resultContent(res contractx.ToolResult) string {
	if res.Fault != nil {
		return fmt.Sprintf(`{"error":{"kind":%q,"message":%q}}`, res.Fault.Kind, res.Fault.Message)
	}
	raw, err := json.Marshal(res.Payload)
	if err != nil {
		return fmt.Sprintf("%v", res.Payload)
	}
	return string(raw)
}
