package nodes

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/hoteldesk/concierge/agent/contract"
	"github.com/hoteldesk/concierge/agent/normalizer"
)

const repromptInstruction = "Your previous reply could not be interpreted. " +
	"Answer the user in plain text, or request a tool through the structured tool-call interface. " +
	"Do not mix the two."

// CallModel runs one model turn over the system prompt plus the conversation
// so far. A final answer ends the loop; tool calls are queued for execution.
// Malformed output gets exactly one corrective re-prompt inside this step,
// then fails the turn with ErrMalformedOutput.
func (n *Nodes) CallModel(ctx context.Context, st *State) (*State, error) {
	msgs := make([]contractx.Message, 0, len(st.Conversation)+1)
	msgs = append(msgs, contractx.Message{
		Role:    contractx.RoleSystem,
		Content: n.prompts.RenderReservation(n.now().Format(normalizer.DateLayout), memoryLines(st)),
	})
	msgs = append(msgs, st.Conversation...)

	for attempt := 0; attempt < 2; attempt++ {
		st.TurnCount++
		reply, err := n.model.Generate(ctx, msgs)
		if err != nil {
			return nil, err
		}

		out := normalizer.ClassifyModelOutput(reply)
		switch out.Kind {
		case contractx.OutputFinalAnswer:
			st.FinalReply = out.Text
			st.Conversation = append(st.Conversation, contractx.Message{
				Role:    contractx.RoleAssistant,
				Content: out.Text,
			})
			return st, nil

		case contractx.OutputToolCalls:
			st.PendingCalls = out.Calls
			st.Conversation = append(st.Conversation, assistantCallMessage(reply, out))
			return st, nil

		default:
			log.Warn().Int("attempt", attempt+1).Msg("model output malformed")
			msgs = append(msgs, contractx.Message{
				Role:    contractx.RoleAssistant,
				Content: out.Raw,
			}, contractx.Message{
				Role:    contractx.RoleUser,
				Content: repromptInstruction,
			})
		}
	}

	return nil, fmt.Errorf("%w: model output unusable after re-prompt", contractx.ErrMalformedOutput)
}

// assistantCallMessage records the model's tool request in the conversation.
// Structured calls keep their call ids so the provider can pair tool results;
// calls parsed out of plain content keep the raw text instead.
func assistantCallMessage(reply contractx.RawReply, out contractx.ModelOutput) contractx.Message {
	if len(reply.ToolCalls) > 0 {
		return contractx.Message{
			Role:      contractx.RoleAssistant,
			Content:   reply.Content,
			ToolCalls: reply.ToolCalls,
		}
	}
	return contractx.Message{Role: contractx.RoleAssistant, Content: out.Raw}
}

func memoryLines(st *State) []string {
	lines := make([]string, 0, len(st.Memories))
	for _, rec := range st.Memories {
		lines = append(lines, rec.Text)
	}
	return lines
}
