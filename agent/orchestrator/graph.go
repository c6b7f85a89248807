// Package orchestrator compiles the reservation agent's turn loop into a
// graph and fronts it with a session-aware service.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/hoteldesk/concierge/agent/contract"
	"github.com/hoteldesk/concierge/agent/nodes"
)

// ReplyIncomplete is returned when the turn budget runs out before the model
// produces an answer. A fixed string, never model output.
const ReplyIncomplete = "Üzgünüm, talebinizi şu anda tamamlayamadım. Lütfen isteğinizi biraz daha kısa adımlarla tekrar dener misiniz?"

func compileAgentGraph(
	ctx context.Context,
	steps *nodes.Nodes,
	maxTurns int,
) (compose.Runnable[nodes.Request, nodes.Response], error) {
	graph := compose.NewGraph[nodes.Request, nodes.Response]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(nodes.ValidateRequest),
	); err != nil {
		return nil, fmt.Errorf("add validate node: %w", err)
	}

	if err := graph.AddLambdaNode("retrieve_memory",
		compose.InvokableLambda(steps.RetrieveMemory),
	); err != nil {
		return nil, fmt.Errorf("add retrieve memory node: %w", err)
	}

	if err := graph.AddLambdaNode("call_model",
		compose.InvokableLambda(steps.CallModel),
	); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}

	if err := graph.AddLambdaNode("execute_tools",
		compose.InvokableLambda(steps.ExecuteTools),
	); err != nil {
		return nil, fmt.Errorf("add tool node: %w", err)
	}

	if err := graph.AddLambdaNode("extract_memory",
		compose.InvokableLambda(steps.ExtractMemory),
	); err != nil {
		return nil, fmt.Errorf("add extract memory node: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, st *nodes.State) (nodes.Response, error) {
			if st == nil {
				return nodes.Response{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
			}
			reply := st.FinalReply
			if reply == "" {
				reply = ReplyIncomplete
			}
			return nodes.Response{Reply: reply, Conversation: st.Conversation}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add finalize node: %w", err)
	}

	// After every model turn: loop back through the tools while calls are
	// pending and the turn budget holds, otherwise wrap up.
	branch := compose.NewGraphBranch(
		func(ctx context.Context, st *nodes.State) (string, error) {
			if st == nil {
				return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
			}
			if st.FinalReply == "" && st.TurnCount < maxTurns && len(st.PendingCalls) > 0 {
				return "execute_tools", nil
			}
			return "extract_memory", nil
		},
		map[string]bool{
			"execute_tools":  true,
			"extract_memory": true,
		},
	)

	if err := graph.AddEdge(compose.START, "validate_request"); err != nil {
		return nil, fmt.Errorf("add edge start->validate: %w", err)
	}
	if err := graph.AddEdge("validate_request", "retrieve_memory"); err != nil {
		return nil, fmt.Errorf("add edge validate->memory: %w", err)
	}
	if err := graph.AddEdge("retrieve_memory", "call_model"); err != nil {
		return nil, fmt.Errorf("add edge memory->model: %w", err)
	}
	if err := graph.AddBranch("call_model", branch); err != nil {
		return nil, fmt.Errorf("add model branch: %w", err)
	}
	if err := graph.AddEdge("execute_tools", "call_model"); err != nil {
		return nil, fmt.Errorf("add edge tools->model: %w", err)
	}
	if err := graph.AddEdge("extract_memory", "finalize_reply"); err != nil {
		return nil, fmt.Errorf("add edge extract->finalize: %w", err)
	}
	if err := graph.AddEdge("finalize_reply", compose.END); err != nil {
		return nil, fmt.Errorf("add edge finalize->end: %w", err)
	}

	// The loop revisits call_model and execute_tools once per turn, so the
	// engine's step budget must scale with the configured turn cap or it
	// would cut the loop short of MaxTurns.
	runner, err := graph.Compile(ctx,
		compose.WithGraphName("concierge.agent_graph"),
		compose.WithMaxRunSteps(2*maxTurns+5),
	)
	if err != nil {
		return nil, fmt.Errorf("compile agent graph: %w", err)
	}
	return runner, nil
}
