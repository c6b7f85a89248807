// Package nodes holds the per-step logic of the reservation agent graph. Each
// node takes the shared state, does one thing and hands the state forward.
package nodes

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/hoteldesk/concierge/agent/contract"
	memoryx "github.com/hoteldesk/concierge/agent/memory"
)

// Request is what one user turn brings into the graph.
type Request struct {
	Utterance string
	History   []contractx.Message
	DeviceID  string
}

// Response is what the graph hands back to the caller.
type Response struct {
	Reply        string
	Conversation []contractx.Message
}

// State is the single mutable value threaded through the graph nodes.
type State struct {
	Utterance    string
	DeviceID     string
	Conversation []contractx.Message
	PendingCalls []contractx.ToolRequest
	ToolResults  []contractx.ToolResult
	Memories     []memoryx.Record
	TurnCount    int
	FinalReply   string
}

// ValidateRequest rejects empty input and seeds the conversation with the
// prior history plus the new user message.
func ValidateRequest(ctx context.Context, req Request) (*State, error) {
	utterance := strings.TrimSpace(req.Utterance)
	if utterance == "" {
		return nil, fmt.Errorf("%w: user message is empty", contractx.ErrValidation)
	}

	conv := make([]contractx.Message, 0, len(req.History)+1)
	conv = append(conv, req.History...)
	conv = append(conv, contractx.Message{Role: contractx.RoleUser, Content: utterance})

	return &State{
		Utterance:    utterance,
		DeviceID:     strings.TrimSpace(req.DeviceID),
		Conversation: conv,
	}, nil
}
