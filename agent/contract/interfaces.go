package contract

import (
	"context"

	memoryx "github.com/hoteldesk/concierge/agent/memory"
)

// ChatModel is the model boundary: role-tagged messages in, a raw reply out.
// The reply is classified by the normalizer, never interpreted by callers.
type ChatModel interface {
	Generate(ctx context.Context, msgs []Message) (RawReply, error)
}

// ToolSession owns one logical connection to the tool host for its lifetime.
type ToolSession interface {
	Tools() []ToolSchema
	Call(ctx context.Context, tool string, args map[string]any) (ToolResult, error)
	Close() error
}

// MemoryStore is the device-scoped semantic memory used by the graph.
type MemoryStore interface {
	Store(ctx context.Context, text string, metadata map[string]any, deviceID string) (*memoryx.Record, error)
	Search(ctx context.Context, query string, k int, deviceID string) ([]memoryx.Record, error)
}
