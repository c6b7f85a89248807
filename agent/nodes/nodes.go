package nodes

import (
	"time"

	contractx "github.com/hoteldesk/concierge/agent/contract"
	"github.com/hoteldesk/concierge/agent/prompt"
)

// Nodes bundles the dependencies the graph steps share.
type Nodes struct {
	model     contractx.ChatModel
	extractor contractx.ChatModel
	tools     contractx.ToolSession
	memory    contractx.MemoryStore
	prompts   prompt.PromptSet
	topK      int
	now       func() time.Time
}

type Option func(*Nodes)

// WithClock overrides the time source used for the prompt date line.
func WithClock(now func() time.Time) Option {
	return func(n *Nodes) {
		if now != nil {
			n.now = now
		}
	}
}

// WithTopKMemories sets how many memory records are retrieved per turn.
func WithTopKMemories(k int) Option {
	return func(n *Nodes) {
		if k >= 0 {
			n.topK = k
		}
	}
}

// New wires the graph steps. The extractor model and the memory store may be
// nil; the memory steps then become no-ops.
func New(
	model contractx.ChatModel,
	extractor contractx.ChatModel,
	tools contractx.ToolSession,
	memory contractx.MemoryStore,
	prompts prompt.PromptSet,
	opts ...Option,
) *Nodes {
	n := &Nodes{
		model:     model,
		extractor: extractor,
		tools:     tools,
		memory:    memory,
		prompts:   prompts,
		topK:      5,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}
