package contract

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one role-tagged entry of the conversation sent to the model.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a structured call as emitted by the model, arguments still raw JSON.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// RawReply is the unvalidated model reply before normalization.
type RawReply struct {
	Content   string
	ToolCalls []ToolCall
}

type OutputKind string

const (
	OutputFinalAnswer OutputKind = "final_answer"
	OutputToolCalls   OutputKind = "tool_calls"
	OutputMalformed   OutputKind = "malformed"
)

// ModelOutput is the normalized model reply. Exactly one of Text or Calls is
// meaningful depending on Kind; Raw keeps the offending payload for a
// corrective re-prompt when Kind is OutputMalformed.
type ModelOutput struct {
	Kind  OutputKind
	Text  string
	Calls []ToolRequest
	Raw   string
}

// ToolRequest is a parsed, ready-to-dispatch tool invocation.
type ToolRequest struct {
	ID   string         `json:"id,omitempty"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the normalized outcome of one tool invocation. Fault is nil on
// success; a non-nil Fault is a domain error the model can reason about.
type ToolResult struct {
	Tool    string     `json:"tool"`
	Payload any        `json:"payload,omitempty"`
	Fault   *ToolFault `json:"fault,omitempty"`
}

type ToolFault struct {
	Kind    FaultKind `json:"kind"`
	Message string    `json:"message"`
}

// ParamSpec describes a single tool argument.
type ParamSpec struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Format      string `json:"format,omitempty"`
}

// ToolSchema is the argument contract for one tool, fetched once per session.
type ToolSchema struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Properties  map[string]ParamSpec `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
}
