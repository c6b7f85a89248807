package normalizer

import (
	"encoding/json"
	"strings"

	mcp "github.com/mark3labs/mcp-go/mcp"

	contractx "github.com/hoteldesk/concierge/agent/contract"
)

// NormalizeToolReply maps a raw tool-host reply into either a value payload
// or a structured fault with a stable kind. An empty or absent reply is a
// NotFound-equivalent, never a silent success.
func NormalizeToolReply(tool string, res *mcp.CallToolResult) contractx.ToolResult {
	if res == nil {
		return contractx.ToolResult{
			Tool: tool,
			Fault: &contractx.ToolFault{
				Kind:    contractx.FaultNotFound,
				Message: "tool host returned no result",
			},
		}
	}

	text := strings.TrimSpace(joinTextContent(res.Content))

	if res.IsError {
		return contractx.ToolResult{
			Tool: tool,
			Fault: &contractx.ToolFault{
				Kind:    classifyFault(text),
				Message: faultMessage(text),
			},
		}
	}

	if text == "" {
		return contractx.ToolResult{
			Tool: tool,
			Fault: &contractx.ToolFault{
				Kind:    contractx.FaultNotFound,
				Message: "tool host returned an empty result",
			},
		}
	}

	return contractx.ToolResult{Tool: tool, Payload: decodePayload(text)}
}

func joinTextContent(content []mcp.Content) string {
	var parts []string
	for _, item := range content {
		if tc, ok := item.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// decodePayload prefers structured JSON; a reply that is not valid JSON is
// passed through as plain text.
func decodePayload(text string) any {
	var payload any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return text
	}
	return payload
}

// classifyFault derives a stable error kind from whatever status signal the
// host put in its error text.
func classifyFault(text string) contractx.FaultKind {
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "not found") || strings.Contains(lowered, "no such") || strings.Contains(lowered, "does not exist"):
		return contractx.FaultNotFound
	case strings.Contains(lowered, "conflict") || strings.Contains(lowered, "already exists") || strings.Contains(lowered, "duplicate"):
		return contractx.FaultConflict
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "must be") || strings.Contains(lowered, "bad request"):
		return contractx.FaultInvalidArgument
	case strings.Contains(lowered, "permission") || strings.Contains(lowered, "denied") || strings.Contains(lowered, "unauthorized") || strings.Contains(lowered, "forbidden"):
		return contractx.FaultPermissionDenied
	default:
		return contractx.FaultUnknown
	}
}

func faultMessage(text string) string {
	if text == "" {
		return "tool host reported an error without detail"
	}
	return text
}
