// Package normalizer is the single place that interprets raw model output and
// raw tool-host output into the typed shapes the rest of the agent consumes.
package normalizer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	contractx "github.com/hoteldesk/concierge/agent/contract"
)

// DateLayout is the only accepted calendar date format for tool arguments.
const DateLayout = "2006-01-02"

// ClassifyModelOutput maps a raw model reply to exactly one of FinalAnswer,
// ToolCallRequest(s) or MalformedOutput. It never returns an error: output
// that intends a tool call but cannot be parsed becomes OutputMalformed so
// the caller can decide to re-prompt instead of failing the request.
func ClassifyModelOutput(reply contractx.RawReply) contractx.ModelOutput {
	if len(reply.ToolCalls) > 0 {
		return classifyStructuredCalls(reply.ToolCalls)
	}

	content := strings.TrimSpace(reply.Content)
	if content == "" {
		return contractx.ModelOutput{Kind: contractx.OutputMalformed, Raw: reply.Content}
	}

	if looksLikeToolCall(content) {
		if call, ok := parseContentCall(content); ok {
			return contractx.ModelOutput{
				Kind:  contractx.OutputToolCalls,
				Calls: []contractx.ToolRequest{call},
				Raw:   content,
			}
		}
		return contractx.ModelOutput{Kind: contractx.OutputMalformed, Raw: content}
	}

	return contractx.ModelOutput{Kind: contractx.OutputFinalAnswer, Text: content}
}

func classifyStructuredCalls(calls []contractx.ToolCall) contractx.ModelOutput {
	reqs := make([]contractx.ToolRequest, 0, len(calls))
	for _, call := range calls {
		name := strings.TrimSpace(call.Name)
		if name == "" {
			return contractx.ModelOutput{Kind: contractx.OutputMalformed, Raw: call.Arguments}
		}

		args := map[string]any{}
		if raw := strings.TrimSpace(call.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return contractx.ModelOutput{Kind: contractx.OutputMalformed, Raw: call.Arguments}
			}
		}
		reqs = append(reqs, contractx.ToolRequest{ID: call.ID, Tool: name, Args: args})
	}
	return contractx.ModelOutput{Kind: contractx.OutputToolCalls, Calls: reqs}
}

// looksLikeToolCall reports whether content carries a recognizable call
// marker: a JSON object mentioning a "tool" or "name" key. Plain prose never
// matches, so a false here safely means FinalAnswer.
func looksLikeToolCall(content string) bool {
	stripped := stripCodeFence(content)
	if !strings.HasPrefix(stripped, "{") {
		return false
	}
	return strings.Contains(stripped, `"tool"`) || strings.Contains(stripped, `"name"`)
}

type contentCall struct {
	Tool      string         `json:"tool"`
	Name      string         `json:"name"`
	Args      map[string]any `json:"args"`
	Arguments map[string]any `json:"arguments"`
}

func parseContentCall(content string) (contractx.ToolRequest, bool) {
	var call contentCall
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &call); err != nil {
		return contractx.ToolRequest{}, false
	}

	name := strings.TrimSpace(call.Tool)
	if name == "" {
		name = strings.TrimSpace(call.Name)
	}
	if name == "" {
		return contractx.ToolRequest{}, false
	}

	args := call.Args
	if args == nil {
		args = call.Arguments
	}
	if args == nil {
		args = map[string]any{}
	}
	return contractx.ToolRequest{Tool: name, Args: args}, true
}

func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// ValidateArgs checks parsed arguments against a fetched tool schema:
// required fields must be present and date-formatted fields must be calendar
// dates in DateLayout. A nil return means the arguments are acceptable.
func ValidateArgs(schema contractx.ToolSchema, args map[string]any) *contractx.ToolFault {
	for _, field := range schema.Required {
		if _, ok := args[field]; !ok {
			return &contractx.ToolFault{
				Kind:    contractx.FaultInvalidArgument,
				Message: fmt.Sprintf("missing required argument %q for tool %q", field, schema.Name),
			}
		}
	}

	for field, spec := range schema.Properties {
		val, ok := args[field]
		if !ok || spec.Format != "date" {
			continue
		}
		str, ok := val.(string)
		if !ok {
			return &contractx.ToolFault{
				Kind:    contractx.FaultInvalidArgument,
				Message: fmt.Sprintf("argument %q must be a %s date string", field, DateLayout),
			}
		}
		if _, err := ParseDate(str); err != nil {
			return &contractx.ToolFault{
				Kind:    contractx.FaultInvalidArgument,
				Message: fmt.Sprintf("argument %q is not a valid %s date: %v", field, DateLayout, err),
			}
		}
	}
	return nil
}

// ParseDate parses a calendar date in the fixed YYYY-MM-DD format. Anything
// else is an error, never a silent pass-through.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}
