package contract

import (
	"errors"
	"fmt"
)

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrMalformedOutput = errors.New("model output is malformed")
	ErrConnection      = errors.New("tool host unreachable")
	ErrUnknownTool     = errors.New("unknown tool requested")
	ErrToolExecution   = errors.New("tool execution failed")
	ErrValidation      = errors.New("validation failed")
)

type FaultKind string

const (
	FaultNotFound         FaultKind = "not_found"
	FaultConflict         FaultKind = "conflict"
	FaultInvalidArgument  FaultKind = "invalid_argument"
	FaultPermissionDenied FaultKind = "permission_denied"
	FaultUnknown          FaultKind = "unknown"
)

// ToolError is a tool invocation failure with a stable kind. It matches both
// ErrToolExecution and its underlying cause under errors.Is.
type ToolError struct {
	Tool string
	Kind FaultKind
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool=%s kind=%s: %v", e.Tool, e.Kind, e.Err)
}

func (e *ToolError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrToolExecution}
	}
	return []error{ErrToolExecution, e.Err}
}
