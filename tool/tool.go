package tool

import (
	"fmt"

	"github.com/hupe1980/agentbus/core"
)

// Error codes reported by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// Tool is something a model can invoke by name with JSON arguments.
type Tool interface {
	// Name returns the identifier the model uses to request the tool.
	Name() string

	// Description explains what the tool does. Models rely on it to decide
	// when the tool applies, so it should be specific.
	Description() string

	// Parameters returns the JSON schema for the tool's arguments.
	Parameters() map[string]any

	// Call executes the tool. Implementations should honor cancellation
	// through mctx and return a ToolError for failures they can classify.
	Call(mctx *core.MessageContext, args map[string]any) (any, error)
}

// ToolError is a structured failure from a tool invocation.
type ToolError struct {
	Tool    string `json:"tool"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed (%s): %s", e.Tool, e.Code, e.Message)
}

// NewValidationError creates a ToolError for invalid arguments.
func NewValidationError(tool, format string, args ...any) *ToolError {
	return &ToolError{Tool: tool, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewExecutionError creates a ToolError for a failure during execution.
func NewExecutionError(tool, format string, args ...any) *ToolError {
	return &ToolError{Tool: tool, Code: CodeExecution, Message: fmt.Sprintf(format, args...)}
}
