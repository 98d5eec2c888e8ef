// Package tool implements the function-calling subsystem that lets handlers
// expose structured capabilities (geocoding, forecasts, searches) to models
// with schema-validated arguments and consistent error handling.
package tool

import (
	"fmt"

	"github.com/tripmesh/tripmesh/core"
	"github.com/tripmesh/tripmesh/internal/util"
)

// Tool is a callable capability a handler can expose to a model.
//
// Implementations should provide descriptive snake_case names, define a JSON
// schema for their arguments, and be safe for concurrent use.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns the description shown to the model so it knows when
	// to invoke the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with validated arguments. The ToolContext gives
	// access to thread slots, logging and emission.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError is re-exported for callers inspecting failed argument checks.
type ValidationError = util.ValidationError

// Error codes attached to ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// ToolError is the uniform error shape surfaced by tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
