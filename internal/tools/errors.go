package tools

import (
	"errors"
	"fmt"
)

// SchemaError reports arguments that do not match a tool's parameters.
// Execute is never called when it is returned.
type SchemaError struct {
	Tool    string
	Field   string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Message)
	}
	return fmt.Sprintf("invalid arguments for %s: %s: %s", e.Tool, e.Field, e.Message)
}

// UnknownToolError is returned for a name that was never registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// ToolExecutionError wraps a failure or panic inside a tool's execute function.
type ToolExecutionError struct {
	ToolName string
	Message  string
	Err      error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %s", e.ToolName, e.Message)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// IsSchemaError reports whether err belongs to the argument error class,
// which includes calls to unknown tools.
func IsSchemaError(err error) bool {
	var schemaErr *SchemaError
	var unknownErr *UnknownToolError
	return errors.As(err, &schemaErr) || errors.As(err, &unknownErr)
}

// Outcome labels an invocation error for logs and metrics.
func Outcome(err error) string {
	var execErr *ToolExecutionError
	switch {
	case err == nil:
		return "ok"
	case IsSchemaError(err):
		return "schema_error"
	case errors.As(err, &execErr):
		return "execution_error"
	default:
		return "error"
	}
}
