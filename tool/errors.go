package tool

import "fmt"

// DuplicateToolError is returned when a tool name is registered twice.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

// UnknownToolError is returned when a tool name cannot be resolved.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool %q not found", e.Name)
}

// InvalidArgumentsError reports arguments that do not match a tool's schema
// or cannot be decoded at all. The tool function is never called in that case.
type InvalidArgumentsError struct {
	Tool   string // Name of the tool the arguments were meant for
	Reason string // Human-readable explanation
	Err    error  // Underlying decode / validation error, if any
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, e.Reason)
}

func (e *InvalidArgumentsError) Unwrap() error { return e.Err }

// ToolExecutionError wraps a failure raised by the tool function itself
// (returned error or recovered panic).
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// PanicError is the ToolExecutionError cause for a recovered panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string { return fmt.Sprintf("panic: %v", p.Value) }
