// Package tool implements the function / tool calling subsystem that lets agents
// invoke local capabilities (APIs, computations, side-effects) with schema
// validated arguments and consistent error handling.
package tool

import "context"

// Tool defines the interface for extending agent capabilities with local functions.
//
// Tools are registered with an agent at construction time. When the model
// backend emits a tool-call directive the orchestrator looks the tool up by
// name, validates the arguments against Parameters and calls it.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define a JSON schema object for their parameters
//   - Be safe for concurrent calls with different arguments
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case recommended).
	Name() string

	// Description returns a human-readable description provided to the model
	// so it can decide when to call the tool.
	Description() string

	// Parameters returns a JSON schema object describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with already validated arguments. The result is
	// passed back to the model verbatim. Call may have arbitrary side effects;
	// callers must not assume it is idempotent.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Definition is the introspectable metadata of a registered tool.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
