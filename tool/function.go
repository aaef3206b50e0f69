package tool

import (
	"context"
	"encoding/json"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a tool.
//
// A FunctionTool has no internal mutable state after construction and is safe
// for concurrent use by multiple goroutines. Argument validation is performed
// by the Registry before Call is reached.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (string, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and function.
//
// Example:
//
//	weather := tool.NewFunctionTool(
//	  "get_weather",
//	  "Get the weather for a given location",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "location": map[string]any{"type": "string", "description": "The location to get weather for"},
//	    },
//	    "required": []string{"location"},
//	  },
//	  func(ctx context.Context, args map[string]any) (string, error) {
//	    return fmt.Sprintf("The weather in %s is sunny with 25°C.", args["location"]), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (string, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewTypedTool derives the parameter schema from the argument struct T by
// reflection and decodes validated arguments into T before calling fn.
//
// Example:
//
//	type WeatherArgs struct {
//	  Location string `json:"location" jsonschema:"The location to get weather for"`
//	}
//
//	weather, err := tool.NewTypedTool("get_weather", "Get the weather for a given location",
//	  func(ctx context.Context, in WeatherArgs) (string, error) {
//	    return fmt.Sprintf("The weather in %s is sunny with 25°C.", in.Location), nil
//	  })
func NewTypedTool[T any](
	name, description string,
	fn func(ctx context.Context, args T) (string, error),
) (*FunctionTool, error) {
	schema, err := schemaFor[T]()
	if err != nil {
		return nil, err
	}

	return NewFunctionTool(name, description, schema, func(ctx context.Context, args map[string]any) (string, error) {
		data, err := json.Marshal(args)
		if err != nil {
			return "", &InvalidArgumentsError{Tool: name, Reason: "encode arguments", Err: err}
		}
		var in T
		if err := json.Unmarshal(data, &in); err != nil {
			return "", &InvalidArgumentsError{Tool: name, Reason: "decode arguments", Err: err}
		}
		return fn(ctx, in)
	}), nil
}

// MustTypedTool is like NewTypedTool but panics if the schema cannot be derived.
func MustTypedTool[T any](
	name, description string,
	fn func(ctx context.Context, args T) (string, error),
) *FunctionTool {
	t, err := NewTypedTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call invokes the wrapped function.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (string, error) {
	return t.fn(ctx, args)
}
