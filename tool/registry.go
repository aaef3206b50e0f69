package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/hupe1980/chatflow/logging"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// Registry maps tool names to tools and their compiled parameter schemas.
//
// Concurrency:
//
//	Register is normally called while an agent is being constructed; Resolve
//	and Invoke are safe for concurrent use and share no per-invocation state.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*registered
	logger logging.Logger
}

type registered struct {
	tool   Tool
	schema *jsonschema.Resolved
}

// NewRegistry creates an empty Registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		tools:  make(map[string]*registered),
		logger: logging.OrNoOp(opts.Logger),
	}
}

// Register adds a tool. It fails with *DuplicateToolError if the name is
// already taken and with a schema error if Parameters does not compile.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if strings.TrimSpace(name) == "" {
		return errors.New("tool name must not be empty")
	}

	schema, err := compileSchema(t.Parameters())
	if err != nil {
		return fmt.Errorf("tool %q: invalid parameter schema: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return &DuplicateToolError{Name: name}
	}
	r.tools[name] = &registered{tool: t, schema: schema}

	return nil
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return reg.tool, nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns the registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Definitions returns the metadata of all tools sorted by name so backend
// requests are deterministic.
func (r *Registry) Definitions() []Definition {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		t := r.tools[name].tool
		defs = append(defs, Definition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// InvokeJSON decodes a JSON argument object (as emitted by model backends)
// and invokes the named tool. An empty string is treated as "{}".
func (r *Registry) InvokeJSON(ctx context.Context, name, raw string) (string, error) {
	if _, err := r.Resolve(name); err != nil {
		return "", err
	}

	args := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			r.logger.Warn("tool.invoke.decode_failed", "tool", name, "error", err.Error())
			return "", &InvalidArgumentsError{Tool: name, Reason: "arguments are not a JSON object", Err: err}
		}
	}

	return r.Invoke(ctx, name, args)
}

// Invoke validates args against the tool's schema and calls it.
//
// Error Semantics:
//
//	unknown name          -> *UnknownToolError
//	schema mismatch       -> *InvalidArgumentsError (tool is not called)
//	tool returned error   -> *ToolExecutionError (an *InvalidArgumentsError from the tool is forwarded)
//	tool panicked         -> *ToolExecutionError wrapping *PanicError
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (result string, err error) {
	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", &UnknownToolError{Name: name}
	}

	normalized, err := normalizeArgs(args)
	if err != nil {
		return "", &InvalidArgumentsError{Tool: name, Reason: "arguments are not JSON encodable", Err: err}
	}

	if err := reg.schema.Validate(normalized); err != nil {
		r.logger.Warn("tool.invoke.validation_failed", "tool", name, "error", err.Error())
		return "", &InvalidArgumentsError{Tool: name, Reason: err.Error(), Err: err}
	}

	start := time.Now()
	r.logger.Debug("tool.invoke.start", "tool", name)

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool.invoke.panic", "tool", name, "recover", p)
			result, err = "", &ToolExecutionError{Tool: name, Err: &PanicError{Value: p, Stack: debug.Stack()}}
		}
	}()

	result, err = reg.tool.Call(ctx, normalized)
	if err != nil {
		r.logger.Error("tool.invoke.error", "tool", name, "error", err.Error())

		var argErr *InvalidArgumentsError
		if errors.As(err, &argErr) {
			return "", argErr
		}
		return "", &ToolExecutionError{Tool: name, Err: err}
	}

	r.logger.Info("tool.invoke.success", "tool", name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
