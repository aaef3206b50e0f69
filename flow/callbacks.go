package flow

import (
	"context"
	"sync"

	"github.com/hupe1980/chatflow/core"
	"github.com/hupe1980/chatflow/logging"
	"github.com/hupe1980/chatflow/model"
)

// CallbackType defines the lifecycle points of a run where callbacks execute.
//
// Callbacks run synchronously on the run's goroutine (tool callbacks on the
// goroutine invoking the tool). A callback returning an error aborts the run,
// with the exception of CallbackOnError whose errors are joined to the
// original failure.
type CallbackType string

const (
	// CallbackBeforeModel is triggered before every backend request.
	CallbackBeforeModel CallbackType = "before_model"

	// CallbackAfterModel is triggered once the final response of a turn arrived.
	CallbackAfterModel CallbackType = "after_model"

	// CallbackBeforeTool is triggered before a tool invocation.
	CallbackBeforeTool CallbackType = "before_tool"

	// CallbackAfterTool is triggered after a tool invocation, successful or not.
	CallbackAfterTool CallbackType = "after_tool"

	// CallbackOnError is triggered when a run fails.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnStateChange is triggered on every state machine transition.
	CallbackOnStateChange CallbackType = "on_state_change"
)

// CallbackContext carries the information available at a lifecycle point.
// Fields not relevant for the callback type are zero.
type CallbackContext struct {
	Type  CallbackType
	Agent string
	RunID string
	Turn  int

	// From and To are set for CallbackOnStateChange.
	From State
	To   State

	Request  *model.Request
	Response *model.Response

	// Call, Result and Err describe a tool invocation.
	Call   *core.FunctionCall
	Result string
	Err    error
}

// Callback is a lifecycle hook.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic. Returning an error aborts the run.
	Execute(ctx context.Context, cbCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(
//	    CallbackBeforeTool,
//	    func(ctx context.Context, cbCtx *CallbackContext) error {
//	        log.Printf("calling %s", cbCtx.Call.Name)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cbCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, cbCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute calls the wrapped function.
func (c *FunctionCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	return c.fn(ctx, cbCtx)
}

// CallbackManager routes lifecycle events to registered callbacks.
//
// Callbacks of one type execute in registration order; the first error stops
// the chain. The manager is safe for concurrent use, tool callbacks may fire
// from parallel tool invocations.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a manager with the given callbacks registered.
func NewCallbackManager(callbacks ...Callback) *CallbackManager {
	cm := &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
	for _, cb := range callbacks {
		cm.Register(cb)
	}
	return cm
}

// Register adds a callback for its type.
func (cm *CallbackManager) Register(cb Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
}

// Execute runs all callbacks registered for cbCtx.Type.
func (cm *CallbackManager) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := cm.callbacks[cbCtx.Type]
	cm.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb.Execute(ctx, cbCtx); err != nil {
			return err
		}
	}
	return nil
}

// LoggingCallback writes one structured log line per lifecycle event.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging callback for the given type.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{callbackType: callbackType, logger: logging.OrNoOp(logger)}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute logs the event. It never fails.
func (c *LoggingCallback) Execute(_ context.Context, cbCtx *CallbackContext) error {
	args := []any{"agent", cbCtx.Agent, "run_id", cbCtx.RunID, "turn", cbCtx.Turn}
	switch cbCtx.Type {
	case CallbackOnStateChange:
		args = append(args, "from", cbCtx.From.String(), "to", cbCtx.To.String())
	case CallbackBeforeTool, CallbackAfterTool:
		if cbCtx.Call != nil {
			args = append(args, "tool", cbCtx.Call.Name, "call_id", cbCtx.Call.ID)
		}
	}
	if cbCtx.Err != nil {
		args = append(args, "error", cbCtx.Err.Error())
	}
	c.logger.Debug("flow.callback."+string(cbCtx.Type), args...)
	return nil
}
