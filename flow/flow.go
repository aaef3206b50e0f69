// Package flow provides the run orchestrator for chatflow agents.
//
// A Flow drives one conversational run as an explicit state machine:
//
//	Sending -> AwaitingBackend -> Completed
//	                           -> ToolCallRequested -> InvokingTool -> Sending
//
// Any failure moves the run to Failed. Each backend round-trip counts as one
// turn and the tool-call loop is bounded by Options.MaxTurns.
package flow

import (
	"github.com/hupe1980/chatflow/core"
	"github.com/hupe1980/chatflow/logging"
	"github.com/hupe1980/chatflow/model"
	"github.com/hupe1980/chatflow/tool"
)

// DefaultMaxTurns bounds the tool-call loop when no explicit limit is configured.
const DefaultMaxTurns = 10

// ErrTurnLimitExceeded is returned when a run needs more backend round-trips
// than MaxTurns permits.
var ErrTurnLimitExceeded = core.ErrTurnLimitExceeded

// State is a step of the run state machine.
type State int

const (
	StateSending State = iota
	StateAwaitingBackend
	StateToolCallRequested
	StateInvokingTool
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateAwaitingBackend:
		return "awaiting_backend"
	case StateToolCallRequested:
		return "tool_call_requested"
	case StateInvokingTool:
		return "invoking_tool"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configure a Flow.
type Options struct {
	// Name identifies the owning agent in logs and callbacks.
	Name string

	// Instructions is the system level behaviour directive sent with every request.
	Instructions string

	// Tools is the registry tool-call directives are dispatched to. A nil
	// registry is replaced by an empty one.
	Tools *tool.Registry

	// MaxTurns bounds backend round-trips per run. 0 means unbounded.
	MaxTurns int

	// Executor runs the tool calls of one turn. Defaults to sequential execution.
	Executor FunctionExecutor

	// Callbacks are invoked at lifecycle points of every run.
	Callbacks *CallbackManager

	Logger logging.Logger
}

// Flow is an immutable run orchestrator bound to one backend. Execute may be
// called concurrently; every call owns its own conversation state.
type Flow struct {
	model model.Model
	opts  Options
}

// New creates a Flow for the given backend.
func New(m model.Model, optFns ...func(o *Options)) *Flow {
	opts := Options{
		MaxTurns: DefaultMaxTurns,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Tools == nil {
		opts.Tools = tool.NewRegistry()
	}
	if opts.Executor == nil {
		opts.Executor = NewSequentialExecutor()
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Flow{model: m, opts: opts}
}

// Model returns the backend the flow sends requests to.
func (f *Flow) Model() model.Model { return f.model }

// Delta is one streamed text fragment.
type Delta struct {
	Turn int
	Text string
}

// DeltaFunc receives streamed text fragments in arrival order. Returning an
// error aborts the run.
type DeltaFunc func(d Delta) error

// Input describes one run.
type Input struct {
	RunID    string
	History  []core.Message // Prior conversation, never mutated
	Messages []core.Message // New message(s) for this run
	Stream   bool
	OnDelta  DeltaFunc
}

// Result is the outcome of a completed run.
type Result struct {
	RunID string

	// Text is the aggregated assistant text of the run. For a streamed run it
	// equals the concatenation of all delivered fragments.
	Text string

	// Messages are the messages produced by the run in order: the input
	// messages, assistant turns and tool responses.
	Messages []core.Message

	Turns        int
	FinishReason string
	Usage        model.TokenUsage
}
