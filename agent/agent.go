package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/chatflow/core"
	"github.com/hupe1980/chatflow/flow"
	"github.com/hupe1980/chatflow/logging"
	"github.com/hupe1980/chatflow/model"
	"github.com/hupe1980/chatflow/tool"
)

// ErrNoInput is returned when a run is started without any input message.
var ErrNoInput = errors.New("agent: no input message")

// Options configures an Agent instance.
//
// Use functional options with New to override defaults.
type Options struct {
	// Instructions is the system level behaviour directive, fixed at construction.
	Instructions string

	// Tools are registered at construction; duplicate names fail New.
	Tools []tool.Tool

	// MaxTurns bounds backend round-trips per run (default flow.DefaultMaxTurns, 0 = unbounded).
	MaxTurns int

	// MaxParallelTools > 1 executes the tool calls of one turn concurrently.
	MaxParallelTools int

	Callbacks []flow.Callback
	Logger    logging.Logger
}

// Agent integrates a model backend with a tool registry to run conversations.
type Agent struct {
	name         string
	instructions string
	backend      model.Model
	tools        *tool.Registry
	flow         *flow.Flow
	logger       logging.Logger
}

// New creates an agent. The backend is shared, not owned.
func New(name string, backend model.Model, optFns ...func(o *Options)) (*Agent, error) {
	if backend == nil {
		return nil, errors.New("agent: backend is required")
	}

	opts := Options{
		MaxTurns: flow.DefaultMaxTurns,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxTurns < 0 {
		return nil, fmt.Errorf("agent: invalid max turns %d", opts.MaxTurns)
	}

	logger := logging.With(logging.OrNoOp(opts.Logger), "agent", name)

	registry := tool.NewRegistry(func(o *tool.RegistryOptions) { o.Logger = logger })
	for _, t := range opts.Tools {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("agent %s: %w", name, err)
		}
	}

	executor := flow.NewSequentialExecutor()
	if opts.MaxParallelTools > 1 {
		executor = flow.NewParallelExecutor(opts.MaxParallelTools)
	}

	f := flow.New(backend, func(o *flow.Options) {
		o.Name = name
		o.Instructions = opts.Instructions
		o.Tools = registry
		o.MaxTurns = opts.MaxTurns
		o.Executor = executor
		o.Callbacks = flow.NewCallbackManager(opts.Callbacks...)
		o.Logger = opts.Logger
	})

	return &Agent{
		name:         name,
		instructions: opts.Instructions,
		backend:      backend,
		tools:        registry,
		flow:         f,
		logger:       logger,
	}, nil
}

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// Instructions returns the system level behaviour directive.
func (a *Agent) Instructions() string { return a.instructions }

// Model returns the backend the agent sends requests to.
func (a *Agent) Model() model.Model { return a.backend }

// Tools returns the metadata of the registered tools sorted by name.
func (a *Agent) Tools() []tool.Definition { return a.tools.Definitions() }

// Run executes one conversational run and blocks until it completes. history
// is the prior conversation and is never modified.
func (a *Agent) Run(ctx context.Context, history []core.Message, input ...core.Message) (*RunResult, error) {
	if len(input) == 0 {
		return nil, ErrNoInput
	}

	runID := runIDFrom(ctx)
	a.logger.Info("agent.run.start", "run_id", runID, "stream", false)

	res, err := a.flow.Execute(ctx, flow.Input{
		RunID:    runID,
		History:  history,
		Messages: input,
	})
	if err != nil {
		return nil, err
	}
	return newRunResult(res), nil
}

// RunStream starts a streamed run and returns immediately. The returned
// Stream must be consumed by a single goroutine and closed when abandoned.
func (a *Agent) RunStream(ctx context.Context, history []core.Message, input ...core.Message) *Stream {
	return a.RunStreamWithOptions(ctx, history, input)
}

// StreamOptions configure a streamed run.
type StreamOptions struct {
	// OnComplete runs after a successful run and before Done is closed. An
	// error becomes the terminal error of the stream.
	OnComplete func(res *RunResult) error
}

// RunStreamWithOptions is RunStream with additional stream options.
func (a *Agent) RunStreamWithOptions(
	ctx context.Context,
	history, input []core.Message,
	optFns ...func(o *StreamOptions),
) *Stream {
	runID := runIDFrom(ctx)
	if len(input) == 0 {
		return failedStream(runID, ErrNoInput)
	}

	var opts StreamOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	a.logger.Info("agent.run.start", "run_id", runID, "stream", true)

	return newStream(ctx, runID, opts.OnComplete, func(ctx context.Context, onDelta flow.DeltaFunc) (*flow.Result, error) {
		return a.flow.Execute(ctx, flow.Input{
			RunID:    runID,
			History:  history,
			Messages: input,
			Stream:   true,
			OnDelta:  onDelta,
		})
	})
}

type runIDKey struct{}

// WithRunID returns a context carrying the id the next run started with it
// will use. Without it every run gets a fresh id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func runIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return core.NewID()
}
