package flow

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/chatflow/core"
)

// InvokeFunc performs a single tool invocation including callbacks and logging.
type InvokeFunc func(ctx context.Context, call core.FunctionCall) (string, error)

// FunctionExecutor executes the tool calls requested by one backend turn.
// Implementations must:
//   - Return exactly one result per call, in call order
//   - Not start an invocation once ctx is done
//   - Return the first invocation error and abort the batch
type FunctionExecutor interface {
	Execute(ctx context.Context, calls []core.FunctionCall, invoke InvokeFunc) ([]string, error)
}

type sequentialExecutor struct{}

// NewSequentialExecutor returns an executor invoking tools one after another.
func NewSequentialExecutor() FunctionExecutor { return sequentialExecutor{} }

func (sequentialExecutor) Execute(ctx context.Context, calls []core.FunctionCall, invoke InvokeFunc) ([]string, error) {
	results := make([]string, len(calls))
	for i, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := invoke(ctx, call)
		if err != nil {
			return nil, err
		}
		results[i] = out
	}
	return results, nil
}

// parallelExecutor fans tool calls out on an errgroup with a bounded limit.
type parallelExecutor struct {
	maxParallel int
}

// NewParallelExecutor returns an executor running up to maxParallel tool
// calls of one turn concurrently. maxParallel < 1 means no explicit limit.
// Results keep the original call order; the first failure cancels the calls
// that have not started yet.
func NewParallelExecutor(maxParallel int) FunctionExecutor {
	return &parallelExecutor{maxParallel: maxParallel}
}

func (e *parallelExecutor) Execute(ctx context.Context, calls []core.FunctionCall, invoke InvokeFunc) ([]string, error) {
	if len(calls) <= 1 {
		return sequentialExecutor{}.Execute(ctx, calls, invoke)
	}

	results := make([]string, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	if e.maxParallel > 0 {
		g.SetLimit(e.maxParallel)
	}

	for i, call := range calls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := invoke(gctx, call)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
