package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/chatflow/agent"
	"github.com/hupe1980/chatflow/core"
	"github.com/hupe1980/chatflow/logging"
	"github.com/hupe1980/chatflow/session"
)

// ErrRunNotFound is returned by Cancel for unknown or finished runs.
var ErrRunNotFound = errors.New("run not found")

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// SessionStore persists conversation histories.
	SessionStore session.Store
	// MaxConcurrentRuns limits concurrent runs; < 1 means unlimited.
	MaxConcurrentRuns int
	// Logging services.
	Logger logging.Logger
}

// Runner coordinates agent execution against a session store. Public methods
// are safe for concurrent use.
type Runner struct {
	agent  *agent.Agent
	store  session.Store
	sem    *semaphore.Weighted
	logger logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(a *agent.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentRuns: 10,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	r := &Runner{
		agent:      a,
		store:      opts.SessionStore,
		logger:     logging.With(logging.OrNoOp(opts.Logger), "agent", a.Name()),
		activeRuns: make(map[string]context.CancelFunc),
	}
	if opts.MaxConcurrentRuns > 0 {
		r.sem = semaphore.NewWeighted(int64(opts.MaxConcurrentRuns))
	}
	return r
}

// Store returns the session store used by the runner.
func (r *Runner) Store() session.Store { return r.store }

// Run executes a run on the session's history and persists the produced
// messages on success.
func (r *Runner) Run(ctx context.Context, sessionID string, input ...core.Message) (*agent.RunResult, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	sess, err := r.store.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()
	ctx, done := r.register(ctx, runID)
	defer done()

	r.logger.Info("runner.run.start", "session_id", sessionID, "run_id", runID, "history", len(sess.Messages))

	res, err := r.agent.Run(agent.WithRunID(ctx, runID), sess.Messages, input...)
	if err != nil {
		r.logger.Warn("runner.run.failed", "session_id", sessionID, "run_id", runID, "error", err.Error())
		return nil, err
	}
	if err := r.persist(sessionID, res); err != nil {
		return nil, err
	}
	return res, nil
}

// RunStream starts a streamed run on the session's history. The produced
// messages are persisted before the stream's Done channel closes.
func (r *Runner) RunStream(ctx context.Context, sessionID string, input ...core.Message) (*agent.Stream, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}

	sess, err := r.store.Get(sessionID)
	if err != nil {
		r.release()
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()
	runCtx, done := r.register(ctx, runID)

	r.logger.Info("runner.run.start", "session_id", sessionID, "run_id", runID, "history", len(sess.Messages), "stream", true)

	s := r.agent.RunStreamWithOptions(agent.WithRunID(runCtx, runID), sess.Messages, input, func(o *agent.StreamOptions) {
		o.OnComplete = func(res *agent.RunResult) error {
			return r.persist(sessionID, res)
		}
	})

	go func() {
		<-s.Done()
		done()
		r.release()
	}()

	return s, nil
}

// Cancel cancels an active run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	cancel()
	r.logger.Info("runner.run.cancelled", "run_id", runID)

	return nil
}

// ActiveRuns returns the ids of all runs in progress, sorted.
func (r *Runner) ActiveRuns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.activeRuns))
	for id := range r.activeRuns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Runner) register(ctx context.Context, runID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()
		cancel()
	}
}

func (r *Runner) persist(sessionID string, res *agent.RunResult) error {
	if err := r.store.Append(sessionID, res.Messages...); err != nil {
		r.logger.Error("runner.run.persist_failed", "session_id", sessionID, "run_id", res.RunID, "error", err.Error())
		return fmt.Errorf("failed to persist session %s: %w", sessionID, err)
	}
	r.logger.Info("runner.run.persisted", "session_id", sessionID, "run_id", res.RunID, "messages", len(res.Messages))
	return nil
}

func (r *Runner) acquire(ctx context.Context) error {
	if r.sem == nil {
		return nil
	}
	return r.sem.Acquire(ctx, 1)
}

func (r *Runner) release() {
	if r.sem != nil {
		r.sem.Release(1)
	}
}
