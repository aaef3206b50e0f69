// Package chatflow provides a high-level façade over the agent, runner and
// session packages. Most applications interact with this package by:
//  1. Creating a Client bound to a model backend via New()
//  2. Creating one or more agents (CreateAgent or NewAgent)
//  3. Running them directly (Agent.Run / Agent.RunStream) or through a
//     session-aware Runner
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable session store and a structured
// logger.
package chatflow

import (
	"errors"

	"github.com/hupe1980/chatflow/agent"
	"github.com/hupe1980/chatflow/flow"
	"github.com/hupe1980/chatflow/logging"
	"github.com/hupe1980/chatflow/model"
	"github.com/hupe1980/chatflow/runner"
	"github.com/hupe1980/chatflow/session"
	"github.com/hupe1980/chatflow/tool"
)

// Options configures the Client. Agent level settings act as defaults for
// every agent created through the client.
type Options struct {
	// MaxTurns bounds backend round-trips per run (0 = unbounded).
	MaxTurns int

	// MaxParallelTools > 1 executes the tool calls of one turn concurrently.
	MaxParallelTools int

	// Callbacks are attached to every agent created by the client.
	Callbacks []flow.Callback

	// SessionStore used by runners (defaults to an in-memory store)
	SessionStore session.Store

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Client binds a model backend and shared services.
type Client struct {
	backend model.Model
	opts    Options
}

// New creates a Client for the given backend. The backend is shared by all
// agents of the client; the client does not own it.
func New(backend model.Model, optFns ...func(o *Options)) (*Client, error) {
	if backend == nil {
		return nil, errors.New("chatflow: backend is required")
	}

	opts := Options{
		MaxTurns: flow.DefaultMaxTurns,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Client{backend: backend, opts: opts}, nil
}

// Model returns the backend of the client.
func (c *Client) Model() model.Model { return c.backend }

// SessionStore returns the store shared by the client's runners.
func (c *Client) SessionStore() session.Store { return c.opts.SessionStore }

// CreateAgent creates an agent with the given instructions and tools.
func (c *Client) CreateAgent(name, instructions string, tools ...tool.Tool) (*agent.Agent, error) {
	return c.NewAgent(name, func(o *agent.Options) {
		o.Instructions = instructions
		o.Tools = tools
	})
}

// NewAgent creates an agent starting from the client defaults.
func (c *Client) NewAgent(name string, optFns ...func(o *agent.Options)) (*agent.Agent, error) {
	return agent.New(name, c.backend, append([]func(o *agent.Options){
		func(o *agent.Options) {
			o.MaxTurns = c.opts.MaxTurns
			o.MaxParallelTools = c.opts.MaxParallelTools
			o.Callbacks = c.opts.Callbacks
			o.Logger = c.opts.Logger
		},
	}, optFns...)...)
}

// Runner returns a session-aware runner for the agent.
func (c *Client) Runner(a *agent.Agent, optFns ...func(o *runner.Options)) *runner.Runner {
	return runner.New(a, append([]func(o *runner.Options){
		func(o *runner.Options) {
			o.SessionStore = c.opts.SessionStore
			o.Logger = c.opts.Logger
		},
	}, optFns...)...)
}
