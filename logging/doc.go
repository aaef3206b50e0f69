// Package logging provides a minimal logging interface and adapters for chatflow.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that agents, flows and runners use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	a, err := agent.New("HelpfulAssistant", backend, func(o *agent.Options) { o.Logger = logger })
package logging
