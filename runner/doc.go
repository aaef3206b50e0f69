// Package runner implements the session-aware execution layer for chatflow.
//
// A Runner wraps a single agent and takes care of the bookkeeping a
// conversational application needs around it:
//   - Loading the session history before a run
//   - Persisting the messages produced by a successful run
//   - Bounding the number of concurrent runs
//   - Cancelling active runs by id
//
// Failed or cancelled runs leave the session untouched, so callers can apply
// their own retry policy without duplicating history.
package runner
