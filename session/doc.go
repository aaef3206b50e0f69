// Package session stores conversation histories keyed by session id so
// callers can keep multi-turn conversations without threading the history
// through every call themselves.
//
// Additional backends (Redis, Postgres, ...) implement Store in sub packages
// without changing any calling code; only the wiring layer decides which
// implementation to instantiate.
package session
