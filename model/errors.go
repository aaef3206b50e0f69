package model

import (
	"errors"
	"fmt"
)

// ErrNoResponse marks a turn that ended without a final response.
var ErrNoResponse = errors.New("backend returned no final response")

// BackendError wraps network, auth, rate limit and malformed response
// failures reported by a Model. It is never retried internally.
type BackendError struct {
	Provider string
	Err      error
}

func (e *BackendError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("backend error: %v", e.Err)
	}
	return fmt.Sprintf("%s backend error: %v", e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// AsBackendError returns err unchanged if it already is a *BackendError and
// wraps it otherwise.
func AsBackendError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Provider: provider, Err: err}
}
