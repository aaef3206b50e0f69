package core

import (
	"errors"
	"fmt"
)

// ErrTurnLimitExceeded is returned once a run needs more backend round-trips
// than its limiter allows.
var ErrTurnLimitExceeded = errors.New("turn limit exceeded")

// TurnLimiter bounds the number of backend round-trips of a single run. A
// limiter belongs to exactly one run and is not shared between goroutines.
type TurnLimiter struct {
	max   int
	count int
}

// NewTurnLimiter creates a limiter allowing max turns. max == 0 means unbounded.
func NewTurnLimiter(max int) *TurnLimiter {
	return &TurnLimiter{max: max}
}

// Next accounts for one more turn and fails when the bound is crossed.
func (tl *TurnLimiter) Next() error {
	tl.count++
	if tl.max > 0 && tl.count > tl.max {
		return fmt.Errorf("%w: max %d", ErrTurnLimitExceeded, tl.max)
	}
	return nil
}

// Count returns the number of turns started so far.
func (tl *TurnLimiter) Count() int { return tl.count }

// Remaining returns how many turns are left, or -1 when unbounded.
func (tl *TurnLimiter) Remaining() int {
	if tl.max == 0 {
		return -1
	}
	if r := tl.max - tl.count; r > 0 {
		return r
	}
	return 0
}
