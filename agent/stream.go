package agent

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/chatflow/flow"
)

// ErrStreamClosed is reported by Err when the consumer closed the stream
// before the run completed.
var ErrStreamClosed = errors.New("agent: stream closed")

type execFunc func(ctx context.Context, onDelta flow.DeltaFunc) (*flow.Result, error)

// Stream is a lazy, forward-only sequence of text fragments of one run.
//
// Typical usage:
//
//	s := a.RunStream(ctx, nil, core.UserText("Tell me a story"))
//	defer s.Close()
//	for s.Next() {
//	    fmt.Print(s.Current().Text)
//	}
//	if err := s.Err(); err != nil {
//	    return err
//	}
//
// A Stream has a single consumer and is not restartable. Fragments are handed
// over without buffering, so the run never gets ahead of the consumer by more
// than one fragment.
type Stream struct {
	runID  string
	chunks chan Chunk
	done   chan struct{}
	cancel context.CancelFunc

	closed      atomic.Bool
	interrupted atomic.Bool // Close ran before the run terminated
	closeOnce   sync.Once

	current Chunk
	text    strings.Builder

	mu     sync.Mutex
	result *RunResult
	err    error
}

func newStream(parent context.Context, runID string, onComplete func(*RunResult) error, exec execFunc) *Stream {
	ctx, cancel := context.WithCancel(parent)
	s := &Stream{
		runID:  runID,
		chunks: make(chan Chunk),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(s.done)
		defer close(s.chunks)
		defer cancel()

		res, err := exec(ctx, func(d flow.Delta) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case s.chunks <- Chunk{Text: d.Text, Turn: d.Turn}:
				return nil
			}
		})

		var result *RunResult
		if err == nil {
			result = newRunResult(res)
			if onComplete != nil {
				if cbErr := onComplete(result); cbErr != nil {
					result, err = nil, cbErr
				}
			}
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.result, s.err = result, err
	}()

	return s
}

func failedStream(runID string, err error) *Stream {
	s := &Stream{
		runID:  runID,
		chunks: make(chan Chunk),
		done:   make(chan struct{}),
		cancel: func() {},
		err:    err,
	}
	close(s.chunks)
	close(s.done)
	return s
}

// RunID returns the id of the run backing the stream.
func (s *Stream) RunID() string { return s.runID }

// Next blocks until the next fragment is available. It returns false once
// the run terminated or the stream was closed. After the run terminated Err
// and Result are final.
func (s *Stream) Next() bool {
	if s.closed.Load() {
		return false
	}
	c, ok := <-s.chunks
	if !ok {
		<-s.done
		return false
	}
	if s.closed.Load() {
		return false
	}
	s.current = c
	s.text.WriteString(c.Text)
	return true
}

// Current returns the fragment read by the last successful Next.
func (s *Stream) Current() Chunk { return s.current }

// Text returns the concatenation of all fragments consumed so far.
func (s *Stream) Text() string { return s.text.String() }

// All returns an iterator over the remaining fragments.
func (s *Stream) All() iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		for s.Next() {
			if !yield(s.current) {
				return
			}
		}
	}
}

// Done is closed once the run terminated.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err returns the terminal error of the run. It is nil while the run is in
// progress and after a successful completion. A stream whose run was
// interrupted by Close reports ErrStreamClosed; a run that had already
// failed keeps its own error.
func (s *Stream) Err() error {
	select {
	case <-s.done:
	default:
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil && s.interrupted.Load() {
		return ErrStreamClosed
	}
	return s.err
}

// Result returns the run result once the run completed successfully and nil
// otherwise. It does not block.
func (s *Stream) Result() *RunResult {
	select {
	case <-s.done:
	default:
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Wait drains the remaining fragments and returns the result.
func (s *Stream) Wait() (*RunResult, error) {
	for s.Next() {
	}
	<-s.done
	if err := s.Err(); err != nil {
		return nil, err
	}
	return s.Result(), nil
}

// Close cancels the run if it is still in progress and waits for it to
// terminate. No fragment is yielded after Close. Close is idempotent.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		select {
		case <-s.done:
		default:
			s.interrupted.Store(true)
		}
		s.cancel()
	})
	<-s.done
	return nil
}
