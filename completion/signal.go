// Package completion provides a single-assignment result holder that one
// waiter or one set of continuations observes.
package completion

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/kbukum/asynchttp/errors"
)

// State is the resolution state of a Signal.
type State int

const (
	Pending State = iota
	Succeeded
	Failed
	Cancelled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is a resolution.
func (s State) Terminal() bool {
	return s != Pending
}

// Signal holds the eventual outcome of an operation.
//
// It resolves exactly once. Resolving a signal that already succeeded or failed
// is a programming error and panics. Cancellation is the one expected race: a
// Succeed or Fail that arrives after Cancel is dropped and reports false.
type Signal[T any] struct {
	mu        sync.Mutex
	state     State
	value     T
	err       error
	done      chan struct{}
	callbacks []func(T, error)
}

// New creates a pending signal.
func New[T any]() *Signal[T] {
	return &Signal[T]{done: make(chan struct{})}
}

// Succeed resolves the signal with v.
func (s *Signal[T]) Succeed(v T) bool {
	return s.resolve(Succeeded, v, nil)
}

// Fail resolves the signal with err.
func (s *Signal[T]) Fail(err error) bool {
	if err == nil {
		panic("completion: Fail called with nil error")
	}
	var zero T
	return s.resolve(Failed, zero, err)
}

// Cancel resolves the signal as cancelled. It returns false if the signal was
// already resolved; it never panics.
func (s *Signal[T]) Cancel() bool {
	s.mu.Lock()
	if s.state != Pending {
		s.mu.Unlock()
		return false
	}
	s.state = Cancelled
	s.err = apperrors.Cancelled()
	cbs := s.finishLocked()
	s.mu.Unlock()

	s.run(cbs)
	return true
}

func (s *Signal[T]) resolve(state State, v T, err error) bool {
	s.mu.Lock()
	switch s.state {
	case Pending:
	case Cancelled:
		s.mu.Unlock()
		return false
	default:
		prev := s.state
		s.mu.Unlock()
		panic(fmt.Sprintf("completion: signal resolved as %s after %s", state, prev))
	}
	s.state = state
	s.value = v
	s.err = err
	cbs := s.finishLocked()
	s.mu.Unlock()

	s.run(cbs)
	return true
}

func (s *Signal[T]) finishLocked() []func(T, error) {
	close(s.done)
	cbs := s.callbacks
	s.callbacks = nil
	return cbs
}

func (s *Signal[T]) run(cbs []func(T, error)) {
	for _, cb := range cbs {
		cb(s.value, s.err)
	}
}

// OnComplete registers a continuation. It runs on the resolving goroutine, or
// immediately on the caller's goroutine if the signal is already resolved.
func (s *Signal[T]) OnComplete(fn func(T, error)) {
	s.mu.Lock()
	if s.state == Pending {
		s.callbacks = append(s.callbacks, fn)
		s.mu.Unlock()
		return
	}
	v, err := s.value, s.err
	s.mu.Unlock()
	fn(v, err)
}

// Done returns a channel that is closed once the signal resolves.
func (s *Signal[T]) Done() <-chan struct{} {
	return s.done
}

// State returns the current state.
func (s *Signal[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the outcome and whether the signal has resolved.
func (s *Signal[T]) Result() (T, error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.err, s.state != Pending
}

// Wait blocks until the signal resolves or ctx ends. When ctx ends first the
// context error is returned and the signal is left untouched.
func (s *Signal[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-s.done:
		v, err, _ := s.Result()
		return v, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
