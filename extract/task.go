package extract

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/kbukum/asynchttp/completion"
	apperrors "github.com/kbukum/asynchttp/errors"
	"github.com/kbukum/asynchttp/response"
)

// Func converts a response into a value. It reads resp.Body from a single
// goroutine and may return before the body ends.
type Func[T any] func(ctx context.Context, resp *response.Response) (T, error)

// Task is one scheduled extraction.
type Task[T any] struct {
	resp   *response.Response
	fn     Func[T]
	signal *completion.Signal[T]
	ran    atomic.Bool
}

// NewTask creates a task that resolves signal with fn's result on resp.
func NewTask[T any](resp *response.Response, fn Func[T], signal *completion.Signal[T]) *Task[T] {
	return &Task[T]{resp: resp, fn: fn, signal: signal}
}

// Run executes the extraction. Calls after the first do nothing.
func (t *Task[T]) Run(ctx context.Context) {
	if !t.ran.CompareAndSwap(false, true) {
		return
	}

	v, err := t.call(ctx)
	if err != nil {
		t.signal.Fail(t.classify(err))
	} else {
		t.signal.Succeed(v)
	}

	// Unread chunks pin transport buffers until released.
	_ = t.resp.Body.Drain()
}

func (t *Task[T]) call(ctx context.Context) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panicked: %v", r)
		}
	}()
	return t.fn(ctx, t.resp)
}

// classify prefers the failure the body observed underneath the extractor,
// since an extractor usually wraps the read error it got.
func (t *Task[T]) classify(err error) error {
	if failure := t.resp.Body.Failure(); failure != nil {
		if _, ok := apperrors.AsAppError(failure); ok {
			return failure
		}
		return apperrors.TransportFailure(failure)
	}
	return apperrors.ExtractionFailure(err)
}
