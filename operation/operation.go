package operation

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/asynchttp/chunk"
	"github.com/kbukum/asynchttp/completion"
	apperrors "github.com/kbukum/asynchttp/errors"
	"github.com/kbukum/asynchttp/extract"
	"github.com/kbukum/asynchttp/logger"
	"github.com/kbukum/asynchttp/observability"
	"github.com/kbukum/asynchttp/response"
	"github.com/kbukum/asynchttp/transport"
	"github.com/kbukum/asynchttp/validation"
)

// Handle is the caller's view of a submitted request.
type Handle[T any] struct {
	id      string
	req     *transport.Request
	engine  *Engine
	signal  *completion.Signal[T]
	asm     *response.Assembler
	log     *logger.Logger
	span    trace.Span
	started time.Time

	// ctx is handed to the transport and the extractor. It only ends when
	// the operation is cancelled.
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu           sync.Mutex
	exchange     transport.Exchange
	pendingAbort error
	stopAfter    func() bool
	finished     bool
}

// Submit starts req and returns without waiting for the response. fn runs on
// the engine's extraction pool once headers arrive. Invalid input resolves
// the handle as failed instead of returning an error.
func Submit[T any](ctx context.Context, e *Engine, req *transport.Request, fn extract.Func[T]) *Handle[T] {
	h := &Handle[T]{
		id:      uuid.NewString(),
		req:     req,
		engine:  e,
		signal:  completion.New[T](),
		started: time.Now(),
	}

	if err := validate(e, req, fn); err != nil {
		h.signal.Fail(err)
		return h
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	spanCtx, span := e.tracer().Start(ctx, observability.SpanOperation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(observability.AttrOperationID, h.id),
			attribute.String(observability.AttrHTTPMethod, req.Method),
			attribute.String(observability.AttrURL, req.URL),
		),
	)
	h.span = span
	h.ctx, h.cancel = context.WithCancelCause(
		logger.ContextWithOperationID(context.WithoutCancel(spanCtx), h.id))
	h.log = e.log().WithContext(spanCtx).WithFields(logger.RequestFields(h.id, req.Method, req.URL))

	h.asm = response.NewAssembler(e.capacity(), response.Hooks{
		OnReady:    func(resp *response.Response) { schedule(h, resp, fn) },
		OnTerminal: func(err error) { h.signal.Fail(err) },
		OnAbort:    h.abortExchange,
		OnState: func(from, to response.State) {
			h.log.Debug("response state changed", logger.Fields("from", from.String(), logger.FieldState, to.String()))
		},
	}, chunk.WithOnFull(func() { e.Metrics.BackpressureWait(h.ctx) }))

	e.Metrics.OperationStarted(h.ctx)
	h.signal.OnComplete(h.finish)

	if ctx.Err() != nil {
		h.cancelWith(context.Cause(ctx))
		return h
	}
	stop := context.AfterFunc(ctx, func() { h.cancelWith(context.Cause(ctx)) })
	h.mu.Lock()
	if h.finished {
		stop()
	} else {
		h.stopAfter = stop
	}
	h.mu.Unlock()

	h.log.Debug("request submitted")
	ex, err := e.Transport.SendAsync(h.ctx, req, &listener[T]{h: h})
	if err != nil {
		// Nothing was sent; the assembler turns this into a failure before
		// headers, unless a cancel got there first.
		h.asm.OnFailure(err)
		return h
	}
	h.setExchange(ex)
	return h
}

// Failed returns a handle already resolved with err, for callers that reject
// a request before it reaches the engine.
func Failed[T any](err error) *Handle[T] {
	h := &Handle[T]{id: uuid.NewString(), signal: completion.New[T](), started: time.Now()}
	h.signal.Fail(err)
	return h
}

func validate[T any](e *Engine, req *transport.Request, fn extract.Func[T]) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if req == nil {
		return apperrors.InvalidInput("request", "is nil")
	}
	return validation.New().
		HTTPURL("url", req.URL).
		Custom(fn != nil, "extractor", "is required").
		Validate()
}

func schedule[T any](h *Handle[T], resp *response.Response, fn extract.Func[T]) {
	task := extract.NewTask(resp, fn, h.signal)
	pool := h.engine.Pool
	pool.Schedule(h.ctx, func(ctx context.Context) {
		ctx, span := h.engine.tracer().Start(ctx, observability.SpanExtraction,
			trace.WithAttributes(attribute.String(observability.AttrPool, pool.Name())))
		defer span.End()
		task.Run(ctx)
		span.SetAttributes(attribute.Int64(observability.AttrBodyBytes, resp.Body.BytesRead()))
	}, func(err error) {
		// Cancellation also ends a queued task; that is not a rejection.
		if !h.signal.Fail(err) {
			return
		}
		h.engine.Metrics.ExtractionRejected(h.ctx, pool.Name())
		h.asm.Abort(err)
	})
}

// setExchange records the in-flight exchange and applies an abort that was
// requested before SendAsync returned.
func (h *Handle[T]) setExchange(ex transport.Exchange) {
	h.mu.Lock()
	h.exchange = ex
	pending := h.pendingAbort
	h.mu.Unlock()
	if pending != nil && ex != nil {
		ex.Abort(pending)
	}
}

func (h *Handle[T]) abortExchange(cause error) {
	h.mu.Lock()
	ex := h.exchange
	if ex == nil && h.pendingAbort == nil {
		h.pendingAbort = cause
	}
	h.mu.Unlock()
	if ex != nil {
		ex.Abort(cause)
	}
}

// ID returns the operation ID carried in logs and spans.
func (h *Handle[T]) ID() string { return h.id }

// Request returns the submitted request.
func (h *Handle[T]) Request() *transport.Request { return h.req }

// State returns the resolution state.
func (h *Handle[T]) State() completion.State { return h.signal.State() }

// Done is closed once the operation resolves.
func (h *Handle[T]) Done() <-chan struct{} { return h.signal.Done() }

// OnComplete registers a continuation. It runs on the resolving goroutine,
// or immediately if the operation already resolved.
func (h *Handle[T]) OnComplete(fn func(T, error)) { h.signal.OnComplete(fn) }

// Meta returns the response status and headers once they have arrived.
func (h *Handle[T]) Meta() (response.Meta, bool) {
	if h.asm == nil {
		return response.Meta{}, false
	}
	if h.asm.State() == response.AwaitingHeaders || h.asm.Channel() == nil {
		return response.Meta{}, false
	}
	return h.asm.Meta(), true
}

// Await blocks until the operation resolves or timeout elapses. On timeout
// it returns a TIMEOUT error and leaves the operation running. A timeout of
// zero or less waits indefinitely.
func (h *Handle[T]) Await(timeout time.Duration) (T, error) {
	if timeout <= 0 {
		return h.signal.Wait(context.Background())
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.signal.Done():
		v, err, _ := h.signal.Result()
		return v, err
	case <-timer.C:
		var zero T
		return zero, apperrors.Timeout("await", timeout).WithDetail("operation_id", h.id)
	}
}

// Wait blocks until the operation resolves or ctx ends. An expired deadline
// is reported as TIMEOUT and a cancelled ctx as CANCELLED; in both cases the
// operation itself keeps running.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	v, err := h.signal.Wait(ctx)
	select {
	case <-h.signal.Done():
		return v, err
	default:
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = apperrors.New(apperrors.ErrCodeTimeout, "wait deadline exceeded").WithCause(ctx.Err())
	case ctx.Err() != nil:
		err = apperrors.Cancelled().WithCause(ctx.Err())
	}
	return v, err
}

// Cancel resolves the operation as CANCELLED, releases buffered body chunks
// and aborts the transport exchange. It returns false, doing nothing, if the
// operation already resolved. Safe to call more than once.
func (h *Handle[T]) Cancel() bool {
	return h.cancelWith(nil)
}

func (h *Handle[T]) cancelWith(cause error) bool {
	if h.asm == nil || !h.signal.Cancel() {
		return false
	}
	abortErr := apperrors.Cancelled()
	if cause != nil {
		abortErr = abortErr.WithCause(cause)
	}
	h.cancel(abortErr)
	h.asm.Abort(abortErr)
	return true
}

func (h *Handle[T]) finish(_ T, err error) {
	h.mu.Lock()
	h.finished = true
	stop := h.stopAfter
	h.mu.Unlock()
	if stop != nil {
		stop()
	}

	elapsed := time.Since(h.started)
	outcome := observability.OutcomeSucceeded
	switch h.signal.State() {
	case completion.Failed:
		outcome = observability.OutcomeFailed
	case completion.Cancelled:
		outcome = observability.OutcomeCancelled
	}

	fields := logger.MergeWithDuration(logger.Fields(logger.FieldState, outcome), elapsed)
	if meta, ok := h.Meta(); ok {
		fields[logger.FieldStatus] = meta.StatusCode
		h.span.SetAttributes(attribute.Int(observability.AttrStatusCode, meta.StatusCode))
	}
	h.span.SetAttributes(attribute.String(observability.AttrOutcome, outcome))

	if err != nil {
		code := string(apperrors.Code(err))
		fields = logger.MergeWithError(fields, err)
		fields[logger.FieldErrorCode] = code
		h.span.SetAttributes(attribute.String(observability.AttrErrorCode, code))
		if outcome == observability.OutcomeFailed {
			h.span.RecordError(err)
			h.span.SetStatus(codes.Error, err.Error())
		}
	}

	h.engine.Metrics.OperationFinished(h.ctx, h.req.Method, outcome, elapsed)
	h.span.End()

	if outcome == observability.OutcomeFailed {
		h.log.Warn("operation failed", fields)
		return
	}
	h.log.Debug("operation resolved", fields)
}
