package response

import (
	"context"
	"sync"

	"github.com/kbukum/asynchttp/chunk"
	apperrors "github.com/kbukum/asynchttp/errors"
)

// State is the assembler's position in the response lifecycle.
type State int

const (
	AwaitingHeaders State = iota
	Streaming
	Complete
	Failed
	Aborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case AwaitingHeaders:
		return "awaiting_headers"
	case Streaming:
		return "streaming"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further event changes the state.
func (s State) Terminal() bool {
	return s == Complete || s == Failed || s == Aborted
}

// Hooks connect an assembler to the operation that owns it. Every hook is
// optional. All but OnState are called without the assembler lock held.
type Hooks struct {
	// OnReady receives the response once headers have arrived.
	OnReady func(*Response)
	// OnTerminal receives failures that end the exchange before a response
	// exists. Failures after that reach the reader through the channel.
	OnTerminal func(error)
	// OnAbort asks the transport to tear the connection down.
	OnAbort func(cause error)
	// OnState observes every transition. It runs under the assembler lock and
	// must not call back into the assembler.
	OnState func(from, to State)
}

// Assembler turns transport events into a Response backed by a chunk channel.
// It is safe for the transport goroutine and a cancelling goroutine to call
// into it concurrently.
type Assembler struct {
	mu       sync.Mutex
	state    State
	meta     Meta
	ch       *chunk.Channel
	capacity int
	chOpts   []chunk.ChannelOption
	hooks    Hooks
}

// NewAssembler creates an assembler whose channel will hold capacity chunks.
func NewAssembler(capacity int, hooks Hooks, opts ...chunk.ChannelOption) *Assembler {
	return &Assembler{
		capacity: capacity,
		chOpts:   opts,
		hooks:    hooks,
	}
}

// State returns the current state.
func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Meta returns the accepted status and headers. It is the zero Meta until
// headers arrive.
func (a *Assembler) Meta() Meta {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.meta
}

// Channel returns the body channel, or nil if headers never arrived.
func (a *Assembler) Channel() *chunk.Channel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ch
}

// OnHeaders accepts the status line and headers and makes the response
// available. Headers arriving twice violate the protocol.
func (a *Assembler) OnHeaders(meta Meta) {
	a.mu.Lock()
	switch a.state {
	case AwaitingHeaders:
		a.meta = Meta{StatusCode: meta.StatusCode, Header: meta.Header.Clone()}
		a.ch = chunk.NewChannel(a.capacity, a.chOpts...)
		resp := &Response{Meta: a.meta, Body: NewBody(context.Background(), a.ch)}
		a.transitionLocked(Streaming)
		a.mu.Unlock()

		if a.hooks.OnReady != nil {
			a.hooks.OnReady(resp)
		}
	case Streaming:
		a.mu.Unlock()
		a.violation("headers received after the response started streaming")
	default:
		a.mu.Unlock()
	}
}

// OnContent hands c to the reader. It blocks the calling goroutine while the
// channel is full. A non-nil error means the exchange is over and the
// transport should stop reading; c has been released in that case.
func (a *Assembler) OnContent(c *chunk.Chunk) error {
	a.mu.Lock()
	switch a.state {
	case Streaming:
		ch := a.ch
		a.mu.Unlock()
		// Close and Fail wake a suspended offer.
		return ch.Offer(context.Background(), c)
	case AwaitingHeaders:
		a.mu.Unlock()
		c.Release()
		return a.violation("content received before headers")
	default:
		a.mu.Unlock()
		c.Release()
		return chunk.ErrClosed
	}
}

// OnComplete marks the end of the body.
func (a *Assembler) OnComplete() {
	a.mu.Lock()
	switch a.state {
	case Streaming:
		a.ch.Close()
		a.transitionLocked(Complete)
		a.mu.Unlock()
	case AwaitingHeaders:
		a.mu.Unlock()
		a.violation("response completed before headers")
	default:
		a.mu.Unlock()
	}
}

// OnFailure ends the exchange with a transport error.
func (a *Assembler) OnFailure(err error) {
	failure := err
	if !apperrors.IsTransportFailure(err) {
		failure = apperrors.TransportFailure(err)
	}
	a.fail(failure, Failed, false)
}

// Abort ends the exchange on behalf of the caller: the channel fails with
// cause, queued chunks are released and the transport is asked to tear the
// connection down. It returns false if the assembler was already terminal.
//
// After Complete the state no longer changes, but chunks still queued for the
// reader are released so an abandoned body does not pin buffers.
func (a *Assembler) Abort(cause error) bool {
	if cause == nil {
		cause = apperrors.Cancelled()
	}
	if a.fail(cause, Aborted, true) {
		return true
	}
	a.mu.Lock()
	ch, state := a.ch, a.state
	a.mu.Unlock()
	if state == Complete && ch != nil {
		ch.Fail(cause)
	}
	return false
}

func (a *Assembler) violation(reason string) error {
	err := apperrors.ProtocolViolation(reason)
	a.fail(err, Failed, true)
	return err
}

func (a *Assembler) fail(err error, to State, abort bool) bool {
	a.mu.Lock()
	from := a.state
	if from.Terminal() {
		a.mu.Unlock()
		return false
	}
	ch := a.ch
	a.transitionLocked(to)
	a.mu.Unlock()

	if ch != nil {
		ch.Fail(err)
	}
	if abort && a.hooks.OnAbort != nil {
		a.hooks.OnAbort(err)
	}
	if from == AwaitingHeaders && a.hooks.OnTerminal != nil {
		a.hooks.OnTerminal(err)
	}
	return true
}

func (a *Assembler) transitionLocked(to State) {
	from := a.state
	a.state = to
	if a.hooks.OnState != nil {
		a.hooks.OnState(from, to)
	}
}
