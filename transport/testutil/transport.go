// Package testutil provides a scriptable in-memory transport. Tests drive the
// listener directly, the way a network read loop would, and observe aborts.
package testutil

import (
	"context"
	"sync"

	"github.com/kbukum/asynchttp/chunk"
	"github.com/kbukum/asynchttp/response"
	"github.com/kbukum/asynchttp/transport"
)

// Transport records every exchange it is asked to start.
type Transport struct {
	mu        sync.Mutex
	exchanges []*Exchange
	started   chan *Exchange
	// SendErr, when set, is returned by SendAsync instead of starting an exchange.
	SendErr error
}

var _ transport.Transport = (*Transport)(nil)

// New creates a transport whose exchanges are announced on Started.
func New() *Transport {
	return &Transport{started: make(chan *Exchange, 64)}
}

// SendAsync records the exchange and returns immediately.
func (t *Transport) SendAsync(_ context.Context, req *transport.Request, l transport.Listener) (transport.Exchange, error) {
	if t.SendErr != nil {
		return nil, t.SendErr
	}
	ex := &Exchange{Request: req, listener: l, aborted: make(chan struct{})}
	t.mu.Lock()
	t.exchanges = append(t.exchanges, ex)
	t.mu.Unlock()
	t.started <- ex
	return ex, nil
}

// Started delivers exchanges in the order they were sent.
func (t *Transport) Started() <-chan *Exchange {
	return t.started
}

// Next waits for the next exchange.
func (t *Transport) Next() *Exchange {
	return <-t.started
}

// Exchanges returns every exchange started so far.
func (t *Transport) Exchanges() []*Exchange {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Exchange(nil), t.exchanges...)
}

// Exchange is a recorded request plus the listener the engine handed over.
type Exchange struct {
	Request  *transport.Request
	listener transport.Listener

	mu         sync.Mutex
	abortCause error
	abortCount int
	aborted    chan struct{}
}

// Headers delivers a status line and headers given as name, value pairs.
func (e *Exchange) Headers(status int, kv ...string) {
	h := response.NewHeader()
	for i := 0; i+1 < len(kv); i += 2 {
		h.Add(kv[i], kv[i+1])
	}
	e.listener.OnHeaders(response.Meta{StatusCode: status, Header: h})
}

// Content delivers a chunk; it blocks while the engine applies backpressure.
func (e *Exchange) Content(c *chunk.Chunk) error {
	return e.listener.OnContent(c)
}

// Complete ends the body.
func (e *Exchange) Complete() {
	e.listener.OnComplete()
}

// Fail ends the exchange with err.
func (e *Exchange) Fail(err error) {
	e.listener.OnFailure(err)
}

// Abort implements transport.Exchange.
func (e *Exchange) Abort(cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.abortCount++
	if e.abortCount == 1 {
		e.abortCause = cause
		close(e.aborted)
	}
}

// Aborted is closed on the first abort.
func (e *Exchange) Aborted() <-chan struct{} {
	return e.aborted
}

// AbortCount returns how many times Abort was called.
func (e *Exchange) AbortCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.abortCount
}

// AbortCause returns the cause passed to the first Abort.
func (e *Exchange) AbortCause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.abortCause
}
