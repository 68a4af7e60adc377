package chunk

import (
	"context"
	"io"
	"sync"

	apperrors "github.com/kbukum/asynchttp/errors"
)

// DefaultCapacity is the outstanding-chunk bound used when none is given.
const DefaultCapacity = 16

// ErrClosed is returned by Offer once the channel was closed or failed.
var ErrClosed = apperrors.ChannelClosed()

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithOnFull registers a hook that runs every time a producer is about to
// suspend because the channel is at capacity. It runs on the producer goroutine
// without the channel lock held.
func WithOnFull(fn func()) ChannelOption {
	return func(ch *Channel) { ch.onFull = fn }
}

// Channel is a bounded FIFO of chunks between one producer and one consumer.
type Channel struct {
	mu          sync.Mutex
	capacity    int
	queue       []*Chunk
	outstanding int
	closed      bool
	err         error
	// changed is closed and replaced on every state change.
	changed chan struct{}
	onFull  func()
}

// NewChannel creates a channel that holds at most capacity un-released chunks.
func NewChannel(capacity int, opts ...ChannelOption) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	ch := &Channel{
		capacity: capacity,
		changed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch
}

// Offer enqueues c, suspending the caller while the channel is at capacity.
// If the channel is closed or failed, or ctx ends first, c is released and an
// error is returned, so the producer never leaks the buffer.
func (ch *Channel) Offer(ctx context.Context, c *Chunk) error {
	ch.mu.Lock()
	for {
		if ch.closed || ch.err != nil {
			ch.mu.Unlock()
			c.Release()
			return ErrClosed
		}
		if ch.outstanding < ch.capacity {
			c.owner = ch
			ch.queue = append(ch.queue, c)
			ch.outstanding++
			ch.broadcastLocked()
			ch.mu.Unlock()
			return nil
		}
		wait := ch.changed
		ch.mu.Unlock()

		if ch.onFull != nil {
			ch.onFull()
		}
		select {
		case <-wait:
		case <-ctx.Done():
			c.Release()
			return ctx.Err()
		}
		ch.mu.Lock()
	}
}

// Receive returns the next chunk in offer order. It blocks until a chunk is
// available, returns io.EOF once the channel is closed and drained, and returns
// the failure once the channel has failed.
func (ch *Channel) Receive(ctx context.Context) (*Chunk, error) {
	ch.mu.Lock()
	for {
		if ch.err != nil {
			err := ch.err
			ch.mu.Unlock()
			return nil, err
		}
		if len(ch.queue) > 0 {
			c := ch.queue[0]
			ch.queue[0] = nil
			ch.queue = ch.queue[1:]
			ch.mu.Unlock()
			return c, nil
		}
		if ch.closed {
			ch.mu.Unlock()
			return nil, io.EOF
		}
		wait := ch.changed
		ch.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		ch.mu.Lock()
	}
}

// Close marks the end of the stream. Queued chunks stay readable.
func (ch *Channel) Close() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return
	}
	ch.closed = true
	ch.broadcastLocked()
}

// Fail fails the channel with err. The first failure wins. Every queued chunk
// is released, and blocked producers and consumers wake up.
func (ch *Channel) Fail(err error) {
	ch.mu.Lock()
	if ch.err != nil {
		ch.mu.Unlock()
		return
	}
	ch.err = err
	dropped := ch.queue
	ch.queue = nil
	ch.broadcastLocked()
	ch.mu.Unlock()

	// Release re-enters the channel through released().
	for _, c := range dropped {
		c.Release()
	}
}

// Err returns the failure the channel was failed with, if any.
func (ch *Channel) Err() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.err
}

// Capacity returns the outstanding-chunk bound.
func (ch *Channel) Capacity() int {
	return ch.capacity
}

// Len returns the number of queued, not yet received chunks.
func (ch *Channel) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.queue)
}

// Outstanding returns the number of offered chunks not yet released.
func (ch *Channel) Outstanding() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.outstanding
}

func (ch *Channel) released() {
	ch.mu.Lock()
	ch.outstanding--
	ch.broadcastLocked()
	ch.mu.Unlock()
}

func (ch *Channel) broadcastLocked() {
	close(ch.changed)
	ch.changed = make(chan struct{})
}
