package response

import (
	"context"
	"io"
	"sync"

	"github.com/kbukum/asynchttp/chunk"
)

// Body is an io.ReadCloser over a chunk channel. Each chunk is released as soon
// as its last byte has been read.
type Body struct {
	ctx       context.Context
	ch        *chunk.Channel
	cur       *chunk.Chunk
	off       int
	err       error
	read      int64
	closeOnce sync.Once
}

// NewBody reads from ch. ctx bounds every blocking receive.
func NewBody(ctx context.Context, ch *chunk.Channel) *Body {
	return &Body{ctx: ctx, ch: ch}
}

// Read implements io.Reader.
func (b *Body) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for b.cur == nil {
		if b.err != nil {
			return 0, b.err
		}
		c, err := b.ch.Receive(b.ctx)
		if err != nil {
			b.err = err
			return 0, err
		}
		if c.Len() == 0 {
			c.Release()
			continue
		}
		b.cur, b.off = c, 0
	}

	n := copy(p, b.cur.Bytes()[b.off:])
	b.off += n
	b.read += int64(n)
	if b.off == b.cur.Len() {
		b.cur.Release()
		b.cur = nil
	}
	return n, nil
}

// Failure returns the error the underlying channel failed with, if the body
// observed one. io.EOF is not a failure.
func (b *Body) Failure() error {
	if b.err == nil || b.err == io.EOF {
		return nil
	}
	return b.err
}

// BytesRead returns the number of body bytes handed to the reader so far.
func (b *Body) BytesRead() int64 {
	return b.read
}

// Drain discards the rest of the stream, releasing every chunk. It returns
// once the channel is closed or failed.
func (b *Body) Drain() error {
	if b.cur != nil {
		b.cur.Release()
		b.cur = nil
	}
	for b.err == nil {
		c, err := b.ch.Receive(b.ctx)
		if err != nil {
			b.err = err
			break
		}
		c.Release()
	}
	if b.err == io.EOF {
		return nil
	}
	return b.err
}

// Close drains the remainder of the body.
func (b *Body) Close() error {
	var err error
	b.closeOnce.Do(func() { err = b.Drain() })
	return err
}
