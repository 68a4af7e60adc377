package operation

import (
	"github.com/kbukum/asynchttp/chunk"
	"github.com/kbukum/asynchttp/response"
)

// listener forwards transport events to the assembler and counts body bytes.
type listener[T any] struct {
	h *Handle[T]
}

func (l *listener[T]) OnHeaders(meta response.Meta) {
	l.h.asm.OnHeaders(meta)
}

func (l *listener[T]) OnContent(c *chunk.Chunk) error {
	n := c.Len()
	if err := l.h.asm.OnContent(c); err != nil {
		return err
	}
	l.h.engine.Metrics.BodyBytes(l.h.ctx, n)
	return nil
}

func (l *listener[T]) OnComplete() {
	l.h.asm.OnComplete()
}

func (l *listener[T]) OnFailure(err error) {
	l.h.asm.OnFailure(err)
}
