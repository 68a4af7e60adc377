package chunk

import "sync"

// Chunk is a piece of response body bytes with a release callback.
type Chunk struct {
	data    []byte
	release func()
	once    sync.Once
	owner   *Channel
}

// New creates a chunk over data. release runs once when the consumer is done
// with the bytes; it may be nil.
func New(data []byte, release func()) *Chunk {
	return &Chunk{data: data, release: release}
}

// Bytes returns the chunk's bytes. They must not be used after Release.
func (c *Chunk) Bytes() []byte {
	return c.data
}

// Len returns the number of bytes in the chunk.
func (c *Chunk) Len() int {
	return len(c.data)
}

// Release hands the bytes back to the producer. Calls after the first are no-ops.
func (c *Chunk) Release() {
	c.once.Do(func() {
		if c.release != nil {
			c.release()
		}
		if c.owner != nil {
			c.owner.released()
		}
		c.data = nil
	})
}
