// Package testutil provides a release-counting chunk factory for tests that
// must prove every buffer handed to the engine is given back exactly once.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/kbukum/asynchttp/chunk"
)

// Counter issues chunks and counts their releases.
type Counter struct {
	mu       sync.Mutex
	issued   int
	releases map[int]int
	changed  chan struct{}
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{releases: make(map[int]int), changed: make(chan struct{})}
}

// Chunk issues a chunk over a copy of data whose release is counted.
func (c *Counter) Chunk(data []byte) *chunk.Chunk {
	c.mu.Lock()
	id := c.issued
	c.issued++
	c.mu.Unlock()

	buf := append([]byte(nil), data...)
	return chunk.New(buf, func() {
		c.mu.Lock()
		c.releases[id]++
		close(c.changed)
		c.changed = make(chan struct{})
		c.mu.Unlock()
	})
}

// String issues a chunk over s.
func (c *Counter) String(s string) *chunk.Chunk {
	return c.Chunk([]byte(s))
}

// Issued returns the number of chunks issued.
func (c *Counter) Issued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.issued
}

// Released returns the number of distinct chunks released at least once.
func (c *Counter) Released() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.releases)
}

// IsReleased reports whether the n-th issued chunk (0-based) was released.
func (c *Counter) IsReleased(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases[n] > 0
}

// WaitReleased blocks until at least n chunks were released or timeout fires.
func (c *Counter) WaitReleased(n int, timeout <-chan time.Time) bool {
	for {
		c.mu.Lock()
		if len(c.releases) >= n {
			c.mu.Unlock()
			return true
		}
		wait := c.changed
		c.mu.Unlock()
		select {
		case <-wait:
		case <-timeout:
			return false
		}
	}
}

// AssertBalanced fails t unless every issued chunk was released exactly once.
func (c *Counter) AssertBalanced(t testing.TB) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := 0; id < c.issued; id++ {
		switch n := c.releases[id]; n {
		case 1:
		case 0:
			t.Errorf("chunk %d was never released", id)
		default:
			t.Errorf("chunk %d released %d times", id, n)
		}
	}
}
