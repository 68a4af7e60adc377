package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Common bulkhead errors.
var (
	ErrBulkheadFull    = errors.New("bulkhead is full")
	ErrBulkheadTimeout = errors.New("bulkhead wait timeout")
	ErrBulkheadClosed  = errors.New("bulkhead is closed")
)

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies this bulkhead for metrics/logging.
	Name string
	// MaxConcurrent is the maximum number of concurrent calls.
	MaxConcurrent int
	// MaxWait is how long to wait for a slot. 0 means fail immediately,
	// a negative value waits until the context ends.
	MaxWait time.Duration
	// OnReject is called when a request is rejected.
	OnReject func(name string, err error)
	// OnAcquire is called when a slot is acquired.
	OnAcquire func(name string)
	// OnRelease is called when a slot is released.
	OnRelease func(name string)
}

// DefaultBulkheadConfig returns sensible defaults.
func DefaultBulkheadConfig(name string) BulkheadConfig {
	return BulkheadConfig{
		Name:          name,
		MaxConcurrent: 10,
		MaxWait:       0, // Fail immediately if full
	}
}

// Bulkhead limits how many calls run at once.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Execute runs fn on the calling goroutine once a slot is free.
// Returns ErrBulkheadFull or ErrBulkheadTimeout if no slot is available.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if !b.track() {
		return ErrBulkheadClosed
	}
	defer b.wg.Done()

	if err := b.acquire(ctx); err != nil {
		b.reject(err)
		return err
	}
	defer b.release()
	return fn()
}

// Go runs fn on a new goroutine once a slot is free, without blocking the
// caller. If no slot can be acquired, onReject runs on that goroutine instead.
func (b *Bulkhead) Go(ctx context.Context, fn func(), onReject func(error)) {
	if !b.track() {
		if onReject != nil {
			onReject(ErrBulkheadClosed)
		}
		return
	}
	go func() {
		defer b.wg.Done()
		if err := b.acquire(ctx); err != nil {
			b.reject(err)
			if onReject != nil {
				onReject(err)
			}
			return
		}
		defer b.release()
		fn()
	}()
}

// Close stops accepting work and waits for running and waiting calls to
// finish or for ctx to end.
func (b *Bulkhead) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) track() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.wg.Add(1)
	return true
}

// acquire tries to acquire a slot in the bulkhead.
func (b *Bulkhead) acquire(ctx context.Context) error {
	// Try immediate acquire
	select {
	case b.sem <- struct{}{}:
		b.acquired()
		return nil
	default:
	}

	if b.config.MaxWait == 0 {
		return ErrBulkheadFull
	}

	var timeout <-chan time.Time
	if b.config.MaxWait > 0 {
		timer := time.NewTimer(b.config.MaxWait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case b.sem <- struct{}{}:
		b.acquired()
		return nil
	case <-timeout:
		return ErrBulkheadTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) acquired() {
	if b.config.OnAcquire != nil {
		b.config.OnAcquire(b.config.Name)
	}
}

func (b *Bulkhead) reject(err error) {
	if b.config.OnReject != nil {
		b.config.OnReject(b.config.Name, err)
	}
}

// release releases a slot back to the bulkhead.
func (b *Bulkhead) release() {
	<-b.sem
	if b.config.OnRelease != nil {
		b.config.OnRelease(b.config.Name)
	}
}

// Available returns the number of available slots.
func (b *Bulkhead) Available() int {
	return b.config.MaxConcurrent - len(b.sem)
}

// InUse returns the number of slots currently in use.
func (b *Bulkhead) InUse() int {
	return len(b.sem)
}

// MaxConcurrent returns the maximum concurrent calls allowed.
func (b *Bulkhead) MaxConcurrent() int {
	return b.config.MaxConcurrent
}
