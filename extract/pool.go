package extract

import (
	"context"
	"time"

	apperrors "github.com/kbukum/asynchttp/errors"
	"github.com/kbukum/asynchttp/resilience"
)

const (
	defaultPoolSize = 8
	defaultPoolName = "extract"
)

// PoolConfig sizes the extraction pool.
type PoolConfig struct {
	// Name labels the pool in logs and metrics.
	Name string `yaml:"name" mapstructure:"name"`
	// Size is the number of extractions that may run at once. Defaults to 8.
	Size int `yaml:"size" mapstructure:"size" validate:"gte=0"`
	// QueueWait bounds how long a task waits for a slot. 0 waits until the
	// operation ends; a negative value rejects immediately when full.
	QueueWait time.Duration `yaml:"queue_wait" mapstructure:"queue_wait"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *PoolConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = defaultPoolName
	}
	if c.Size <= 0 {
		c.Size = defaultPoolSize
	}
}

// PoolOption configures a Pool.
type PoolOption func(*resilience.BulkheadConfig)

// WithOnReject observes rejected tasks.
func WithOnReject(fn func(name string, err error)) PoolOption {
	return func(c *resilience.BulkheadConfig) { c.OnReject = fn }
}

// WithOnAcquire observes tasks that obtained a slot.
func WithOnAcquire(fn func(name string)) PoolOption {
	return func(c *resilience.BulkheadConfig) { c.OnAcquire = fn }
}

// Pool runs extraction tasks with bounded concurrency.
type Pool struct {
	name string
	bh   *resilience.Bulkhead
}

// NewPool creates a pool.
func NewPool(cfg PoolConfig, opts ...PoolOption) *Pool {
	cfg.ApplyDefaults()

	// The bulkhead reads 0 as "fail fast" and negative as "wait for ctx".
	wait := cfg.QueueWait
	switch {
	case wait == 0:
		wait = -1
	case wait < 0:
		wait = 0
	}
	bc := resilience.BulkheadConfig{
		Name:          cfg.Name,
		MaxConcurrent: cfg.Size,
		MaxWait:       wait,
	}
	for _, opt := range opts {
		opt(&bc)
	}
	return &Pool{name: cfg.Name, bh: resilience.NewBulkhead(bc)}
}

// Schedule runs fn on a pool goroutine once a slot is free. If no slot can be
// obtained, or ctx ends first, onReject receives a REJECTED error instead.
// Schedule never blocks.
func (p *Pool) Schedule(ctx context.Context, fn func(context.Context), onReject func(error)) {
	p.bh.Go(ctx, func() { fn(ctx) }, func(err error) {
		if onReject != nil {
			onReject(apperrors.Rejected(err).WithDetail("pool", p.name))
		}
	})
}

// Close stops accepting tasks and waits for scheduled ones to finish.
func (p *Pool) Close(ctx context.Context) error {
	return p.bh.Close(ctx)
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Size returns the concurrency bound.
func (p *Pool) Size() int { return p.bh.MaxConcurrent() }

// InUse returns the number of running tasks.
func (p *Pool) InUse() int { return p.bh.InUse() }
