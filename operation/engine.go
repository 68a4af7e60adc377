package operation

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/asynchttp/chunk"
	apperrors "github.com/kbukum/asynchttp/errors"
	"github.com/kbukum/asynchttp/extract"
	"github.com/kbukum/asynchttp/logger"
	"github.com/kbukum/asynchttp/observability"
	"github.com/kbukum/asynchttp/transport"
	"github.com/kbukum/asynchttp/validation"
)

// Engine holds what every operation shares. Transport and Pool are required;
// the rest fall back to defaults.
type Engine struct {
	Transport transport.Transport
	Pool      *extract.Pool
	// ChannelCapacity bounds the body chunks held per response.
	ChannelCapacity int
	Logger          *logger.Logger
	// Metrics may be nil.
	Metrics *observability.EngineMetrics
	Tracer  trace.Tracer
}

// Validate reports a missing transport or pool and a negative capacity.
func (e *Engine) Validate() error {
	if e == nil {
		return apperrors.InvalidInput("engine", "is nil")
	}
	return validation.New().
		Custom(e.Transport != nil, "engine.transport", "is required").
		Custom(e.Pool != nil, "engine.pool", "is required").
		Min("engine.channel_capacity", e.ChannelCapacity, 0).
		Validate()
}

func (e *Engine) capacity() int {
	if e.ChannelCapacity <= 0 {
		return chunk.DefaultCapacity
	}
	return e.ChannelCapacity
}

func (e *Engine) log() *logger.Logger {
	if e.Logger == nil {
		return logger.Get("operation")
	}
	return e.Logger
}

func (e *Engine) tracer() trace.Tracer {
	if e.Tracer == nil {
		return observability.DefaultTracer()
	}
	return e.Tracer
}
