package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kbukum/asynchttp/component"
	apperrors "github.com/kbukum/asynchttp/errors"
	"github.com/kbukum/asynchttp/extract"
	"github.com/kbukum/asynchttp/logger"
	"github.com/kbukum/asynchttp/observability"
	"github.com/kbukum/asynchttp/operation"
	"github.com/kbukum/asynchttp/poolmon"
	"github.com/kbukum/asynchttp/transport"
	"github.com/kbukum/asynchttp/transport/nethttp"
)

const instrumentationName = "github.com/kbukum/asynchttp/client"

// Option configures a Client.
type Option func(*options)

type options struct {
	transport transport.Transport
	log       *logger.Logger
	meter     metric.Meter
	tracer    trace.Tracer
	netOpts   []nethttp.Option
}

// WithTransport replaces the net/http transport, typically with an
// in-memory one in tests. The connection monitor is not attached to it.
func WithTransport(t transport.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithLogger sets the logger. Defaults to one built from cfg.Logging.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMeter records engine metrics on m regardless of Telemetry.Metrics.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// WithTracer traces operations on t regardless of Telemetry.Tracing.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithTransportOptions passes options to the net/http transport.
func WithTransportOptions(opts ...nethttp.Option) Option {
	return func(o *options) { o.netOpts = append(o.netOpts, opts...) }
}

// Client submits requests to the response engine.
type Client struct {
	cfg     Config
	log     *logger.Logger
	engine  *operation.Engine
	pool    *extract.Pool
	http    *nethttp.Transport
	monitor *poolmon.Monitor
	parts   *component.Registry

	mu      sync.Mutex
	started bool
	stopped bool
	mp      *sdkmetric.MeterProvider
	tp      *sdktrace.TracerProvider
}

var (
	_ component.Component   = (*Client)(nil)
	_ component.Describable = (*Client)(nil)
)

// New builds a Client from cfg. Requests can be submitted right away; Start
// only launches the background parts (connection monitor, exporters).
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.New(&cfg.Logging, cfg.Name)
	}

	c := &Client{cfg: cfg, log: o.log.WithComponent("client"), parts: component.NewRegistry()}

	metrics, err := c.newMetrics(o.meter)
	if err != nil {
		return nil, err
	}

	if cfg.Monitor.Enabled && o.transport == nil {
		c.monitor = poolmon.New(cfg.Monitor, poolmon.WithLogger(o.log), poolmon.WithMetrics(metrics))
		o.netOpts = append(o.netOpts, nethttp.WithObserver(c.monitor))
	}

	tr := o.transport
	if tr == nil {
		c.http, err = nethttp.New(cfg.Transport, append([]nethttp.Option{nethttp.WithLogger(o.log)}, o.netOpts...)...)
		if err != nil {
			return nil, err
		}
		tr = c.http
	}

	log := o.log
	c.pool = extract.NewPool(cfg.Pool, extract.WithOnReject(func(name string, err error) {
		log.Warn("extraction rejected", logger.Fields(logger.FieldPool, name, logger.FieldError, err.Error()))
	}))

	c.engine = &operation.Engine{
		Transport:       tr,
		Pool:            c.pool,
		ChannelCapacity: cfg.ChannelCapacity,
		Logger:          o.log,
		Metrics:         metrics,
		Tracer:          c.newTracer(o.tracer),
	}

	if err := c.registerParts(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) newMetrics(m metric.Meter) (*observability.EngineMetrics, error) {
	if m == nil {
		if !c.cfg.Telemetry.Metrics {
			return nil, nil
		}
		// The global provider delegates to whatever Start installs later.
		m = observability.Meter(instrumentationName)
	}
	em, err := observability.NewEngineMetrics(m)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return em, nil
}

func (c *Client) newTracer(t trace.Tracer) trace.Tracer {
	switch {
	case t != nil:
		return t
	case c.cfg.Telemetry.Tracing:
		return observability.Tracer(instrumentationName)
	default:
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
}

// registerParts lists what Start brings up, in order.
func (c *Client) registerParts() error {
	tel := c.cfg.Telemetry
	if tel.Endpoint != "" && (tel.Metrics || tel.Tracing) {
		err := c.parts.Register(component.Func{
			ComponentName: "telemetry",
			StartFn:       c.startTelemetry,
			StopFn:        c.stopTelemetry,
		})
		if err != nil {
			return err
		}
	}
	if c.monitor != nil {
		return c.parts.Register(c.monitor)
	}
	return nil
}

func (c *Client) startTelemetry(ctx context.Context) error {
	tel := c.cfg.Telemetry
	if tel.Tracing {
		tp, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName:    c.cfg.Name,
			ServiceVersion: c.cfg.Version,
			Environment:    c.cfg.Environment,
			Endpoint:       tel.Endpoint,
			Insecure:       tel.Insecure,
			SampleRate:     tel.SampleRate,
		})
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.tp = tp
		c.mu.Unlock()
	}
	if tel.Metrics {
		mp, err := observability.InitMeter(ctx, observability.MeterConfig{
			ServiceName:    c.cfg.Name,
			ServiceVersion: c.cfg.Version,
			Environment:    c.cfg.Environment,
			Endpoint:       tel.Endpoint,
			Insecure:       tel.Insecure,
			Interval:       tel.Interval,
		})
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.mp = mp
		c.mu.Unlock()
	}
	return nil
}

func (c *Client) stopTelemetry(ctx context.Context) error {
	c.mu.Lock()
	mp, tp := c.mp, c.tp
	c.mp, c.tp = nil, nil
	c.mu.Unlock()

	var errs []error
	if mp != nil {
		errs = append(errs, mp.Shutdown(ctx))
	}
	if tp != nil {
		errs = append(errs, tp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Engine returns the engine the client submits to.
func (c *Client) Engine() *operation.Engine { return c.engine }

// Monitor returns the connection monitor, or nil when it is disabled.
func (c *Client) Monitor() *poolmon.Monitor { return c.monitor }

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

// Name implements component.Component.
func (c *Client) Name() string {
	if c.cfg.Name == "" {
		return "http-client"
	}
	return c.cfg.Name
}

// Start brings up the connection monitor and telemetry exporters.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	stopped, started := c.stopped, c.started
	c.mu.Unlock()
	if stopped {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "client is stopped")
	}
	if started {
		return nil
	}

	if err := c.parts.StartAll(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	c.log.Info("client started", logger.Fields(
		"base_url", c.cfg.BaseURL,
		logger.FieldPool, c.pool.Name(),
	))
	return nil
}

// Stop closes the extraction pool, waits for running extractions, stops
// the background parts and closes idle connections. Submissions after Stop
// are rejected.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	var errs []error
	if err := c.pool.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("extraction pool: %w", err))
	}
	if err := c.parts.StopAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if c.http != nil {
		c.http.CloseIdleConnections()
	}
	c.log.Info("client stopped")
	return errors.Join(errs...)
}

// Health reports unhealthy once stopped, otherwise the worst status of the
// background parts.
func (c *Client) Health(ctx context.Context) component.Health {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "stopped"}
	}

	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	for _, part := range c.parts.HealthAll(ctx) {
		if part.Status != component.StatusHealthy {
			h.Status = component.StatusDegraded
			h.Message = part.Name + ": " + part.Message
		}
	}
	return h
}

// Describe implements component.Describable.
func (c *Client) Describe() component.Description {
	return component.Description{
		Name: c.Name(),
		Type: "http-client",
		Details: fmt.Sprintf("base=%s pool=%d channel=%d monitor=%t",
			c.cfg.BaseURL, c.pool.Size(), c.cfg.ChannelCapacity, c.monitor != nil),
	}
}
