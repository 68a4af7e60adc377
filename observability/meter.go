package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/asynchttp/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `yaml:"service_version" mapstructure:"service_version"`
	// Environment is the deployment environment (dev, staging, prod).
	Environment string `yaml:"environment" mapstructure:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure allows insecure connections (for development).
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Outcome labels for finished operations.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// EngineMetrics holds the instruments the response engine records into.
// All methods are safe on a nil receiver.
type EngineMetrics struct {
	operations   metric.Int64Counter
	duration     metric.Float64Histogram
	active       metric.Int64UpDownCounter
	backpressure metric.Int64Counter
	bodyBytes    metric.Int64Counter
	rejected     metric.Int64Counter
	stalls       metric.Int64Counter
}

// NewEngineMetrics creates metric instruments on the given meter.
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	operations, err := meter.Int64Counter("asynchttp.operations",
		metric.WithDescription("Finished operations by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating asynchttp.operations counter: %w", err)
	}

	duration, err := meter.Float64Histogram("asynchttp.operation.duration",
		metric.WithDescription("Time from submit to resolution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating asynchttp.operation.duration histogram: %w", err)
	}

	active, err := meter.Int64UpDownCounter("asynchttp.operations.active",
		metric.WithDescription("Operations submitted and not yet resolved"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating asynchttp.operations.active gauge: %w", err)
	}

	backpressure, err := meter.Int64Counter("asynchttp.backpressure.waits",
		metric.WithDescription("Times a body producer suspended on a full chunk channel"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating asynchttp.backpressure.waits counter: %w", err)
	}

	bodyBytes, err := meter.Int64Counter("asynchttp.body.bytes",
		metric.WithDescription("Response body bytes received from the transport"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating asynchttp.body.bytes counter: %w", err)
	}

	rejected, err := meter.Int64Counter("asynchttp.extraction.rejected",
		metric.WithDescription("Extraction tasks rejected by the pool"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating asynchttp.extraction.rejected counter: %w", err)
	}

	stalls, err := meter.Int64Counter("asynchttp.connection.stalls",
		metric.WithDescription("Connection leases held past the stall threshold"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating asynchttp.connection.stalls counter: %w", err)
	}

	return &EngineMetrics{
		operations:   operations,
		duration:     duration,
		active:       active,
		backpressure: backpressure,
		bodyBytes:    bodyBytes,
		rejected:     rejected,
		stalls:       stalls,
	}, nil
}

// OperationStarted increments the active operation count.
func (m *EngineMetrics) OperationStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.active.Add(ctx, 1)
}

// OperationFinished decrements active operations and records the outcome.
func (m *EngineMetrics) OperationFinished(ctx context.Context, method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.active.Add(ctx, -1)
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrOutcome, outcome),
	))
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
	))
}

// BackpressureWait records a producer suspension.
func (m *EngineMetrics) BackpressureWait(ctx context.Context) {
	if m == nil {
		return
	}
	m.backpressure.Add(ctx, 1)
}

// BodyBytes records received body bytes.
func (m *EngineMetrics) BodyBytes(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bodyBytes.Add(ctx, int64(n))
}

// ExtractionRejected records a task the pool refused.
func (m *EngineMetrics) ExtractionRejected(ctx context.Context, pool string) {
	if m == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrPool, pool)))
}

// ConnectionStall records a stalled connection lease on route.
func (m *EngineMetrics) ConnectionStall(ctx context.Context, route string) {
	if m == nil {
		return
	}
	m.stalls.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrRoute, route)))
}
