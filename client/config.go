package client

import (
	"fmt"
	"time"

	"github.com/kbukum/asynchttp/config"
	"github.com/kbukum/asynchttp/extract"
	"github.com/kbukum/asynchttp/poolmon"
	"github.com/kbukum/asynchttp/transport/nethttp"
	"github.com/kbukum/asynchttp/validation"
)

const (
	defaultAwaitTimeout    = 30 * time.Second
	defaultChannelCapacity = 16
	defaultSampleRate      = 1.0
	defaultExportInterval  = 15 * time.Second
)

// Config configures a Client.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is prepended to relative request paths.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,http_url"`
	// Headers are sent with every request unless the request overrides them.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
	// AwaitTimeout bounds Do and GetJSON. The operation keeps running after
	// it expires; callers that want it gone cancel the handle.
	AwaitTimeout time.Duration `yaml:"await_timeout" mapstructure:"await_timeout" validate:"gte=0"`
	// ChannelCapacity is the number of body chunks buffered per operation
	// before the transport is suspended.
	ChannelCapacity int `yaml:"channel_capacity" mapstructure:"channel_capacity" validate:"gte=0"`

	Transport nethttp.Config    `yaml:"transport" mapstructure:"transport"`
	Pool      extract.PoolConfig `yaml:"pool" mapstructure:"pool"`
	Monitor   poolmon.Config     `yaml:"monitor" mapstructure:"monitor"`
	Telemetry TelemetryConfig    `yaml:"telemetry" mapstructure:"telemetry"`
}

// TelemetryConfig selects metrics and tracing.
type TelemetryConfig struct {
	// Metrics records engine metrics on the global meter provider.
	Metrics bool `yaml:"metrics" mapstructure:"metrics"`
	// Tracing opens a span per operation on the global tracer provider.
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`
	// Endpoint, when set, installs OTLP HTTP exporters on Start for the
	// signals enabled above.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	// Insecure sends to the endpoint without TLS.
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// SampleRate is the trace sampling ratio.
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	// Interval is the metric export period.
	Interval time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.AwaitTimeout <= 0 {
		c.AwaitTimeout = defaultAwaitTimeout
	}
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = defaultChannelCapacity
	}
	c.Transport.ApplyDefaults()
	if c.Pool.Name == "" && c.Name != "" {
		c.Pool.Name = c.Name + "-extract"
	}
	c.Pool.ApplyDefaults()
	c.Monitor.ApplyDefaults()
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = defaultSampleRate
	}
	if c.Telemetry.Interval <= 0 {
		c.Telemetry.Interval = defaultExportInterval
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("config.transport: %w", err)
	}
	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("config.monitor: %w", err)
	}
	return nil
}
