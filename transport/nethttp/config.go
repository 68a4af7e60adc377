package nethttp

import (
	"time"

	"github.com/kbukum/asynchttp/validation"
)

const (
	defaultChunkSize           = 32 * 1024
	defaultDialTimeout         = 10 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
	defaultIdleConnTimeout     = 90 * time.Second
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 16
)

// Config configures the net/http transport.
type Config struct {
	// ChunkSize is the size of each pooled read buffer. Defaults to 32KiB.
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size" validate:"gte=0,lte=16777216"`

	// DialTimeout bounds TCP connection setup.
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout" validate:"gte=0"`
	// TLSHandshakeTimeout bounds the TLS handshake.
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout" mapstructure:"tls_handshake_timeout" validate:"gte=0"`
	// ResponseHeaderTimeout bounds the wait for response headers after the
	// request is written. Zero means no limit; the body is never bounded.
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout" mapstructure:"response_header_timeout" validate:"gte=0"`
	// IdleConnTimeout is how long an idle pooled connection is kept.
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout" mapstructure:"idle_conn_timeout" validate:"gte=0"`

	MaxIdleConns        int `yaml:"max_idle_conns" mapstructure:"max_idle_conns" validate:"gte=0"`
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host" mapstructure:"max_idle_conns_per_host" validate:"gte=0"`
	// MaxConnsPerHost caps connections per host, 0 for no limit.
	MaxConnsPerHost int `yaml:"max_conns_per_host" mapstructure:"max_conns_per_host" validate:"gte=0"`

	// HTTP2 negotiates HTTP/2 over TLS via ALPN.
	HTTP2 bool `yaml:"http2" mapstructure:"http2"`
	// H2C speaks cleartext HTTP/2 with prior knowledge. It replaces the
	// HTTP/1.1 transport entirely, so only use it against h2c servers.
	H2C bool `yaml:"h2c" mapstructure:"h2c"`

	// TLS configures server verification and client certificates.
	TLS *TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.TLSHandshakeTimeout <= 0 {
		c.TLSHandshakeTimeout = defaultTLSHandshakeTimeout
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = defaultIdleConnTimeout
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = defaultMaxIdleConns
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	return c.TLS.Validate()
}
