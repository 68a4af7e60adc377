package nethttp

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	apperrors "github.com/kbukum/asynchttp/errors"
	"github.com/kbukum/asynchttp/validation"
)

// TLSConfig holds client TLS settings.
type TLSConfig struct {
	// SkipVerify disables server certificate verification.
	// Not recommended for production.
	SkipVerify bool `yaml:"skip_verify" mapstructure:"skip_verify"`
	// CAFile is a PEM bundle used instead of the system roots.
	CAFile string `yaml:"ca_file" mapstructure:"ca_file"`
	// CertFile and KeyFile are the client certificate for mTLS.
	CertFile string `yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `yaml:"key_file" mapstructure:"key_file"`
	// ServerName overrides the name used for certificate verification.
	ServerName string `yaml:"server_name" mapstructure:"server_name"`
	// MinVersion is "1.2" or "1.3". Defaults to 1.2.
	MinVersion string `yaml:"min_version" mapstructure:"min_version" validate:"omitempty,oneof=1.2 1.3"`
}

var tlsVersions = map[string]uint16{
	"":    tls.VersionTLS12,
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

// Build creates a *tls.Config. It returns nil when nothing is configured so
// the transport keeps its defaults.
func (c *TLSConfig) Build() (*tls.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if !c.IsEnabled() {
		return nil, nil
	}

	cfg := &tls.Config{
		InsecureSkipVerify: c.SkipVerify, //nolint:gosec // opt-in for development
		ServerName:         c.ServerName,
		MinVersion:         tlsVersions[c.MinVersion],
	}

	if c.CAFile != "" {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, apperrors.InvalidInput("tls.ca_file", err.Error()).WithCause(err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, apperrors.InvalidInput("tls.ca_file", fmt.Sprintf("no certificates in %s", c.CAFile))
		}
		cfg.RootCAs = pool
	}

	if c.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, apperrors.InvalidInput("tls.cert_file", err.Error()).WithCause(err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// Validate checks that the TLS configuration is consistent.
func (c *TLSConfig) Validate() error {
	if c == nil {
		return nil
	}
	return validation.New().
		Custom((c.CertFile != "") == (c.KeyFile != ""), "tls", "cert_file and key_file must be provided together").
		OneOf("tls.min_version", c.MinVersion, []string{"1.2", "1.3"}).
		Validate()
}

// IsEnabled returns true if any TLS setting is configured.
func (c *TLSConfig) IsEnabled() bool {
	if c == nil {
		return false
	}
	return c.SkipVerify || c.CAFile != "" || c.CertFile != "" || c.KeyFile != "" || c.ServerName != "" || c.MinVersion != ""
}
