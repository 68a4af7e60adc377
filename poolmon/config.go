package poolmon

import (
	"time"

	"github.com/kbukum/asynchttp/validation"
)

const (
	defaultStallThreshold = 30 * time.Second
	defaultCheckInterval  = time.Second
)

// Config configures the connection monitor.
type Config struct {
	// Enabled turns the monitor on. The client skips it when false.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// StallThreshold is how long a lease may be held before it is reported.
	StallThreshold time.Duration `yaml:"stall_threshold" mapstructure:"stall_threshold" validate:"gte=0"`
	// CheckInterval is the sweep period.
	CheckInterval time.Duration `yaml:"check_interval" mapstructure:"check_interval" validate:"gte=0"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.StallThreshold <= 0 {
		c.StallThreshold = defaultStallThreshold
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c)
}
