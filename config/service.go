package config

import (
	"fmt"

	"github.com/kbukum/asynchttp/logger"
	"github.com/kbukum/asynchttp/validation"
)

// Config is implemented by every loadable config struct.
type Config interface {
	ApplyDefaults()
	Validate() error
}

// ServiceConfig contains the fields every asynchttp client config carries.
// Larger configs embed it:
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Pool extract.PoolConfig `yaml:"pool" mapstructure:"pool"`
//	}
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string        `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// GetServiceConfig returns the base ServiceConfig.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults applies default values to the base configuration.
// Embedding structs call c.ServiceConfig.ApplyDefaults() first.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
		if c.Logging.Level == "" {
			c.Logging.Level = "debug"
		}
	}
	c.Logging.ApplyDefaults()
}

// Validate validates the base configuration fields.
func (c *ServiceConfig) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
