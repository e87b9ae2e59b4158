package admin

import (
	"time"

	"github.com/KOMKZ/go-fit-framework/httpx"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config admin section
type Config struct {
	Enabled      bool                     `mapstructure:"enabled"`
	Addr         string                   `mapstructure:"addr"`
	Mode         string                   `mapstructure:"mode"` // gin mode: debug, release, test
	HealthPath   string                   `mapstructure:"health_path"`
	ErrorLogging httpx.ErrorLoggingConfig `mapstructure:"error_logging"`
	ReadTimeout  time.Duration            `mapstructure:"read_timeout"`
	WriteTimeout time.Duration            `mapstructure:"write_timeout"`
}

// DefaultConfig listens on :8081 in release mode
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		Addr:         ":8081",
		Mode:         "release",
		HealthPath:   "/fit/health",
		ErrorLogging: httpx.DefaultErrorLoggingConfig(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// ApplyDefaults fills zero-valued fields in place
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.HealthPath == "" {
		c.HealthPath = d.HealthPath
	}
	if c.ErrorLogging.LogLevel == "" {
		c.ErrorLogging.LogLevel = d.ErrorLogging.LogLevel
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
}

// Validate call after ApplyDefaults
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.Mode, validation.In("debug", "release", "test")),
	)
}
