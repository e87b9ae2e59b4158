package timer

import validation "github.com/go-ozzo/ozzo-validation/v4"

// Config timer service settings
type Config struct {
	// PoolSize goroutines available to fired callbacks
	PoolSize int `mapstructure:"pool_size"`
}

// DefaultConfig returns the default timer configuration
func DefaultConfig() Config {
	return Config{PoolSize: 256}
}

// ApplyDefaults fills zero-valued fields in place
func (c *Config) ApplyDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultConfig().PoolSize
	}
}

// Validate call after ApplyDefaults
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.PoolSize, validation.Min(1), validation.Max(100000)),
	)
}
