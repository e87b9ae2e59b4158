package registry

import (
	"time"

	"github.com/KOMKZ/go-fit-framework/heartbeat"
	"github.com/KOMKZ/go-fit-framework/timer"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Scene tags checked by the reconciler before evicting a worker
const (
	SceneRegistry       = "fit_registry"
	SceneRegistryServer = "fit_registry_server"
)

// Config fit_registry section
type Config struct {
	Enabled             bool             `mapstructure:"enabled"`
	DefaultLeaseSeconds int64            `mapstructure:"default_lease_seconds"` // used when a worker declares none
	HeartbeatScenes     []string         `mapstructure:"heartbeat_scenes"`
	HeartbeatTimeout    time.Duration    `mapstructure:"heartbeat_timeout"` // bound on one liveness decision
	Metrics             MetricsConfig    `mapstructure:"metrics"`
	Timer               timer.Config     `mapstructure:"timer"`
	Heartbeat           heartbeat.Config `mapstructure:"heartbeat"`
}

// DefaultConfig returns the default registry configuration
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		DefaultLeaseSeconds: 30,
		HeartbeatScenes:     []string{SceneRegistry, SceneRegistryServer},
		HeartbeatTimeout:    3 * time.Second,
		Metrics:             MetricsConfig{Enabled: true},
		Timer:               timer.DefaultConfig(),
		Heartbeat:           heartbeat.Config{Type: heartbeat.TypeNone},
	}
}

// ApplyDefaults fills zero-valued fields in place
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.DefaultLeaseSeconds <= 0 {
		c.DefaultLeaseSeconds = d.DefaultLeaseSeconds
	}
	if len(c.HeartbeatScenes) == 0 {
		c.HeartbeatScenes = d.HeartbeatScenes
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = d.HeartbeatTimeout
	}
	c.Timer.ApplyDefaults()
	if c.Heartbeat.Type == "" {
		c.Heartbeat.Type = heartbeat.TypeNone
	}
}

// Validate call after ApplyDefaults
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DefaultLeaseSeconds, validation.Min(int64(1))),
		validation.Field(&c.HeartbeatScenes, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.HeartbeatTimeout, validation.Min(time.Millisecond)),
		validation.Field(&c.Timer),
		validation.Field(&c.Heartbeat),
	)
}

func (c Config) defaultLease() time.Duration {
	return time.Duration(c.DefaultLeaseSeconds) * time.Second
}
