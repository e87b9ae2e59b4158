// Package telemetry OpenTelemetry tracer and meter providers for the
// registry process, exported to stdout
package telemetry

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// exporter types
const (
	ExporterStdout = "stdout"
	ExporterNoop   = "noop"
)

// Config telemetry section
type Config struct {
	Enabled        bool                   `mapstructure:"enabled"`
	ServiceName    string                 `mapstructure:"service_name"`
	ServiceVersion string                 `mapstructure:"service_version"`
	Exporter       ExporterConfig         `mapstructure:"exporter"`
	Sampler        SamplerConfig          `mapstructure:"sampler"`
	ResourceAttrs  map[string]interface{} `mapstructure:"resource_attributes"` // nested maps are flattened with dots
	Metrics        MetricsConfig          `mapstructure:"metrics"`
}

// ExporterConfig where spans and metrics go
type ExporterConfig struct {
	Type        string `mapstructure:"type"` // stdout, noop
	PrettyPrint bool   `mapstructure:"pretty_print"`
}

// SamplerConfig trace sampling
type SamplerConfig struct {
	Type  string  `mapstructure:"type"`  // always_on, always_off, trace_id_ratio, parent_based_always_on
	Ratio float64 `mapstructure:"ratio"` // trace_id_ratio only
}

// MetricsConfig periodic metric export
type MetricsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ExportInterval time.Duration `mapstructure:"export_interval"`
	ExportTimeout  time.Duration `mapstructure:"export_timeout"`
}

// DefaultConfig telemetry off; metrics exported every minute once enabled
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		ServiceName: "fit-registry",
		Exporter:    ExporterConfig{Type: ExporterStdout},
		Sampler:     SamplerConfig{Type: "parent_based_always_on"},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: time.Minute,
			ExportTimeout:  10 * time.Second,
		},
	}
}

// ApplyDefaults fills zero-valued fields in place
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.ServiceName == "" {
		c.ServiceName = d.ServiceName
	}
	if c.Exporter.Type == "" {
		c.Exporter.Type = d.Exporter.Type
	}
	if c.Sampler.Type == "" {
		c.Sampler.Type = d.Sampler.Type
	}
	if c.Metrics.ExportInterval <= 0 {
		c.Metrics.ExportInterval = d.Metrics.ExportInterval
	}
	if c.Metrics.ExportTimeout <= 0 {
		c.Metrics.ExportTimeout = d.Metrics.ExportTimeout
	}
}

// Validate call after ApplyDefaults
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ServiceName, validation.Required),
		validation.Field(&c.Exporter),
		validation.Field(&c.Sampler),
	)
}

// Validate exporter type
func (c ExporterConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.Required, validation.In(ExporterStdout, ExporterNoop)),
	)
}

// Validate sampler type and ratio
func (c SamplerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.In("always_on", "always_off", "trace_id_ratio", "parent_based_always_on")),
		validation.Field(&c.Ratio, validation.Min(0.0), validation.Max(1.0)),
	)
}
