package component

import "go.opentelemetry.io/otel/metric"

// MetricsProvider implemented by components exposing OpenTelemetry instruments.
//
//	func (m *Metrics) MetricsName() string { return "fit_registry" }
//
//	func (m *Metrics) RegisterMetrics(meter metric.Meter) error {
//	    c, err := meter.Int64Counter("fit_registry_saves_total")
//	    ...
//	}
type MetricsProvider interface {
	// MetricsName short lowercase group name, used for Meter naming
	MetricsName() string

	// RegisterMetrics creates all instruments on meter
	RegisterMetrics(meter metric.Meter) error

	// IsMetricsEnabled reports whether collection is on
	IsMetricsEnabled() bool
}
