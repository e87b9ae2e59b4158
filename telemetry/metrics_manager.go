package telemetry

import (
	"context"
	"fmt"
	"io"

	"github.com/KOMKZ/go-fit-framework/component"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// MetricsManager owns the meter provider and registers component metrics on it
type MetricsManager struct {
	meterProvider *sdkmetric.MeterProvider
	config        MetricsConfig
	enabled       bool
}

// NewMetricsManager a disabled manager hands out noop meters
func NewMetricsManager(cfg Config, res *resource.Resource, w io.Writer) (*MetricsManager, error) {
	if !cfg.Enabled || !cfg.Metrics.Enabled {
		return &MetricsManager{config: cfg.Metrics}, nil
	}

	var opts []sdkmetric.Option
	if res != nil {
		opts = append(opts, sdkmetric.WithResource(res))
	}

	if cfg.Exporter.Type == ExporterStdout {
		exporterOpts := []stdoutmetric.Option{stdoutmetric.WithWriter(w)}
		if cfg.Exporter.PrettyPrint {
			exporterOpts = append(exporterOpts, stdoutmetric.WithPrettyPrint())
		}
		exporter, err := stdoutmetric.New(exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("create stdout metrics exporter failed: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(cfg.Metrics.ExportInterval),
				sdkmetric.WithTimeout(cfg.Metrics.ExportTimeout),
			),
		))
	}

	return &MetricsManager{
		meterProvider: sdkmetric.NewMeterProvider(opts...),
		config:        cfg.Metrics,
		enabled:       true,
	}, nil
}

// Meter named meter; noop when disabled
func (m *MetricsManager) Meter(name string) metric.Meter {
	if m.meterProvider == nil {
		return noop.NewMeterProvider().Meter(name)
	}
	return m.meterProvider.Meter(name)
}

// MeterProvider nil when disabled
func (m *MetricsManager) MeterProvider() *sdkmetric.MeterProvider {
	return m.meterProvider
}

// Register creates the instruments of every enabled provider
func (m *MetricsManager) Register(providers ...component.MetricsProvider) error {
	if !m.enabled {
		return nil
	}
	for _, p := range providers {
		if p == nil || !p.IsMetricsEnabled() {
			continue
		}
		if err := p.RegisterMetrics(m.Meter(p.MetricsName())); err != nil {
			return fmt.Errorf("register %s metrics failed: %w", p.MetricsName(), err)
		}
	}
	return nil
}

// ForceFlush exports pending data now
func (m *MetricsManager) ForceFlush(ctx context.Context) error {
	if m.meterProvider == nil {
		return nil
	}
	return m.meterProvider.ForceFlush(ctx)
}

// Shutdown flushes and stops the reader
func (m *MetricsManager) Shutdown(ctx context.Context) error {
	if m.meterProvider != nil {
		return m.meterProvider.Shutdown(ctx)
	}
	return nil
}

// IsEnabled whether metrics are exported
func (m *MetricsManager) IsEnabled() bool {
	return m.enabled
}
