package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/KOMKZ/go-fit-framework/component"
	"github.com/KOMKZ/go-fit-framework/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Manager tracer provider and metrics of the process
type Manager struct {
	config         Config
	logger         *logger.CtxZapLogger
	writer         io.Writer
	tracerProvider *trace.TracerProvider
	metricsManager *MetricsManager
	mu             sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithWriter redirects stdout exporters
func WithWriter(w io.Writer) Option {
	return func(m *Manager) {
		if w != nil {
			m.writer = w
		}
	}
}

// NewManager creates an unstarted manager
func NewManager(cfg Config, log *logger.CtxZapLogger, opts ...Option) *Manager {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.GetLogger("telemetry")
	}
	m := &Manager{config: cfg, logger: log, writer: os.Stdout}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start installs the global tracer provider and builds the metrics pipeline
func (m *Manager) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.logger.InfoCtx(ctx, "Telemetry disabled, skipping initialization")
		return nil
	}
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}

	res, err := newResource(ctx, m.config)
	if err != nil {
		return fmt.Errorf("create resource failed: %w", err)
	}

	tp, err := newTracerProvider(m.config, res, m.writer)
	if err != nil {
		return err
	}
	mm, err := NewMetricsManager(m.config, res, m.writer)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return err
	}

	m.mu.Lock()
	m.tracerProvider = tp
	m.metricsManager = mm
	m.mu.Unlock()

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	if mp := mm.MeterProvider(); mp != nil {
		otel.SetMeterProvider(mp)
	}

	m.logger.InfoCtx(ctx, "Telemetry started",
		zap.String("service_name", m.config.ServiceName),
		zap.String("exporter", m.config.Exporter.Type),
		zap.Bool("metrics", mm.IsEnabled()))
	return nil
}

// RegisterMetrics registers providers once Start has run; no-op otherwise
func (m *Manager) RegisterMetrics(providers ...component.MetricsProvider) error {
	mm := m.MetricsManager()
	if mm == nil {
		return nil
	}
	return mm.Register(providers...)
}

// Shutdown flushes and stops both providers
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	tp, mm := m.tracerProvider, m.metricsManager
	m.tracerProvider, m.metricsManager = nil, nil
	m.mu.Unlock()

	var errs []error
	if mm != nil {
		if err := mm.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider failed: %w", err))
		}
	}
	if tp != nil {
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Tracer named tracer; the global one before Start
func (m *Manager) Tracer(name string) otelTrace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name)
	}
	return m.tracerProvider.Tracer(name)
}

// MetricsManager nil before Start or when disabled
func (m *Manager) MetricsManager() *MetricsManager {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metricsManager
}

// IsEnabled whether telemetry is on
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled
}

// Config effective configuration
func (m *Manager) Config() Config {
	return m.config
}
