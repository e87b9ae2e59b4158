package registry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsConfig metrics switch
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Metrics OpenTelemetry instruments of the registry.
// Implements component.MetricsProvider; every Record method is a no-op
// until RegisterMetrics succeeds (and on a nil receiver).
type Metrics struct {
	config     MetricsConfig
	registered bool
	mu         sync.RWMutex

	savesTotal      metric.Int64Counter // accepted saves
	rejectsTotal    metric.Int64Counter // saves refused by validation
	removalsTotal   metric.Int64Counter // workers removed, by reason
	rearmsTotal     metric.Int64Counter // leases extended after a positive heartbeat
	heartbeatsTotal metric.Int64Counter // liveness decisions, by result
	workersGauge    metric.Int64ObservableGauge
	fitablesGauge   metric.Int64ObservableGauge

	countWorkers  func() int
	countFitables func() int
}

// NewMetrics creates unregistered instruments
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{config: cfg}
}

// MetricsName returns the metrics group name
func (m *Metrics) MetricsName() string {
	return "fit_registry"
}

// IsMetricsEnabled returns whether collection is enabled
func (m *Metrics) IsMetricsEnabled() bool {
	return m.config.Enabled
}

// IsRegistered reports whether instruments exist
func (m *Metrics) IsRegistered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}

// RegisterMetrics creates all instruments on meter (idempotent)
func (m *Metrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	if m.savesTotal, err = meter.Int64Counter(
		"fit_registry_saves_total",
		metric.WithDescription("Total number of accepted service advertisement saves"),
		metric.WithUnit("{advertisement}"),
	); err != nil {
		return err
	}
	if m.rejectsTotal, err = meter.Int64Counter(
		"fit_registry_rejects_total",
		metric.WithDescription("Total number of advertisements rejected by validation"),
		metric.WithUnit("{advertisement}"),
	); err != nil {
		return err
	}
	if m.removalsTotal, err = meter.Int64Counter(
		"fit_registry_worker_removals_total",
		metric.WithDescription("Total number of workers removed from the registry"),
		metric.WithUnit("{worker}"),
	); err != nil {
		return err
	}
	if m.rearmsTotal, err = meter.Int64Counter(
		"fit_registry_lease_rearms_total",
		metric.WithDescription("Total number of expired leases extended after a positive heartbeat"),
		metric.WithUnit("{worker}"),
	); err != nil {
		return err
	}
	if m.heartbeatsTotal, err = meter.Int64Counter(
		"fit_registry_heartbeat_checks_total",
		metric.WithDescription("Total number of liveness decisions taken on lease expiry"),
		metric.WithUnit("{check}"),
	); err != nil {
		return err
	}
	if m.workersGauge, err = meter.Int64ObservableGauge(
		"fit_registry_workers",
		metric.WithDescription("Number of live workers"),
		metric.WithInt64Callback(m.observeWorkers),
	); err != nil {
		return err
	}
	if m.fitablesGauge, err = meter.Int64ObservableGauge(
		"fit_registry_fitable_metas",
		metric.WithDescription("Number of stored fitable metas"),
		metric.WithInt64Callback(m.observeFitables),
	); err != nil {
		return err
	}

	m.registered = true
	return nil
}

// bindCounters sets the gauge sources
func (m *Metrics) bindCounters(workers, fitables func() int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countWorkers = workers
	m.countFitables = fitables
}

func (m *Metrics) observeWorkers(_ context.Context, o metric.Int64Observer) error {
	m.mu.RLock()
	fn := m.countWorkers
	m.mu.RUnlock()
	if fn != nil {
		o.Observe(int64(fn()))
	}
	return nil
}

func (m *Metrics) observeFitables(_ context.Context, o metric.Int64Observer) error {
	m.mu.RLock()
	fn := m.countFitables
	m.mu.RUnlock()
	if fn != nil {
		o.Observe(int64(fn()))
	}
	return nil
}

func (m *Metrics) active() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered && m.config.Enabled
}

// RecordSave counts one save attempt
func (m *Metrics) RecordSave(ctx context.Context, accepted bool) {
	if !m.active() {
		return
	}
	if accepted {
		m.savesTotal.Add(ctx, 1)
		return
	}
	m.rejectsTotal.Add(ctx, 1)
}

// RecordRemoval counts one removed worker (reason: unregister, expired, reassigned, admin)
func (m *Metrics) RecordRemoval(ctx context.Context, reason string) {
	if !m.active() {
		return
	}
	m.removalsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordRearm counts one lease extension
func (m *Metrics) RecordRearm(ctx context.Context) {
	if !m.active() {
		return
	}
	m.rearmsTotal.Add(ctx, 1)
}

// RecordHeartbeat counts one liveness decision
func (m *Metrics) RecordHeartbeat(ctx context.Context, alive bool) {
	if !m.active() {
		return
	}
	result := "dead"
	if alive {
		result = "alive"
	}
	m.heartbeatsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
