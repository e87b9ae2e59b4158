package registry

import (
	"context"
	"testing"
	"time"

	"github.com/KOMKZ/go-fit-framework/heartbeat"
	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func counterValue(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func gaugeValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	g, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "%s is not an int64 gauge", m.Name)
	require.Len(t, g.DataPoints, 1)
	return g.DataPoints[0].Value
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	assert.Equal(t, "fit_registry", m.MetricsName())
	assert.True(t, m.IsMetricsEnabled())
	assert.False(t, m.IsRegistered())

	provider := sdkmetric.NewMeterProvider()
	require.NoError(t, m.RegisterMetrics(provider.Meter("test")))
	require.NoError(t, m.RegisterMetrics(provider.Meter("test")), "idempotent")
	assert.True(t, m.IsRegistered())
}

func TestMetrics_NilAndUnregisteredAreNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordSave(ctx, true)
		m.RecordRemoval(ctx, reasonExpired)
		m.RecordRearm(ctx)
		m.RecordHeartbeat(ctx, true)
		m.bindCounters(nil, nil)
	})

	assert.NotPanics(t, func() {
		NewMetrics(MetricsConfig{Enabled: true}).RecordSave(ctx, true)
	})
}

func TestMetrics_RecordsRegistryActivity(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := NewMetrics(MetricsConfig{Enabled: true})
	require.NoError(t, m.RegisterMetrics(provider.Meter("fit")))

	f := newFixture(t, WithMetrics(m))
	h := NewHeartbeatReconciler(f.reg, heartbeat.NoopChecker{}, nil, time.Second, logger.NewNopLogger())
	h.now = f.clock.Now
	ctx := context.Background()

	require.True(t, f.reg.Save(ctx, ad("w1", appOrder, key("g.create", "a"))))
	require.True(t, f.reg.Save(ctx, ad("w2", appStock, key("g.reserve", "b"))))
	require.False(t, f.reg.Save(ctx, ad("", appStock, key("g.reserve", "b"))))

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), counterValue(t, metrics["fit_registry_saves_total"]))
	assert.Equal(t, int64(1), counterValue(t, metrics["fit_registry_rejects_total"]))
	assert.Equal(t, int64(2), gaugeValue(t, metrics["fit_registry_workers"]))
	assert.Equal(t, int64(2), gaugeValue(t, metrics["fit_registry_fitable_metas"]))

	f.clock.Advance(10 * time.Second)
	f.fireWorker(t, "w1")
	f.reg.RemoveAddress(ctx, Address{WorkerID: "w2"})

	metrics = collect(t, reader)
	removals := metrics["fit_registry_worker_removals_total"]
	assert.Equal(t, int64(1), counterValue(t, removals, attribute.String("reason", reasonExpired)))
	assert.Equal(t, int64(1), counterValue(t, removals, attribute.String("reason", reasonAddress)))
	assert.Equal(t, int64(1), counterValue(t, metrics["fit_registry_heartbeat_checks_total"], attribute.String("result", "dead")))
	assert.Equal(t, int64(0), gaugeValue(t, metrics["fit_registry_workers"]))
}

func TestMetrics_DisabledRecordsNothing(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := NewMetrics(MetricsConfig{Enabled: false})
	require.NoError(t, m.RegisterMetrics(provider.Meter("fit")))

	f := newFixture(t, WithMetrics(m))
	require.True(t, f.reg.Save(context.Background(), ad("w1", appOrder, key("g.create", "a"))))

	metrics := collect(t, reader)
	if saves, ok := metrics["fit_registry_saves_total"]; ok {
		assert.Equal(t, int64(0), counterValue(t, saves))
	}
}
