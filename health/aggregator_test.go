package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                    { return s.name }
func (s stubChecker) Check(ctx context.Context) error { return s.err }

func TestAggregator_AllHealthy(t *testing.T) {
	a := NewAggregator(time.Second)
	a.Register(stubChecker{name: "fit_registry"})
	a.Register(stubChecker{name: "heartbeat"})
	a.Register(nil)
	a.SetMetadata("version", "1.0.0")

	resp := a.Check(context.Background())
	require.Len(t, resp.Checks, 2)
	assert.True(t, resp.IsHealthy())
	assert.Equal(t, "OK", resp.Checks["heartbeat"].Message)
	assert.Equal(t, "1.0.0", resp.Metadata["version"])
}

func TestAggregator_Unhealthy(t *testing.T) {
	a := NewAggregator(0)
	a.Register(stubChecker{name: "fit_registry"})
	a.Register(stubChecker{name: "heartbeat", err: errors.New("redis down")})

	resp := a.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "redis down", resp.Checks["heartbeat"].Error)
	assert.Equal(t, StatusHealthy, resp.Checks["fit_registry"].Status)
}

func TestAggregator_Empty(t *testing.T) {
	resp := NewAggregator(time.Second).Check(context.Background())
	assert.True(t, resp.IsHealthy())
	assert.Empty(t, resp.Checks)
}
