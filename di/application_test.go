package di

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/KOMKZ/go-fit-framework/admin"
	"github.com/KOMKZ/go-fit-framework/config"
	"github.com/KOMKZ/go-fit-framework/testutil"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppState_String(t *testing.T) {
	assert.Equal(t, "Init", StateInit.String())
	assert.Equal(t, "Running", StateRunning.String())
	assert.Equal(t, "Stopped", StateStopped.String())
	assert.Equal(t, "Unknown", AppState(42).String())
}

func TestDoApplication_Lifecycle(t *testing.T) {
	var setupCalled, readyCalled, shutdownCalled bool
	app := NewDoApplication(
		WithConfigPath("testdata"),
		WithName("fit-test"),
		WithVersion("1.2.3"),
		WithOnSetup(func(*DoApplication) error { setupCalled = true; return nil }),
		WithOnReady(func(*DoApplication) error { readyCalled = true; return nil }),
		WithOnShutdown(func(context.Context) error { shutdownCalled = true; return nil }),
	)
	assert.Equal(t, StateInit, app.State())

	require.NoError(t, app.Setup())
	assert.True(t, setupCalled)
	assert.NotNil(t, app.Logger())
	require.NotNil(t, app.ConfigLoader())
	assert.True(t, app.ConfigLoader().IsSet("fit_registry"))

	require.NoError(t, app.Start())
	assert.True(t, readyCalled)
	assert.Equal(t, StateRunning, app.State())

	reg := app.Registry()
	require.NotNil(t, reg)
	require.True(t, reg.Save(context.Background(), testutil.Ad("w-1", "order", "g.order.create").Build()))

	server := do.MustInvoke[*admin.Server](app.Injector())
	resp, err := http.Get("http://" + server.Addr() + "/fit/services")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Code int `json:"code"`
		Data struct {
			Total int `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Data.Total)

	report := app.Health(context.Background())
	require.NotNil(t, report)
	assert.True(t, app.IsHealthy())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
	assert.True(t, shutdownCalled)
	assert.Equal(t, StateStopped, app.State())
	assert.Error(t, app.Context().Err())

	// the component was stopped by the injector
	assert.False(t, reg.Save(context.Background(), testutil.Ad("w-1", "order", "g.order.create").Build()))

	// second shutdown is a no-op
	require.NoError(t, app.Shutdown(ctx))
}

func TestDoApplication_SetupBadConfigDir(t *testing.T) {
	app := NewDoApplication(WithConfigPath("testdata/missing"))
	require.NoError(t, app.Setup())

	// defaults everywhere
	server, err := do.Invoke[*admin.Server](app.Injector())
	require.NoError(t, err)
	assert.True(t, server.Enabled())
	assert.Equal(t, admin.DefaultConfig().Addr, server.Addr())

	require.NoError(t, app.Shutdown(context.Background()))
}

func TestDoApplication_SetupCallbackError(t *testing.T) {
	app := NewDoApplication(
		WithConfigPath("testdata"),
		WithOnSetup(func(*DoApplication) error { return assert.AnError }),
	)
	err := app.Setup()
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestProvideConfigLoader_DefaultPath(t *testing.T) {
	injector := do.New()
	do.Provide(injector, ProvideConfigLoader(ConfigOptions{}))
	loader, err := do.Invoke[*config.Loader](injector)
	require.NoError(t, err)
	assert.Empty(t, loader.GetLoadedFiles())
}
