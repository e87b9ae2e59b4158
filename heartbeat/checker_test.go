package heartbeat

import (
	"context"
	"testing"

	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "none", cfg: Config{Type: TypeNone}},
		{name: "empty type", cfg: Config{}},
		{name: "unknown type", cfg: Config{Type: "zookeeper"}, wantErr: true},
		{name: "redis without addr", cfg: Config{Type: TypeRedis}, wantErr: true},
		{name: "redis", cfg: Config{Type: TypeRedis, Redis: RedisConfig{Addr: "127.0.0.1:6379"}}},
		{name: "etcd without endpoints", cfg: Config{Type: TypeEtcd}, wantErr: true},
		{name: "etcd", cfg: Config{Type: TypeEtcd, Etcd: EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}}}},
		{name: "redis section ignored for etcd", cfg: Config{
			Type: TypeEtcd,
			Etcd: EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_None(t *testing.T) {
	c, err := New(Config{Type: TypeNone}, logger.NewNopLogger())
	require.NoError(t, err)

	alive, err := c.IsAlive(context.Background(), "w1", "fit_registry")
	require.NoError(t, err)
	assert.False(t, alive)
	assert.NoError(t, c.Close())
}

func TestNew_Unknown(t *testing.T) {
	_, err := New(Config{Type: "consul"}, logger.NewNopLogger())
	assert.Error(t, err)
}

func TestCheckerFunc(t *testing.T) {
	var c Checker = CheckerFunc(func(_ context.Context, workerID, scene string) (bool, error) {
		return workerID == "w1" && scene == "fit_registry", nil
	})

	alive, err := c.IsAlive(context.Background(), "w1", "fit_registry")
	require.NoError(t, err)
	assert.True(t, alive)

	alive, err = c.IsAlive(context.Background(), "w1", "fit_registry_server")
	require.NoError(t, err)
	assert.False(t, alive)
	assert.NoError(t, c.Close())
}
