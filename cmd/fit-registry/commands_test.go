package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "fit-registry 0.0.1\n", out)
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := []byte(`
logger:
  enable_console: false
  enable_file: false
fit_registry:
  default_lease_seconds: 20
admin:
  enabled: false
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), cfg, 0o644))

	out, err := run(t, "check", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration ok")
	assert.Contains(t, out, "config.yaml")
}

func TestCheckCommand_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := []byte(`
logger:
  enable_console: false
  enable_file: false
fit_registry:
  heartbeat:
    type: zookeeper
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), cfg, 0o644))

	_, err := run(t, "check", "-c", dir)
	require.Error(t, err)
}

func TestServeCommand_Flags(t *testing.T) {
	cmd := newServeCmd()
	for _, name := range []string{"config", "env-prefix", "shutdown-timeout"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "FIT", cmd.Flags().Lookup("env-prefix").DefValue)
}
