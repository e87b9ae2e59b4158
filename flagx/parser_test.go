package flagx

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serveOptions struct {
	ConfigPath string        `flag:"config,c" default:"./configs" usage:"config directory"`
	EnvPrefix  string        `flag:"env-prefix" default:"FIT"`
	Port       int           `flag:"port" default:"8081"`
	MaxSync    int64         `flag:"max-sync"`
	Debug      bool          `flag:"debug"`
	Scenes     []string      `flag:"scenes" default:"fit_registry,fit_registry_server"`
	Timeout    time.Duration `flag:"shutdown-timeout" default:"30s"`
	ignored    string        `flag:"ignored"`
	NoTag      string
}

func TestBindFlags_Defaults(t *testing.T) {
	cmd := &cobra.Command{Use: "serve"}
	var opts serveOptions
	require.NoError(t, BindFlags(cmd, &opts))

	assert.Nil(t, cmd.Flags().Lookup("ignored"))
	assert.Equal(t, "c", cmd.Flags().Lookup("config").Shorthand)
	assert.Equal(t, "config directory", cmd.Flags().Lookup("config").Usage)

	require.NoError(t, cmd.ParseFlags(nil))
	require.NoError(t, ParseFlags(cmd, &opts))
	assert.Equal(t, "./configs", opts.ConfigPath)
	assert.Equal(t, "FIT", opts.EnvPrefix)
	assert.Equal(t, 8081, opts.Port)
	assert.Zero(t, opts.MaxSync)
	assert.False(t, opts.Debug)
	assert.Equal(t, []string{"fit_registry", "fit_registry_server"}, opts.Scenes)
	assert.Equal(t, 30*time.Second, opts.Timeout)
}

func TestParseFlags_CommandLine(t *testing.T) {
	cmd := &cobra.Command{Use: "serve"}
	var opts serveOptions
	require.NoError(t, BindFlags(cmd, &opts))

	require.NoError(t, cmd.ParseFlags([]string{
		"-c", "/etc/fit",
		"--port", "9000",
		"--max-sync", "12",
		"--debug",
		"--scenes", "a,b",
		"--shutdown-timeout", "5s",
	}))
	require.NoError(t, ParseFlags(cmd, &opts))
	assert.Equal(t, "/etc/fit", opts.ConfigPath)
	assert.Equal(t, 9000, opts.Port)
	assert.Equal(t, int64(12), opts.MaxSync)
	assert.True(t, opts.Debug)
	assert.Equal(t, []string{"a", "b"}, opts.Scenes)
	assert.Equal(t, 5*time.Second, opts.Timeout)
}

func TestBindFlags_Required(t *testing.T) {
	type opts struct {
		Addr string `flag:"addr" required:"true"`
	}
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	var o opts
	require.NoError(t, BindFlags(cmd, &o))
	cmd.SetArgs([]string{})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "addr")
}

func TestBindFlags_BadDefault(t *testing.T) {
	type opts struct {
		Port int `flag:"port" default:"http"`
	}
	err := BindFlags(&cobra.Command{}, &opts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid default")
}

func TestBindFlags_UnsupportedType(t *testing.T) {
	type opts struct {
		Ratio float32 `flag:"ratio"`
		Ports []int   `flag:"ports"`
	}
	err := BindFlags(&cobra.Command{}, &opts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported field type")
}

func TestParseFlags_NotBound(t *testing.T) {
	type opts struct {
		Name string `flag:"name"`
	}
	err := ParseFlags(&cobra.Command{}, &opts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse flag name")
}

func TestFlags_TargetMustBeStructPointer(t *testing.T) {
	var s string
	for _, target := range []interface{}{serveOptions{}, &s, nil} {
		assert.Error(t, BindFlags(&cobra.Command{}, target))
		assert.Error(t, ParseFlags(&cobra.Command{}, target))
	}
}
