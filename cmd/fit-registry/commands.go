package main

import (
	"context"
	"fmt"
	"time"

	"github.com/KOMKZ/go-fit-framework/di"
	"github.com/KOMKZ/go-fit-framework/flagx"
	"github.com/KOMKZ/go-fit-framework/registry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// set by -ldflags "-X main.version=..."
var version = "0.0.1"

const appName = "fit-registry"

type serveOptions struct {
	ConfigPath      string        `flag:"config,c" default:"./configs" usage:"directory holding config.yaml and <APP_ENV>.yaml"`
	EnvPrefix       string        `flag:"env-prefix" default:"FIT" usage:"prefix of environment overrides"`
	ShutdownTimeout time.Duration `flag:"shutdown-timeout" default:"30s" usage:"graceful shutdown bound"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "In-memory FIT service registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newCheckCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the registry and its admin API until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flagx.ParseFlags(cmd, &opts); err != nil {
				return err
			}
			app := newApplication(opts, di.WithOnReady(logExpired))
			return app.Run()
		},
	}
	cobra.CheckErr(flagx.BindFlags(cmd, &opts))
	return cmd
}

// newCheckCmd builds every component from config once, then shuts down
func newCheckCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration by constructing every component",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flagx.ParseFlags(cmd, &opts); err != nil {
				return err
			}
			app := newApplication(opts)
			if err := app.Setup(); err != nil {
				return err
			}
			defer func() { _ = app.Shutdown(context.Background()) }()

			if app.Registry() == nil {
				return fmt.Errorf("registry could not be constructed")
			}
			if report := app.Health(cmd.Context()); report == nil || !report.IsHealthy() {
				return fmt.Errorf("registry is not healthy")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration ok (%v)\n", app.ConfigLoader().GetLoadedFiles())
			return nil
		},
	}
	cobra.CheckErr(flagx.BindFlags(cmd, &opts))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
		},
	}
}

func newApplication(opts serveOptions, extra ...di.DoAppOption) *di.DoApplication {
	return di.NewDoApplication(append([]di.DoAppOption{
		di.WithName(appName),
		di.WithVersion(version),
		di.WithConfigPath(opts.ConfigPath),
		di.WithConfigPrefix(opts.EnvPrefix),
		di.WithShutdownTimeout(opts.ShutdownTimeout),
	}, extra...)...)
}

func logExpired(app *di.DoApplication) error {
	app.Registry().InitTimeoutCallback(func(ads []registry.ServiceAdvertisement) {
		if len(ads) == 0 {
			return
		}
		app.Logger().Info("Services expired",
			zap.String("worker_id", ads[0].Worker.ID),
			zap.Int("count", len(ads)))
	})
	return nil
}
