package di

import (
	"context"
	"fmt"
	"time"

	"github.com/KOMKZ/go-fit-framework/admin"
	"github.com/KOMKZ/go-fit-framework/component"
	"github.com/KOMKZ/go-fit-framework/config"
	"github.com/KOMKZ/go-fit-framework/health"
	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/KOMKZ/go-fit-framework/registry"
	"github.com/KOMKZ/go-fit-framework/telemetry"
	"github.com/samber/do/v2"
)

// ============================================
// Base providers (config, logger)
// ============================================

// ConfigOptions config loader options
type ConfigOptions struct {
	ConfigPath   string // directory holding config.yaml and <APP_ENV>.yaml
	ConfigPrefix string // env override prefix
}

// ProvideConfigLoader provider for *config.Loader; no dependencies
func ProvideConfigLoader(opts ConfigOptions) func(do.Injector) (*config.Loader, error) {
	if opts.ConfigPath == "" {
		opts.ConfigPath = "./configs"
	}
	return config.ProvideLoader(config.ProvideLoaderOptions{
		ConfigPath:   opts.ConfigPath,
		ConfigPrefix: opts.ConfigPrefix,
	})
}

// ProvideLoggerManager initializes the global logger manager from the
// logger section; defaults when absent or unreadable
func ProvideLoggerManager(i do.Injector) (*logger.Manager, error) {
	cfg := logger.DefaultManagerConfig()
	if loader, err := do.Invoke[*config.Loader](i); err == nil && loader.IsSet(component.ComponentLogger) {
		if err := loader.Unmarshal(component.ComponentLogger, &cfg); err != nil {
			cfg = logger.DefaultManagerConfig()
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger config: %w", err)
	}
	logger.InitManager(cfg)
	return logger.Default(), nil
}

// ProvideCtxLogger provider factory for a module logger
func ProvideCtxLogger(moduleName string) func(do.Injector) (*logger.CtxZapLogger, error) {
	return func(i do.Injector) (*logger.CtxZapLogger, error) {
		mgr, err := do.Invoke[*logger.Manager](i)
		if err != nil {
			return logger.GetLogger(moduleName), nil
		}
		return mgr.GetLogger(moduleName), nil
	}
}

// ============================================
// Telemetry
// Depends on: config, logger
// ============================================

// ProvideTelemetry started telemetry manager from the telemetry section
func ProvideTelemetry(i do.Injector) (*telemetry.Manager, error) {
	cfg := telemetry.DefaultConfig()
	if err := unmarshalSection(i, "telemetry", &cfg); err != nil {
		return nil, err
	}
	mgr := telemetry.NewManager(cfg, logger.GetLogger("telemetry"))
	if err := mgr.Start(context.Background()); err != nil {
		return nil, err
	}
	return mgr, nil
}

// ============================================
// Registry
// Depends on: component.ConfigLoader, telemetry
// ============================================

// ProvideRegistry registry component with its metrics registered on the
// telemetry meter provider
func ProvideRegistry(i do.Injector) (*registry.Component, error) {
	c, err := registry.ProvideComponent(i)
	if err != nil {
		return nil, err
	}
	tm, err := do.Invoke[*telemetry.Manager](i)
	if err != nil {
		_ = c.Shutdown()
		return nil, err
	}
	if err := tm.RegisterMetrics(c.Metrics()); err != nil {
		_ = c.Shutdown()
		return nil, err
	}
	return c, nil
}

// ============================================
// Admin API
// Depends on: registry, health, telemetry
// ============================================

// ProvideHealthAggregator aggregator over the registry health check
func ProvideHealthAggregator(i do.Injector) (*health.Aggregator, error) {
	c, err := do.Invoke[*registry.Component](i)
	if err != nil {
		return nil, err
	}
	agg := health.NewAggregator(5 * time.Second)
	agg.Register(c.GetHealthChecker())
	return agg, nil
}

// ProvideAdminServer unstarted admin server from the admin section
func ProvideAdminServer(i do.Injector) (*admin.Server, error) {
	cfg := admin.DefaultConfig()
	if err := unmarshalSection(i, component.ComponentAdmin, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid admin config: %w", err)
	}

	c, err := do.Invoke[*registry.Component](i)
	if err != nil {
		return nil, err
	}
	agg, err := do.Invoke[*health.Aggregator](i)
	if err != nil {
		return nil, err
	}

	var opts []admin.Option
	if tm, err := do.Invoke[*telemetry.Manager](i); err == nil && tm.IsEnabled() {
		opts = append(opts, admin.WithTracing(tm.Config().ServiceName))
	}
	return admin.NewServer(cfg, c.Registry(), agg, logger.GetLogger("admin"), opts...), nil
}

// unmarshalSection leaves v untouched when the section is absent
func unmarshalSection(i do.Injector, key string, v interface{}) error {
	loader, err := do.Invoke[component.ConfigLoader](i)
	if err != nil {
		return err
	}
	if !loader.IsSet(key) {
		return nil
	}
	if err := loader.Unmarshal(key, v); err != nil {
		return fmt.Errorf("read %s config failed: %w", key, err)
	}
	return nil
}
