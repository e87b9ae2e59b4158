package registry

import (
	"context"
	"fmt"

	"github.com/KOMKZ/go-fit-framework/component"
	"github.com/KOMKZ/go-fit-framework/heartbeat"
	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/KOMKZ/go-fit-framework/timer"
	"go.uber.org/zap"
)

// Component fit registry component
//
// Implements component.Component: builds the heartbeat checker, timer
// service, directories, reconciler and façade from the fit_registry section.
// Depends on: config, logger
type Component struct {
	config     Config
	registry   *ServiceRegistry
	reconciler *HeartbeatReconciler
	timers     *timer.Service
	checker    heartbeat.Checker
	metrics    *Metrics
	logger     *logger.CtxZapLogger
}

// NewComponent creates an uninitialized component
func NewComponent() *Component {
	return &Component{}
}

// Name component name
func (c *Component) Name() string {
	return component.ComponentFitRegistry
}

// DependsOn config and logger
func (c *Component) DependsOn() []string {
	return []string{component.ComponentConfig, component.ComponentLogger}
}

// Init reads fit_registry and assembles the registry
func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	c.logger = logger.GetLogger("fit")
	c.logger.DebugCtx(ctx, "Fit registry component initializing...")

	cfg := DefaultConfig()
	if loader != nil && loader.IsSet(component.ComponentFitRegistry) {
		if err := loader.Unmarshal(component.ComponentFitRegistry, &cfg); err != nil {
			return fmt.Errorf("read fit_registry config failed: %w", err)
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid fit_registry config: %w", err)
	}
	return c.InitWithConfig(ctx, cfg)
}

// InitWithConfig assembles the registry from an explicit configuration
func (c *Component) InitWithConfig(ctx context.Context, cfg Config) error {
	if c.logger == nil {
		c.logger = logger.GetLogger("fit")
	}
	c.config = cfg

	checker, err := heartbeat.New(cfg.Heartbeat, logger.GetLogger("heartbeat"))
	if err != nil {
		return fmt.Errorf("create heartbeat checker failed: %w", err)
	}

	timers, err := timer.New(cfg.Timer, logger.GetLogger("timer"))
	if err != nil {
		_ = checker.Close()
		return fmt.Errorf("create timer service failed: %w", err)
	}

	c.checker = checker
	c.timers = timers
	c.metrics = NewMetrics(cfg.Metrics)
	c.registry = NewServiceRegistry(
		NewWorkerDirectory(timers, cfg.defaultLease(), c.logger),
		NewAddressDirectory(c.logger),
		NewFitableDirectory(c.logger),
		WithLogger(c.logger),
		WithMetrics(c.metrics),
	)
	c.reconciler = NewHeartbeatReconciler(c.registry, checker, cfg.HeartbeatScenes, cfg.HeartbeatTimeout, c.logger)

	c.logger.DebugCtx(ctx, "Fit registry initialized",
		zap.Int64("default_lease_seconds", cfg.DefaultLeaseSeconds),
		zap.Strings("heartbeat_scenes", cfg.HeartbeatScenes),
		zap.String("heartbeat_type", cfg.Heartbeat.Type))
	return nil
}

// Start nothing to start; timers run from Init
func (c *Component) Start(ctx context.Context) error {
	return nil
}

// Stop shuts the timer service down and closes the checker (idempotent)
func (c *Component) Stop(ctx context.Context) error {
	var firstErr error
	if c.timers != nil {
		if err := c.timers.Shutdown(); err != nil {
			firstErr = fmt.Errorf("shutdown timer service failed: %w", err)
		}
		c.timers = nil
	}
	if c.checker != nil {
		if err := c.checker.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close heartbeat checker failed: %w", err)
		}
		c.checker = nil
	}
	return firstErr
}

// Registry the service registry façade
func (c *Component) Registry() *ServiceRegistry {
	return c.registry
}

// Metrics registry instruments (component.MetricsProvider)
func (c *Component) Metrics() *Metrics {
	return c.metrics
}

// Checker the heartbeat checker in use
func (c *Component) Checker() heartbeat.Checker {
	return c.checker
}

// GetHealthChecker implements component.HealthCheckProvider
func (c *Component) GetHealthChecker() component.HealthChecker {
	return &HealthChecker{component: c}
}

// HealthChecker registry readiness plus heartbeat backend reachability
type HealthChecker struct {
	component *Component
}

// Name check item name
func (h *HealthChecker) Name() string {
	return component.ComponentFitRegistry
}

// Check fails when the registry is not assembled or the heartbeat store is down
func (h *HealthChecker) Check(ctx context.Context) error {
	c := h.component
	if c == nil || c.registry == nil || !c.registry.ready() {
		return ErrNotReady
	}
	if p, ok := c.checker.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("heartbeat store unreachable: %w", err)
		}
	}
	return nil
}
