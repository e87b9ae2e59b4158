package di

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/KOMKZ/go-fit-framework/admin"
	"github.com/KOMKZ/go-fit-framework/component"
	"github.com/KOMKZ/go-fit-framework/config"
	"github.com/KOMKZ/go-fit-framework/health"
	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/KOMKZ/go-fit-framework/registry"
	"github.com/KOMKZ/go-fit-framework/telemetry"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

// AppState application state
type AppState int

const (
	StateInit AppState = iota
	StateSetup
	StateRunning
	StateStopping
	StateStopped
)

// String state name
func (s AppState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSetup:
		return "Setup"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// DoApplication fit registry process on a samber/do injector.
// Components are resolved lazily and shut down in reverse dependency order.
type DoApplication struct {
	injector *do.RootScope

	configPath   string
	configPrefix string
	configLoader *config.Loader

	logger *logger.CtxZapLogger

	ctx    context.Context
	cancel context.CancelFunc
	state  AppState
	mu     sync.RWMutex

	name            string
	version         string
	shutdownTimeout time.Duration

	onSetup    func(*DoApplication) error
	onReady    func(*DoApplication) error
	onShutdown func(context.Context) error
}

// DoAppOption application option
type DoAppOption func(*DoApplication)

// WithConfigPath config directory
func WithConfigPath(path string) DoAppOption {
	return func(app *DoApplication) {
		app.configPath = path
	}
}

// WithConfigPrefix env override prefix
func WithConfigPrefix(prefix string) DoAppOption {
	return func(app *DoApplication) {
		app.configPrefix = prefix
	}
}

// WithName application name, also the root logger module
func WithName(name string) DoAppOption {
	return func(app *DoApplication) {
		app.name = name
	}
}

// WithVersion application version
func WithVersion(version string) DoAppOption {
	return func(app *DoApplication) {
		app.version = version
	}
}

// WithShutdownTimeout bound on the graceful shutdown after a signal
func WithShutdownTimeout(d time.Duration) DoAppOption {
	return func(app *DoApplication) {
		if d > 0 {
			app.shutdownTimeout = d
		}
	}
}

// WithOnSetup runs after the base providers are registered
func WithOnSetup(fn func(*DoApplication) error) DoAppOption {
	return func(app *DoApplication) {
		app.onSetup = fn
	}
}

// WithOnReady runs once the admin server is listening
func WithOnReady(fn func(*DoApplication) error) DoAppOption {
	return func(app *DoApplication) {
		app.onReady = fn
	}
}

// WithOnShutdown runs before the injector shuts down
func WithOnShutdown(fn func(context.Context) error) DoAppOption {
	return func(app *DoApplication) {
		app.onShutdown = fn
	}
}

// NewDoApplication creates an application in StateInit
func NewDoApplication(opts ...DoAppOption) *DoApplication {
	ctx, cancel := context.WithCancel(context.Background())

	app := &DoApplication{
		injector:        do.New(),
		configPath:      "./configs",
		ctx:             ctx,
		cancel:          cancel,
		state:           StateInit,
		name:            "fit-registry",
		version:         "0.0.1",
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Injector the root scope
func (app *DoApplication) Injector() *do.RootScope {
	return app.injector
}

// Logger application logger; nil before Setup
func (app *DoApplication) Logger() *logger.CtxZapLogger {
	return app.logger
}

// ConfigLoader nil before Setup
func (app *DoApplication) ConfigLoader() *config.Loader {
	return app.configLoader
}

// Context cancelled on Shutdown
func (app *DoApplication) Context() context.Context {
	return app.ctx
}

// State current state
func (app *DoApplication) State() AppState {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.state
}

func (app *DoApplication) setState(state AppState) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.state = state
}

// Setup loads config, initializes logging and registers every provider.
// Nothing beyond config and logger is constructed until Start.
func (app *DoApplication) Setup() error {
	app.setState(StateSetup)

	do.Provide(app.injector, ProvideConfigLoader(ConfigOptions{
		ConfigPath:   app.configPath,
		ConfigPrefix: app.configPrefix,
	}))
	loader, err := do.Invoke[*config.Loader](app.injector)
	if err != nil {
		return fmt.Errorf("init config failed: %w", err)
	}
	app.configLoader = loader
	do.ProvideValue[component.ConfigLoader](app.injector, loader)

	do.Provide(app.injector, ProvideLoggerManager)
	do.Provide(app.injector, ProvideCtxLogger(app.name))
	appLogger, err := do.Invoke[*logger.CtxZapLogger](app.injector)
	if err != nil {
		return fmt.Errorf("init logger failed: %w", err)
	}
	app.logger = appLogger

	do.Provide(app.injector, ProvideTelemetry)
	do.Provide(app.injector, ProvideRegistry)
	do.Provide(app.injector, ProvideHealthAggregator)
	do.Provide(app.injector, ProvideAdminServer)

	app.logger.Info("Application setting up",
		zap.String("name", app.name),
		zap.String("version", app.version),
		zap.String("config_path", app.configPath),
		zap.Strings("config_files", loader.GetLoadedFiles()),
	)

	if app.onSetup != nil {
		if err := app.onSetup(app); err != nil {
			return fmt.Errorf("setup callback failed: %w", err)
		}
	}
	return nil
}

// Start builds the registry and starts the admin server when enabled
func (app *DoApplication) Start() error {
	if _, err := do.Invoke[*registry.Component](app.injector); err != nil {
		return fmt.Errorf("init registry failed: %w", err)
	}

	server, err := do.Invoke[*admin.Server](app.injector)
	if err != nil {
		return fmt.Errorf("init admin server failed: %w", err)
	}
	if server.Enabled() {
		if err := server.Start(); err != nil {
			return fmt.Errorf("start admin server failed: %w", err)
		}
	}

	app.setState(StateRunning)
	app.logger.Info("Application started",
		zap.String("name", app.name),
		zap.String("version", app.version),
		zap.String("state", app.State().String()),
	)

	if app.onReady != nil {
		if err := app.onReady(app); err != nil {
			return fmt.Errorf("ready callback failed: %w", err)
		}
	}
	return nil
}

// Run Setup, Start, then block until SIGINT or SIGTERM
func (app *DoApplication) Run() error {
	if err := app.Setup(); err != nil {
		return err
	}
	if err := app.Start(); err != nil {
		return err
	}
	app.waitForSignal()
	return nil
}

func (app *DoApplication) waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		app.logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case <-app.ctx.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		app.logger.Error("Shutdown failed", zap.Error(err))
	}
}

// Shutdown stops every constructed service in reverse dependency order
func (app *DoApplication) Shutdown(ctx context.Context) error {
	if app.State() == StateStopped {
		return nil
	}
	app.setState(StateStopping)
	if app.logger == nil {
		app.logger = logger.GetLogger(app.name)
	}
	app.logger.Info("Application shutting down")

	if app.onShutdown != nil {
		if err := app.onShutdown(ctx); err != nil {
			app.logger.Warn("Shutdown callback failed", zap.Error(err))
		}
	}

	app.cancel()

	if err := app.injector.Shutdown(); err != nil {
		app.logger.Warn("Injector shutdown failed", zap.Error(err))
	}

	app.setState(StateStopped)
	app.logger.Info("Application stopped")
	return nil
}

// HealthCheck health of every constructed service, by name
func (app *DoApplication) HealthCheck() map[string]error {
	return app.injector.HealthCheck()
}

// IsHealthy all constructed services healthy
func (app *DoApplication) IsHealthy() bool {
	for _, err := range app.HealthCheck() {
		if err != nil {
			return false
		}
	}
	return true
}

// Registry the running service registry; nil before Start
func (app *DoApplication) Registry() *registry.ServiceRegistry {
	c, err := do.Invoke[*registry.Component](app.injector)
	if err != nil {
		return nil
	}
	return c.Registry()
}

// Health aggregated health report
func (app *DoApplication) Health(ctx context.Context) *health.Response {
	agg, err := do.Invoke[*health.Aggregator](app.injector)
	if err != nil {
		return nil
	}
	return agg.Check(ctx)
}

// Telemetry nil when construction failed
func (app *DoApplication) Telemetry() *telemetry.Manager {
	tm, err := do.Invoke[*telemetry.Manager](app.injector)
	if err != nil {
		return nil
	}
	return tm
}
