// Package component defines the lifecycle contracts shared by framework parts.
// It is the bottom layer and depends on no other package of the module.
package component

import "context"

// Component unified lifecycle: Init → Start → Stop
type Component interface {
	// Name unique component name
	Name() string

	// DependsOn names of components that must be initialized first
	DependsOn() []string

	// Init reads configuration and creates resources without serving traffic
	Init(ctx context.Context, loader ConfigLoader) error

	// Start begins serving (timers, listeners)
	Start(ctx context.Context) error

	// Stop releases resources; must be idempotent
	Stop(ctx context.Context) error
}

// HealthChecker optional health check exposed by a component
type HealthChecker interface {
	// Check returns nil when healthy
	Check(ctx context.Context) error

	// Name check item name (e.g. "fit_registry")
	Name() string
}

// HealthCheckProvider implemented by components that expose a HealthChecker
type HealthCheckProvider interface {
	GetHealthChecker() HealthChecker
}
