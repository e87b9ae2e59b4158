package registry

import (
	"context"

	"github.com/KOMKZ/go-fit-framework/component"
	"github.com/samber/do/v2"
)

// ProvideComponent samber/do provider for an initialized *Component.
// The loader is resolved from the injector through component.ConfigLoader.
//
//	do.Provide(injector, registry.ProvideComponent)
//	reg := do.MustInvoke[*registry.Component](injector).Registry()
func ProvideComponent(i do.Injector) (*Component, error) {
	loader, err := do.Invoke[component.ConfigLoader](i)
	if err != nil {
		return nil, err
	}
	c := NewComponent()
	if err := c.Init(context.Background(), loader); err != nil {
		return nil, err
	}
	return c, nil
}

// Shutdown lets samber/do stop the component on injector shutdown
func (c *Component) Shutdown() error {
	return c.Stop(context.Background())
}

// HealthCheck lets samber/do report component health
func (c *Component) HealthCheck() error {
	return c.GetHealthChecker().Check(context.Background())
}
