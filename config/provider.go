package config

import (
	"fmt"

	"github.com/samber/do/v2"
)

// ProvideLoaderOptions options for ProvideLoader
type ProvideLoaderOptions struct {
	ConfigPath   string // configuration directory
	ConfigPrefix string // environment variable prefix
}

// ProvideLoader returns a samber/do provider for *Loader.
//
//	do.Provide(injector, config.ProvideLoader(config.ProvideLoaderOptions{
//	    ConfigPath:   "./configs",
//	    ConfigPrefix: "FIT",
//	}))
func ProvideLoader(opts ProvideLoaderOptions) func(do.Injector) (*Loader, error) {
	return func(i do.Injector) (*Loader, error) {
		loader, err := NewLoaderBuilder().
			WithConfigPath(opts.ConfigPath).
			WithEnvPrefix(opts.ConfigPrefix).
			Build()
		if err != nil {
			return nil, fmt.Errorf("config loader build failed: %w", err)
		}
		return loader, nil
	}
}
