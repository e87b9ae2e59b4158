package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader viper-backed configuration loader.
// Sources in ascending priority: config.yaml, <env>.yaml, environment variables.
type Loader struct {
	v           *viper.Viper
	loadedFiles []string
}

// LoaderBuilder configuration loader builder
type LoaderBuilder struct {
	configPath string
	envPrefix  string
	defaults   map[string]interface{}
}

// NewLoaderBuilder creates a loader builder
func NewLoaderBuilder() *LoaderBuilder {
	return &LoaderBuilder{defaults: make(map[string]interface{})}
}

// WithConfigPath sets the configuration directory
func (b *LoaderBuilder) WithConfigPath(path string) *LoaderBuilder {
	b.configPath = path
	return b
}

// WithEnvPrefix sets the environment variable prefix (FIT → FIT_FIT_REGISTRY_DEFAULT_LEASE_SECONDS)
func (b *LoaderBuilder) WithEnvPrefix(prefix string) *LoaderBuilder {
	b.envPrefix = prefix
	return b
}

// WithDefault registers a default value.
// Defaults also make a key visible to environment overrides during Unmarshal.
func (b *LoaderBuilder) WithDefault(key string, value interface{}) *LoaderBuilder {
	b.defaults[key] = value
	return b
}

// Build loads every source
func (b *LoaderBuilder) Build() (*Loader, error) {
	l := &Loader{v: viper.New()}
	l.v.SetConfigType("yaml")

	for k, val := range b.defaults {
		l.v.SetDefault(k, val)
	}

	if b.configPath != "" {
		if err := l.mergeFile(filepath.Join(b.configPath, "config.yaml")); err != nil {
			return nil, err
		}
		if env := GetEnv(); env != "" {
			if err := l.mergeFile(filepath.Join(b.configPath, env+".yaml")); err != nil {
				return nil, err
			}
		}
	}

	if b.envPrefix != "" {
		l.v.SetEnvPrefix(b.envPrefix)
		l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		l.v.AutomaticEnv()
	}

	return l, nil
}

// mergeFile merges one yaml file; a missing file is skipped
func (l *Loader) mergeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config file %s: %w", path, err)
	}
	defer f.Close()

	if err := l.v.MergeConfig(f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	l.loadedFiles = append(l.loadedFiles, path)
	return nil
}

// Unmarshal decodes the section at key into v (empty key = whole config)
func (l *Loader) Unmarshal(key string, v interface{}) error {
	if key == "" {
		return l.v.Unmarshal(v)
	}
	return l.v.UnmarshalKey(key, v)
}

func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

func (l *Loader) GetInt(key string) int {
	return l.v.GetInt(key)
}

func (l *Loader) GetBool(key string) bool {
	return l.v.GetBool(key)
}

func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// GetLoadedFiles files merged, in load order
func (l *Loader) GetLoadedFiles() []string {
	return l.loadedFiles
}

// GetEnv current environment name: APP_ENV, then ENV, default dev
func GetEnv() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "dev"
}
