package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "TEZ_"

// errReadBytes is returned by mapProvider.ReadBytes.
var errReadBytes = errors.New("config: map provider has no byte form")

// Manager layers configuration sources. Later sources override earlier
// ones: defaults, then the YAML file, then the environment, then explicit
// overrides such as command-line flags.
type Manager struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option is a function that configures the Manager.
type Option func(*Manager)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(m *Manager) {
		m.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(m *Manager) {
		m.filePath = path
	}
}

// NewManager creates a new configuration manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Load merges all sources and returns the validated configuration.
// overrides maps dotted keys ("server.addr") to values; nil is allowed.
func (m *Manager) Load(overrides map[string]any) (Config, error) {
	if err := m.k.Load(mapProvider(Default().Map()), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if m.filePath != "" {
		if err := m.k.Load(file.Provider(m.filePath), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", m.filePath, err)
		}
	}

	if err := m.LoadEnv(); err != nil {
		return Config{}, err
	}

	if len(overrides) > 0 {
		if err := m.k.Load(mapProvider(maps.Unflatten(overrides, ".")), nil); err != nil {
			return Config{}, fmt.Errorf("load overrides: %w", err)
		}
	}

	cfg := Default()
	if err := m.k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadEnv loads TEZ_SECTION_KEY variables as section.key.
// Example: TEZ_STATIC_CACHE_TTL=30s sets static.cache.ttl.
func (m *Manager) LoadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, m.envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "_", ".")
	}

	if err := m.k.Load(env.Provider(m.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// Source returns the configuration file path, or "".
func (m *Manager) Source() string {
	return m.filePath
}

// Dump renders cfg as YAML.
func Dump(cfg Config) ([]byte, error) {
	return yamlv3.Marshal(cfg.Map())
}

// mapProvider is a koanf provider over an in-memory nested map.
type mapProvider map[string]any

// ReadBytes is not supported; koanf uses Read.
func (p mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytes
}

// Read returns the configuration map.
func (p mapProvider) Read() (map[string]any, error) {
	return maps.Copy(p), nil
}
