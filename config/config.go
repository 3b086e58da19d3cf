// Package config defines the server configuration and loads it from a YAML
// file, TEZ_ environment variables and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all application configuration.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Static StaticConfig `koanf:"static"`
	Routes RoutesConfig `koanf:"routes"`
	Log    LogConfig    `koanf:"log"`
	Admin  AdminConfig  `koanf:"admin"`
	GC     GCConfig     `koanf:"gc"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `koanf:"addr"`
	// Workers is the session pool size; 0 selects the CPU count.
	Workers int `koanf:"workers"`
}

// CacheConfig sizes one response cache. A capacity of 0 disables it.
type CacheConfig struct {
	Capacity int           `koanf:"capacity"`
	TTL      time.Duration `koanf:"ttl"`
}

// StaticConfig configures the /static/ file tree.
type StaticConfig struct {
	Root  string      `koanf:"root"`
	Cache CacheConfig `koanf:"cache"`
}

// RoutesConfig configures the route table.
type RoutesConfig struct {
	File  string      `koanf:"file"`
	Cache CacheConfig `koanf:"cache"`
}

// LogConfig configures process and access logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // console or json
	// Access is the access log file; empty disables it.
	Access string `koanf:"access"`
}

// AdminConfig configures the metrics/debug listener; empty Addr disables it.
type AdminConfig struct {
	Addr string `koanf:"addr"`
}

// GCConfig tunes the garbage collector at startup. Zero values keep the
// runtime defaults.
type GCConfig struct {
	Percent  int   `koanf:"percent"`
	MemLimit int64 `koanf:"memlimit"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Static: StaticConfig{
			Root:  "./static",
			Cache: CacheConfig{Capacity: 100, TTL: 60 * time.Second},
		},
		Routes: RoutesConfig{
			File:  "config.json",
			Cache: CacheConfig{Capacity: 100, TTL: 60 * time.Second},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Access: "server.log",
		},
	}
}

// Validate reports every invalid setting in c.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Server.Workers < 0 {
		errs = append(errs, fmt.Errorf("server.workers must be >= 0, got %d", c.Server.Workers))
	}
	if c.Static.Root == "" {
		errs = append(errs, errors.New("static.root must not be empty"))
	}
	errs = append(errs, c.Static.Cache.validate("static.cache")...)
	errs = append(errs, c.Routes.Cache.validate("routes.cache")...)

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	if c.Admin.Addr != "" && c.Admin.Addr == c.Server.Addr {
		errs = append(errs, errors.New("admin.addr must differ from server.addr"))
	}
	if c.GC.Percent < 0 {
		errs = append(errs, fmt.Errorf("gc.percent must be >= 0, got %d", c.GC.Percent))
	}
	if c.GC.MemLimit < 0 {
		errs = append(errs, fmt.Errorf("gc.memlimit must be >= 0, got %d", c.GC.MemLimit))
	}

	return errors.Join(errs...)
}

func (c CacheConfig) validate(prefix string) []error {
	var errs []error
	if c.Capacity < 0 {
		errs = append(errs, fmt.Errorf("%s.capacity must be >= 0, got %d", prefix, c.Capacity))
	}
	if c.TTL < 0 {
		errs = append(errs, fmt.Errorf("%s.ttl must be >= 0, got %s", prefix, c.TTL))
	}
	return errs
}

// Map returns c as a nested map keyed like the configuration file, with
// durations in Go syntax.
func (c Config) Map() map[string]any {
	cache := func(cc CacheConfig) map[string]any {
		return map[string]any{
			"capacity": cc.Capacity,
			"ttl":      cc.TTL.String(),
		}
	}

	return map[string]any{
		"server": map[string]any{
			"addr":    c.Server.Addr,
			"workers": c.Server.Workers,
		},
		"static": map[string]any{
			"root":  c.Static.Root,
			"cache": cache(c.Static.Cache),
		},
		"routes": map[string]any{
			"file":  c.Routes.File,
			"cache": cache(c.Routes.Cache),
		},
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
			"access": c.Log.Access,
		},
		"admin": map[string]any{
			"addr": c.Admin.Addr,
		},
		"gc": map[string]any{
			"percent":  c.GC.Percent,
			"memlimit": c.GC.MemLimit,
		},
	}
}
