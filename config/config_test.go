package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Routes.Cache.TTL != 60*time.Second || cfg.Static.Cache.Capacity != 100 {
		t.Errorf("unexpected cache defaults %+v %+v", cfg.Routes.Cache, cfg.Static.Cache)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"negative workers", func(c *Config) { c.Server.Workers = -1 }, "server.workers"},
		{"negative capacity", func(c *Config) { c.Static.Cache.Capacity = -5 }, "static.cache.capacity"},
		{"negative ttl", func(c *Config) { c.Routes.Cache.TTL = -time.Second }, "routes.cache.ttl"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"admin clash", func(c *Config) { c.Admin.Addr = c.Server.Addr }, "admin.addr"},
		{"negative gc", func(c *Config) { c.GC.Percent = -1 }, "gc.percent"},
	}

	for _, tt := range tests {
		cfg := Default()
		tt.mutate(&cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: expected error mentioning %q, got %v", tt.name, tt.want, err)
		}
	}
}

func TestManager_Layering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tez.yaml")
	content := `server:
  addr: ":9000"
  workers: 8
static:
  root: /srv/www
  cache:
    ttl: 30s
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TEZ_SERVER_WORKERS", "16")
	t.Setenv("TEZ_ROUTES_CACHE_CAPACITY", "7")

	m := NewManager(WithConfigFile(path))
	cfg, err := m.Load(map[string]any{"server.addr": ":9100"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":9100" {
		t.Errorf("override should win: got %s", cfg.Server.Addr)
	}
	if cfg.Server.Workers != 16 {
		t.Errorf("env should beat file: got %d", cfg.Server.Workers)
	}
	if cfg.Static.Root != "/srv/www" || cfg.Static.Cache.TTL != 30*time.Second {
		t.Errorf("file values not applied: %+v", cfg.Static)
	}
	if cfg.Static.Cache.Capacity != 100 {
		t.Errorf("unset keys should keep defaults: got %d", cfg.Static.Cache.Capacity)
	}
	if cfg.Routes.Cache.Capacity != 7 {
		t.Errorf("env capacity not applied: got %d", cfg.Routes.Cache.Capacity)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if m.Source() != path {
		t.Errorf("expected source %s, got %s", path, m.Source())
	}
}

func TestManager_MissingFile(t *testing.T) {
	m := NewManager(WithConfigFile(filepath.Join(t.TempDir(), "nope.yaml")))
	if _, err := m.Load(nil); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestManager_InvalidValues(t *testing.T) {
	m := NewManager(WithEnvPrefix("TEZTEST_"))
	t.Setenv("TEZTEST_LOG_FORMAT", "xml")

	_, err := m.Load(nil)
	if err == nil || !strings.Contains(err.Error(), "log.format") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDump(t *testing.T) {
	out, err := Dump(Default())
	if err != nil {
		t.Fatal(err)
	}

	var back map[string]map[string]any
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("dump is not YAML: %v", err)
	}
	if back["server"]["addr"] != ":8080" {
		t.Errorf("unexpected dump %s", out)
	}
	if !strings.Contains(string(out), "ttl: 1m0s") {
		t.Errorf("expected durations in Go syntax, got %s", out)
	}
}
