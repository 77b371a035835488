package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Port:                 "8082",
		DBPath:               filepath.Join(t.TempDir(), "hisab.db"),
		CacheSize:            64,
		CacheTTL:             5 * time.Minute,
		CacheCleanupInterval: time.Hour,
		DefaultCurrency:      "INR",
		LogLevel:             "info",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8082" {
		t.Errorf("Port = %s", cfg.Port)
	}
	if cfg.CacheSize != 64 {
		t.Errorf("CacheSize = %d", cfg.CacheSize)
	}
	if cfg.DefaultCurrency != "INR" {
		t.Errorf("DefaultCurrency = %s", cfg.DefaultCurrency)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MONTH_CACHE_TTL", "30s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Errorf("Port = %s", cfg.Port)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig(t).Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"bad port", func(c *Config) { c.Port = "http" }, "invalid port"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "invalid port"},
		{"empty db path", func(c *Config) { c.DBPath = "" }, "database path"},
		{"tiny cache", func(c *Config) { c.CacheSize = 0 }, "cache size"},
		{"short ttl", func(c *Config) { c.CacheTTL = time.Millisecond }, "cache TTL"},
		{"bad currency", func(c *Config) { c.DefaultCurrency = "RUPEES" }, "currency"},
		{"bad level", func(c *Config) { c.LogLevel = "verbose" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}
