package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	DBPath string

	// Month cache
	CacheSize            int
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration

	// Defaults applied to imported data
	DefaultCurrency string

	// Logging
	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:                 getEnv("PORT", "8082"),
		DBPath:               getEnv("HISAB_DB_PATH", "./data/hisab.db"),
		CacheSize:            getEnvInt("MONTH_CACHE_SIZE", 64),
		CacheTTL:             getEnvDuration("MONTH_CACHE_TTL", 5*time.Minute),
		CacheCleanupInterval: getEnvDuration("MONTH_CACHE_CLEANUP_INTERVAL", time.Hour),
		DefaultCurrency:      getEnv("DEFAULT_CURRENCY", "INR"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errs = append(errs, "database path cannot be empty")
	} else if dir := filepath.Dir(c.DBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
			}
		}
	}

	if c.CacheSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errs = append(errs, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.CacheCleanupInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 minute", c.CacheCleanupInterval))
	}

	if len(c.DefaultCurrency) != 3 {
		errs = append(errs, fmt.Sprintf("invalid currency '%s': must be a 3-letter code", c.DefaultCurrency))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
