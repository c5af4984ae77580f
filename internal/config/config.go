// Package config handles application configuration and environment loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine configuration. Environment variables override the
// optional YAML file; unset values fall back to defaults.
type Config struct {
	DuckDBPath string `yaml:"duckdb_path"` // backing store path; empty = in-memory
	MetaDBPath string `yaml:"meta_db_path"`
	LogLevel   string `yaml:"log_level"` // debug, info, warn, error (default "info")

	// Rate limiting for the untrusted query path.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	// Retention for uploaded tables; zero disables the sweeper. The YAML
	// field takes a Go duration string ("90m", "24h").
	RetentionTTL      time.Duration `yaml:"-"`
	RetentionTTLRaw   string        `yaml:"retention_ttl"`
	RetentionSchedule string        `yaml:"retention_schedule"`

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string `yaml:"-"`
}

// Defaults applied when neither file nor environment sets a value.
const (
	defaultMetaDBPath        = "tabgate.sqlite"
	defaultRateLimitRPS      = 5.0
	defaultRateLimitBurst    = 10
	defaultRetentionSchedule = "*/5 * * * *"
)

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load builds the configuration from an optional YAML file path and the
// TABGATE_* environment. filePath may be empty.
func Load(filePath string) (*Config, error) {
	cfg := &Config{
		MetaDBPath:        defaultMetaDBPath,
		RateLimitRPS:      defaultRateLimitRPS,
		RateLimitBurst:    defaultRateLimitBurst,
		RetentionSchedule: defaultRetentionSchedule,
	}

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if cfg.RetentionTTLRaw != "" {
		d, err := time.ParseDuration(cfg.RetentionTTLRaw)
		if err != nil {
			return nil, fmt.Errorf("parse retention_ttl: %w", err)
		}
		cfg.RetentionTTL = d
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TABGATE_DUCKDB_PATH"); v != "" {
		c.DuckDBPath = v
	}
	if v := os.Getenv("TABGATE_META_DB_PATH"); v != "" {
		c.MetaDBPath = v
	}
	if v := os.Getenv("TABGATE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("TABGATE_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RateLimitRPS = f
		} else {
			c.Warnings = append(c.Warnings, fmt.Sprintf("invalid TABGATE_RATE_LIMIT_RPS %q, keeping %v", v, c.RateLimitRPS))
		}
	}
	if v := os.Getenv("TABGATE_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimitBurst = n
		} else {
			c.Warnings = append(c.Warnings, fmt.Sprintf("invalid TABGATE_RATE_LIMIT_BURST %q, keeping %d", v, c.RateLimitBurst))
		}
	}
	if v := os.Getenv("TABGATE_RETENTION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RetentionTTL = d
		} else {
			c.Warnings = append(c.Warnings, fmt.Sprintf("invalid TABGATE_RETENTION_TTL %q, retention disabled", v))
		}
	}
	if v := os.Getenv("TABGATE_RETENTION_SCHEDULE"); v != "" {
		c.RetentionSchedule = v
	}
}
