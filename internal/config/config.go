// Package config loads application configuration from defaults, an optional
// YAML file and IDESK_-prefixed environment variables, in that order.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/incident-desk/internal/domain"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "IDESK_"

// Config is the full application configuration.
type Config struct {
	Server ServerConfig
	Log    LogConfig
	Sweep  SweepConfig
	SLA    SLAConfig
}

// ServerConfig configures the ops HTTP listener (metrics, health, version).
type ServerConfig struct {
	Host        string
	MetricsPort string
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string
	Format string
}

// SweepConfig configures the SLA breach sweep.
type SweepConfig struct {
	Interval time.Duration
}

// SLAConfig holds the per-severity response windows.
type SLAConfig struct {
	Critical time.Duration
	High     time.Duration
	Medium   time.Duration
	Low      time.Duration
}

// Windows returns the configured windows keyed by severity.
func (c SLAConfig) Windows() map[domain.Severity]time.Duration {
	return map[domain.Severity]time.Duration{
		domain.SeverityCritical: c.Critical,
		domain.SeverityHigh:     c.High,
		domain.SeverityMedium:   c.Medium,
		domain.SeverityLow:      c.Low,
	}
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.host":         "0.0.0.0",
		"server.metrics_port": "9090",
		"log.level":           "info",
		"log.format":          "json",
		"sweep.interval":      "5s",
		"sla.critical":        "4h",
		"sla.high":            "8h",
		"sla.medium":          "24h",
		"sla.low":             "48h",
	}
}

// Load reads configuration. The file path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Double underscore separates nesting levels so keys like
	// server.metrics_port stay addressable: IDESK_SERVER__METRICS_PORT.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        k.String("server.host"),
			MetricsPort: k.String("server.metrics_port"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
		Sweep: SweepConfig{
			Interval: k.Duration("sweep.interval"),
		},
		SLA: SLAConfig{
			Critical: k.Duration("sla.critical"),
			High:     k.Duration("sla.high"),
			Medium:   k.Duration("sla.medium"),
			Low:      k.Duration("sla.low"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}

	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.Sweep.Interval)
	}

	for sev, d := range c.SLA.Windows() {
		if d <= 0 {
			return fmt.Errorf("sla window for %s must be positive, got %s", sev, d)
		}
	}

	return nil
}
