// Package config loads the service configuration from YAML: the registered
// databases with their pool sizing, the resilience budgets, and logging.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/safety"
)

// Config is the root of the service configuration file.
type Config struct {
	Service   ServiceConfig             `yaml:"service"`
	Databases map[string]DatabaseConfig `yaml:"databases"`
	Safety    SafetyConfig              `yaml:"safety"`
	Logging   LoggingConfig             `yaml:"logging"`
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name string `yaml:"name"`

	// MetricsAddr is where the Prometheus handler listens. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DatabaseConfig couples a backend connection with its pool sizing. The map
// key in Config.Databases is the engine identifier.
type DatabaseConfig struct {
	Connection adapter.ConnectionConfig `yaml:"connection"`
	Pool       adapter.PoolConfig       `yaml:"pool"`

	// WarmUp pre-opens the pool's minimum connections at startup.
	WarmUp bool `yaml:"warm_up"`
}

// SafetyConfig sizes the resilience layer.
type SafetyConfig struct {
	Timeouts safety.TimeoutConfig `yaml:"timeouts"`
	Breaker  safety.BreakerConfig `yaml:"circuit_breaker"`

	// MaxResourceSlots is the ceiling on simultaneously running operations.
	MaxResourceSlots int `yaml:"max_resource_slots"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Development switches to the human-readable console encoder.
	Development bool `yaml:"development"`
}

// Default returns a configuration with every budget and threshold at its
// default, no databases registered.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{Name: "databridge"},
		Safety: SafetyConfig{
			Timeouts:         safety.DefaultTimeoutConfig(),
			Breaker:          safety.DefaultBreakerConfig(),
			MaxResourceSlots: 100,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads and validates the configuration file at path. Missing budgets
// and pool sizes fall back to their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document into a validated configuration.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "databridge"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Safety.MaxResourceSlots <= 0 {
		c.Safety.MaxResourceSlots = 100
	}
	defaults := safety.DefaultTimeoutConfig()
	if c.Safety.Timeouts.Default <= 0 {
		c.Safety.Timeouts.Default = defaults.Default
	}
	if c.Safety.Timeouts.ConnectionAcquire <= 0 {
		c.Safety.Timeouts.ConnectionAcquire = defaults.ConnectionAcquire
	}
	if c.Safety.Timeouts.Query <= 0 {
		c.Safety.Timeouts.Query = defaults.Query
	}
	if c.Safety.Timeouts.PoolOperation <= 0 {
		c.Safety.Timeouts.PoolOperation = defaults.PoolOperation
	}
	if c.Safety.Timeouts.HealthCheck <= 0 {
		c.Safety.Timeouts.HealthCheck = defaults.HealthCheck
	}

	for id, db := range c.Databases {
		if db.Pool.MaxConnections == 0 && db.Pool.ConnectionTimeout == 0 {
			db.Pool = adapter.DefaultPoolConfig()
		} else if db.Pool.ConnectionTimeout == 0 {
			db.Pool.ConnectionTimeout = adapter.DefaultPoolConfig().ConnectionTimeout
		}
		if db.Connection.DatabaseID == "" {
			db.Connection.DatabaseID = id
		}
		c.Databases[id] = db
	}
}

// Validate checks the logging level and every database entry.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}

	for id, db := range c.Databases {
		if err := db.Connection.Validate(); err != nil {
			return fmt.Errorf("databases.%s: %w", id, err)
		}
		if err := db.Pool.Validate(); err != nil {
			return fmt.Errorf("databases.%s: %w", id, err)
		}
	}
	return nil
}
