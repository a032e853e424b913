package adapter

import (
	"time"

	"github.com/databridge-io/databridge/pkg/dbcapabilities"
)

// ConnectionConfig contains the configuration for a database connection.
// This is a unified configuration that works across all database types.
type ConnectionConfig struct {
	// Core identifiers
	DatabaseID string `json:"databaseId" yaml:"database_id"`

	// Connection metadata
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Database type, e.g. "postgres", "redis"
	ConnectionType string `json:"connectionType" yaml:"connection_type"`

	// Connection details
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	Username     string `json:"username,omitempty" yaml:"username,omitempty"`
	Password     string `json:"password,omitempty" yaml:"password,omitempty"`
	DatabaseName string `json:"databaseName" yaml:"database_name"`

	// SSL/TLS configuration
	SSL         bool   `json:"ssl,omitempty" yaml:"ssl,omitempty"`
	SSLMode     string `json:"sslMode,omitempty" yaml:"ssl_mode,omitempty"` // verify-full, require, etc.
	SSLCert     string `json:"sslCert,omitempty" yaml:"ssl_cert,omitempty"`
	SSLKey      string `json:"sslKey,omitempty" yaml:"ssl_key,omitempty"`
	SSLRootCert string `json:"sslRootCert,omitempty" yaml:"ssl_root_cert,omitempty"`

	// ConnectTimeout bounds the initial dial and handshake.
	ConnectTimeout time.Duration `json:"connectTimeout,omitempty" yaml:"connect_timeout,omitempty"`

	// Database-specific options (use sparingly)
	Options map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"`
}

// Validate performs the cheap local checks on a connection configuration.
func (c ConnectionConfig) Validate() error {
	dbType := dbcapabilities.DatabaseID(c.ConnectionType)
	if c.ConnectionType == "" {
		return NewConfigurationError(dbType, "connection_type", "must not be empty")
	}
	if _, ok := dbcapabilities.ParseID(c.ConnectionType); !ok {
		return NewConfigurationError(dbType, "connection_type", "unknown database type")
	}
	if c.Host == "" {
		return NewConfigurationError(dbType, "host", "must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return NewConfigurationError(dbType, "port", "must be in 1..65535")
	}
	return nil
}

// PoolConfig sizes one connection pool.
type PoolConfig struct {
	// MaxConnections is the hard ceiling on simultaneously live connections.
	MaxConnections int `json:"maxConnections" yaml:"max_connections"`

	// MinConnections is the number of connections WarmUp pre-opens.
	MinConnections int `json:"minConnections" yaml:"min_connections"`

	// ConnectionTimeout bounds how long Acquire waits for a free connection.
	ConnectionTimeout time.Duration `json:"connectionTimeout" yaml:"connection_timeout"`

	// IdleTimeout: a connection idle longer than this is closed instead of
	// reused on its next acquisition attempt.
	IdleTimeout time.Duration `json:"idleTimeout" yaml:"idle_timeout"`

	// MaxLifetime: a connection older than this is closed instead of reused.
	MaxLifetime time.Duration `json:"maxLifetime" yaml:"max_lifetime"`
}

// DefaultPoolConfig returns the pool sizing used when none is configured.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConnections:    10,
		MinConnections:    2,
		ConnectionTimeout: 10 * time.Second,
		IdleTimeout:       5 * time.Minute,
		MaxLifetime:       30 * time.Minute,
	}
}

// Validate enforces the pool sizing invariants.
func (c PoolConfig) Validate() error {
	if c.MaxConnections <= 0 {
		return NewConfigurationError("", "max_connections", "must be positive")
	}
	if c.MinConnections < 0 {
		return NewConfigurationError("", "min_connections", "must not be negative")
	}
	if c.MinConnections > c.MaxConnections {
		return NewConfigurationError("", "min_connections", "must not exceed max_connections")
	}
	if c.ConnectionTimeout <= 0 {
		return NewConfigurationError("", "connection_timeout", "must be positive")
	}
	return nil
}
