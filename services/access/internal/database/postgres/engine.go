// Package postgres implements the adapter contract on top of pgx. Each
// Connection wraps one exclusive pgx session; pooling is handled a layer
// above.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/health"
)

// Engine is the PostgreSQL backend.
type Engine struct{}

// NewEngine returns the PostgreSQL engine.
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.PostgreSQL
}

func (e *Engine) SupportedFeatures() dbcapabilities.FeatureSet {
	return dbcapabilities.MustGet(dbcapabilities.PostgreSQL).Features
}

// Connect establishes a single connection to a PostgreSQL database.
func (e *Engine) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	conn, err := pgx.Connect(ctx, buildConnString(config))
	if err != nil {
		return nil, adapter.NewConnectionError(dbcapabilities.PostgreSQL, config.Host, config.Port, err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, adapter.NewConnectionError(dbcapabilities.PostgreSQL, config.Host, config.Port, err)
	}

	return newConnection(e, conn, config), nil
}

// HealthCheck probes the backend with a short-lived connection.
func (e *Engine) HealthCheck(ctx context.Context, config adapter.ConnectionConfig) health.Report {
	start := time.Now()
	report := health.Report{CheckedAt: start}

	conn, err := e.Connect(ctx, config)
	if err != nil {
		report.Status = health.StatusCritical
		report.Error = err.Error()
		report.Latency = time.Since(start)
		return report
	}
	defer func() { _ = conn.Close() }()

	if err := conn.Ping(ctx); err != nil {
		report.Status = health.StatusCritical
		report.Error = err.Error()
	} else {
		report.Status = health.StatusHealthy
	}
	report.Latency = time.Since(start)
	return report
}

// buildConnString assembles a postgres:// URL from the configuration.
func buildConnString(config adapter.ConnectionConfig) string {
	var connString strings.Builder

	fmt.Fprintf(&connString, "postgres://%s:%s@%s:%d/%s",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.DatabaseName)

	if config.SSL {
		sslMode := config.SSLMode
		if sslMode == "" {
			sslMode = "require"
		}
		fmt.Fprintf(&connString, "?sslmode=%s", sslMode)

		if config.SSLCert != "" && config.SSLKey != "" {
			fmt.Fprintf(&connString, "&sslcert=%s&sslkey=%s", config.SSLCert, config.SSLKey)
		}
		if config.SSLRootCert != "" {
			fmt.Fprintf(&connString, "&sslrootcert=%s", config.SSLRootCert)
		}
	} else {
		connString.WriteString("?sslmode=disable")
	}

	if config.ConnectTimeout > 0 {
		fmt.Fprintf(&connString, "&connect_timeout=%d", int(config.ConnectTimeout.Seconds()))
	}

	return connString.String()
}
