// Package redis implements the adapter contract for Redis. Redis has no
// transactions in the relational sense; its atomic unit is the batched
// command group, executed as one MULTI/EXEC round trip.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/health"
)

// Engine is the Redis backend.
type Engine struct{}

// NewEngine returns the Redis engine.
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.Redis
}

func (e *Engine) SupportedFeatures() dbcapabilities.FeatureSet {
	return dbcapabilities.MustGet(dbcapabilities.Redis).Features
}

// Connect establishes a client for one Redis database. The database name, if
// set, is the numeric database index.
func (e *Engine) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db := 0
	if config.DatabaseName != "" {
		parsed, err := strconv.Atoi(config.DatabaseName)
		if err != nil {
			return nil, adapter.NewConfigurationError(dbcapabilities.Redis, "database_name",
				fmt.Sprintf("%q is not a numeric database index", config.DatabaseName))
		}
		db = parsed
	}

	opts := &goredis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Username: config.Username,
		Password: config.Password,
		DB:       db,
	}
	if config.ConnectTimeout > 0 {
		opts.DialTimeout = config.ConnectTimeout
	}
	if config.SSL {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, adapter.NewConnectionError(dbcapabilities.Redis, config.Host, config.Port, err)
	}

	return newConnection(e, client, config), nil
}

// HealthCheck probes the backend with a short-lived client.
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
