// Package mongodb implements the adapter contract for MongoDB. Statements are
// database commands in extended-JSON form, run through RunCommand; multi-step
// transactions ride on driver sessions.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/health"
)

// Engine is the MongoDB backend.
type Engine struct{}

// NewEngine returns the MongoDB engine.
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Type() dbcapabilities.DatabaseID {
	return dbcapabilities.MongoDB
}

func (e *Engine) SupportedFeatures() dbcapabilities.FeatureSet {
	return dbcapabilities.MustGet(dbcapabilities.MongoDB).Features
}

// Connect establishes a client bound to one database.
func (e *Engine) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.DatabaseName == "" {
		return nil, adapter.NewConfigurationError(dbcapabilities.MongoDB, "database_name", "must not be empty")
	}

	opts := options.Client().ApplyURI(buildURI(config))
	if config.ConnectTimeout > 0 {
		opts.SetConnectTimeout(config.ConnectTimeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, adapter.NewConnectionError(dbcapabilities.MongoDB, config.Host, config.Port, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, adapter.NewConnectionError(dbcapabilities.MongoDB, config.Host, config.Port, err)
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

func buildURI(config adapter.ConnectionConfig) string {
	auth := ""
	if config.Username != "" {
		auth = fmt.Sprintf("%s:%s@", config.Username, config.Password)
	}
	uri := fmt.Sprintf("mongodb://%s%s:%d/%s", auth, config.Host, config.Port, config.DatabaseName)
	if config.SSL {
		uri += "?tls=true"
	}
	return uri
}
