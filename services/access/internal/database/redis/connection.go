package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/dbvalue"
)

// Connection wraps one Redis client.
type Connection struct {
	id     string
	engine *Engine
	client *goredis.Client
	config adapter.ConnectionConfig

	closed bool
}

func newConnection(engine *Engine, client *goredis.Client, config adapter.ConnectionConfig) *Connection {
	return &Connection{
		id:     uuid.NewString(),
		engine: engine,
		client: client,
		config: config,
	}
}

func (c *Connection) ID() string                       { return c.id }
func (c *Connection) Type() dbcapabilities.DatabaseID  { return dbcapabilities.Redis }
func (c *Connection) Config() adapter.ConnectionConfig { return c.config }
func (c *Connection) Engine() adapter.Engine           { return c.engine }

func (c *Connection) IsConnected() bool {
	return !c.closed
}

func (c *Connection) Ping(ctx context.Context) error {
	if c.closed {
		return adapter.ErrConnectionClosed
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return adapter.WrapError(dbcapabilities.Redis, "ping", err)
	}
	return nil
}

func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.client.Close(); err != nil {
		return adapter.WrapError(dbcapabilities.Redis, "close", err)
	}
	return nil
}

// Query runs one command and maps its reply to rows. A nil reply (missing
// key) produces an empty result rather than an error.
func (c *Connection) Query(ctx context.Context, text string, params []dbvalue.Value) (*adapter.QueryResult, error) {
	if c.closed {
		return nil, adapter.ErrConnectionClosed
	}

	args, err := buildCommand(text, params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := c.client.Do(ctx, args...).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return &adapter.QueryResult{
				Columns: []adapter.ColumnDescriptor{{Name: "value", Nullable: true}},
				Latency: time.Since(start),
			}, nil
		}
		return nil, adapter.WrapError(dbcapabilities.Redis, "query",
			fmt.Errorf("%w: %v", adapter.ErrQueryFailed, err))
	}

	result := replyToResult(reply)
	result.Latency = time.Since(start)
	return result, nil
}

// Execute runs one command and reports an affected count: integer replies are
// taken verbatim, everything else counts as one.
func (c *Connection) Execute(ctx context.Context, text string, params []dbvalue.Value) (*adapter.ExecuteResult, error) {
	if c.closed {
		return nil, adapter.ErrConnectionClosed
	}

	args, err := buildCommand(text, params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := c.client.Do(ctx, args...).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, adapter.WrapError(dbcapabilities.Redis, "execute",
			fmt.Errorf("%w: %v", adapter.ErrQueryFailed, err))
	}

	affected := int64(1)
	if n, ok := reply.(int64); ok {
		affected = n
	}
	return &adapter.ExecuteResult{
		RowsAffected: affected,
		Latency:      time.Since(start),
	}, nil
}

// BeginTransaction: Redis declares no transaction capability; the refusal
// happens before any backend I/O.
func (c *Connection) BeginTransaction(ctx context.Context, opts adapter.TxOptions) (adapter.Transaction, error) {
	return nil, adapter.RequireFeature(dbcapabilities.Redis, c.engine.SupportedFeatures(),
		dbcapabilities.FeatureTransactions, "transactions")
}

// Prepare: Redis has no server-side prepared statements.
func (c *Connection) Prepare(ctx context.Context, text string) (adapter.PreparedStatement, error) {
	return nil, adapter.RequireFeature(dbcapabilities.Redis, c.engine.SupportedFeatures(),
		dbcapabilities.FeaturePreparedStatements, "prepared statements")
}

// BeginBatch opens a MULTI/EXEC command group.
func (c *Connection) BeginBatch(ctx context.Context) (adapter.CommandBatch, error) {
	if c.closed {
		return nil, adapter.ErrConnectionClosed
	}
	return &Batch{pipe: c.client.TxPipeline()}, nil
}

// Schema: Redis declares no schema introspection.
func (c *Connection) Schema(ctx context.Context) (*adapter.SchemaInfo, error) {
	return nil, adapter.RequireFeature(dbcapabilities.Redis, c.engine.SupportedFeatures(),
		dbcapabilities.FeatureSchemaIntrospection, "schema introspection")
}

// replyToResult maps a command reply onto rows: arrays become one row per
// element, scalars one single-cell row.
func replyToResult(reply any) *adapter.QueryResult {
	result := &adapter.QueryResult{
		Columns: []adapter.ColumnDescriptor{{Name: "value", Nullable: true}},
	}

	switch t := reply.(type) {
	case []any:
		for _, item := range t {
			result.Rows = append(result.Rows, adapter.Row{convertReply(item)})
		}
	default:
		result.Rows = append(result.Rows, adapter.Row{convertReply(reply)})
	}
	return result
}

func convertReply(raw any) dbvalue.Value {
	if raw == nil {
		return dbvalue.Null()
	}
	if v, err := dbvalue.FromNative(raw); err == nil {
		return v
	}
	return dbvalue.String(fmt.Sprintf("%v", raw))
}
