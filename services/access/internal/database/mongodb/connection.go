package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/dbvalue"
)

// Connection wraps one MongoDB client bound to a database.
type Connection struct {
	id     string
	engine *Engine
	client *mongo.Client
	db     *mongo.Database
	config adapter.ConnectionConfig

	closed bool
}

func newConnection(engine *Engine, client *mongo.Client, config adapter.ConnectionConfig) *Connection {
	return &Connection{
		id:     uuid.NewString(),
		engine: engine,
		client: client,
		db:     client.Database(config.DatabaseName),
		config: config,
	}
}

func (c *Connection) ID() string                       { return c.id }
func (c *Connection) Type() dbcapabilities.DatabaseID  { return dbcapabilities.MongoDB }
func (c *Connection) Config() adapter.ConnectionConfig { return c.config }
func (c *Connection) Engine() adapter.Engine           { return c.engine }

func (c *Connection) IsConnected() bool {
	return !c.closed
}

func (c *Connection) Ping(ctx context.Context) error {
	if c.closed {
		return adapter.ErrConnectionClosed
	}
	if err := c.client.Ping(ctx, nil); err != nil {
		return adapter.WrapError(dbcapabilities.MongoDB, "ping", err)
	}
	return nil
}

func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.Disconnect(ctx); err != nil {
		return adapter.WrapError(dbcapabilities.MongoDB, "close", err)
	}
	return nil
}

// Query runs an extended-JSON database command and maps the reply to rows.
// Cursor-bearing replies (find, aggregate) yield one row per document.
func (c *Connection) Query(ctx context.Context, text string, params []dbvalue.Value) (*adapter.QueryResult, error) {
	if c.closed {
		return nil, adapter.ErrConnectionClosed
	}
	return runCommandQuery(ctx, c.db, text)
}

// Execute runs a command and reports its affected-document count from the
// reply's "n" field when present.
func (c *Connection) Execute(ctx context.Context, text string, params []dbvalue.Value) (*adapter.ExecuteResult, error) {
	if c.closed {
		return nil, adapter.ErrConnectionClosed
	}
	return runCommandExec(ctx, c.db, text)
}

// BeginTransaction starts a session-backed transaction. Requires a replica
// set or sharded deployment on the backend side.
func (c *Connection) BeginTransaction(ctx context.Context, opts adapter.TxOptions) (adapter.Transaction, error) {
	if c.closed {
		return nil, adapter.ErrConnectionClosed
	}

	session, err := c.client.StartSession()
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.MongoDB, "begin transaction", err)
	}
	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return nil, adapter.WrapError(dbcapabilities.MongoDB, "begin transaction", err)
	}

	return &Transaction{
		UnsupportedSavepoints: adapter.UnsupportedSavepoints{DBType: dbcapabilities.MongoDB},

		db:      c.db,
		session: session,
		info: adapter.TransactionInfo{
			ID:        uuid.NewString(),
			Isolation: opts.Isolation,
			StartedAt: time.Now(),
			ReadOnly:  opts.ReadOnly,
		},
	}, nil
}

// Prepare: MongoDB has no server-side prepared statements.
func (c *Connection) Prepare(ctx context.Context, text string) (adapter.PreparedStatement, error) {
	return nil, adapter.RequireFeature(dbcapabilities.MongoDB, c.engine.SupportedFeatures(),
		dbcapabilities.FeaturePreparedStatements, "prepared statements")
}

// BeginBatch: MongoDB has real transactions, so it does not declare batched
// command groups.
func (c *Connection) BeginBatch(ctx context.Context) (adapter.CommandBatch, error) {
	return adapter.NewUnsupportedBatch(dbcapabilities.MongoDB), nil
}

// Schema lists the collections of the bound database.
func (c *Connection) Schema(ctx context.Context) (*adapter.SchemaInfo, error) {
	if c.closed {
		return nil, adapter.ErrConnectionClosed
	}

	names, err := c.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.MongoDB, "schema introspection", err)
	}

	info := &adapter.SchemaInfo{
		DatabaseName: c.config.DatabaseName,
		CollectedAt:  time.Now(),
	}
	for _, name := range names {
		info.Tables = append(info.Tables, adapter.TableInfo{Name: name})
	}
	return info, nil
}

func parseCommand(text string) (bson.D, error) {
	var cmd bson.D
	if err := bson.UnmarshalExtJSON([]byte(text), false, &cmd); err != nil {
		return nil, adapter.NewValidationError("command",
			fmt.Sprintf("not a valid extended-JSON command document: %v", err))
	}
	if len(cmd) == 0 {
		return nil, adapter.NewValidationError("command", "empty command document")
	}
	return cmd, nil
}

func runCommandQuery(ctx context.Context, db *mongo.Database, text string) (*adapter.QueryResult, error) {
	cmd, err := parseCommand(text)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var reply bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&reply); err != nil {
		return nil, adapter.WrapError(dbcapabilities.MongoDB, "query",
			fmt.Errorf("%w: %v", adapter.ErrQueryFailed, err))
	}

	result := replyToResult(reply)
	result.Latency = time.Since(start)
	return result, nil
}

func runCommandExec(ctx context.Context, db *mongo.Database, text string) (*adapter.ExecuteResult, error) {
	cmd, err := parseCommand(text)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var reply bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&reply); err != nil {
		return nil, adapter.WrapError(dbcapabilities.MongoDB, "execute",
			fmt.Errorf("%w: %v", adapter.ErrQueryFailed, err))
	}

	affected := int64(1)
	if n, ok := numericField(reply, "n"); ok {
		affected = n
	}
	return &adapter.ExecuteResult{
		RowsAffected: affected,
		Latency:      time.Since(start),
	}, nil
}

// replyToResult maps a command reply onto rows. Cursor replies yield one
// JSON-document row per batch entry; other replies yield the whole reply as
// one document row.
func replyToResult(reply bson.M) *adapter.QueryResult {
	result := &adapter.QueryResult{
		Columns: []adapter.ColumnDescriptor{{Name: "document", DeclaredType: "json"}},
	}

	if cursor, ok := reply["cursor"].(bson.M); ok {
		if batch, ok := cursor["firstBatch"].(bson.A); ok {
			for _, doc := range batch {
				result.Rows = append(result.Rows, adapter.Row{documentValue(doc)})
			}
			return result
		}
	}

	delete(reply, "ok")
	result.Rows = append(result.Rows, adapter.Row{documentValue(reply)})
	return result
}

func documentValue(doc any) dbvalue.Value {
	data, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return dbvalue.String(fmt.Sprintf("%v", doc))
	}
	if v, err := dbvalue.JSON(string(data)); err == nil {
		return v
	}
	return dbvalue.String(string(data))
}

func numericField(doc bson.M, key string) (int64, bool) {
	switch n := doc[key].(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
