package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/dbvalue"
)

// Connection is one exclusive pgx session.
type Connection struct {
	id     string
	engine *Engine
	conn   *pgx.Conn
	config adapter.ConnectionConfig
}

func newConnection(engine *Engine, conn *pgx.Conn, config adapter.ConnectionConfig) *Connection {
	return &Connection{
		id:     uuid.NewString(),
		engine: engine,
		conn:   conn,
		config: config,
	}
}

func (c *Connection) ID() string                       { return c.id }
func (c *Connection) Type() dbcapabilities.DatabaseID  { return dbcapabilities.PostgreSQL }
func (c *Connection) Config() adapter.ConnectionConfig { return c.config }
func (c *Connection) Engine() adapter.Engine           { return c.engine }

func (c *Connection) IsConnected() bool {
	return !c.conn.IsClosed()
}

func (c *Connection) Ping(ctx context.Context) error {
	if c.conn.IsClosed() {
		return adapter.ErrConnectionClosed
	}
	if err := c.conn.Ping(ctx); err != nil {
		return adapter.WrapError(dbcapabilities.PostgreSQL, "ping", err)
	}
	return nil
}

func (c *Connection) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.conn.Close(ctx); err != nil {
		return adapter.WrapError(dbcapabilities.PostgreSQL, "close", err)
	}
	return nil
}

func (c *Connection) Query(ctx context.Context, text string, params []dbvalue.Value) (*adapter.QueryResult, error) {
	if c.conn.IsClosed() {
		return nil, adapter.ErrConnectionClosed
	}
	return runQuery(ctx, c.conn, text, params)
}

func (c *Connection) Execute(ctx context.Context, text string, params []dbvalue.Value) (*adapter.ExecuteResult, error) {
	if c.conn.IsClosed() {
		return nil, adapter.ErrConnectionClosed
	}
	return runExec(ctx, c.conn, text, params)
}

func (c *Connection) BeginTransaction(ctx context.Context, opts adapter.TxOptions) (adapter.Transaction, error) {
	if c.conn.IsClosed() {
		return nil, adapter.ErrConnectionClosed
	}

	pgxOpts := pgx.TxOptions{IsoLevel: isoLevel(opts.Isolation)}
	if opts.ReadOnly {
		pgxOpts.AccessMode = pgx.ReadOnly
	}

	tx, err := c.conn.BeginTx(ctx, pgxOpts)
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.PostgreSQL, "begin transaction", err)
	}

	return &Transaction{
		tx: tx,
		info: adapter.TransactionInfo{
			ID:        uuid.NewString(),
			Isolation: opts.Isolation,
			StartedAt: time.Now(),
			ReadOnly:  opts.ReadOnly,
		},
	}, nil
}

func (c *Connection) Prepare(ctx context.Context, text string) (adapter.PreparedStatement, error) {
	if c.conn.IsClosed() {
		return nil, adapter.ErrConnectionClosed
	}

	name := "stmt_" + uuid.NewString()
	sd, err := c.conn.Prepare(ctx, name, text)
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.PostgreSQL, "prepare", err)
	}

	return &Statement{
		conn:       c,
		name:       name,
		paramCount: len(sd.ParamOIDs),
	}, nil
}

// BeginBatch: PostgreSQL has real transactions, so it does not declare
// batched command groups.
func (c *Connection) BeginBatch(ctx context.Context) (adapter.CommandBatch, error) {
	return adapter.NewUnsupportedBatch(dbcapabilities.PostgreSQL), nil
}

// Schema lists the tables and columns of the public schema.
func (c *Connection) Schema(ctx context.Context) (*adapter.SchemaInfo, error) {
	if c.conn.IsClosed() {
		return nil, adapter.ErrConnectionClosed
	}

	rows, err := c.conn.Query(ctx, `
		SELECT table_name, column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position`)
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.PostgreSQL, "schema introspection", err)
	}
	defer rows.Close()

	info := &adapter.SchemaInfo{
		DatabaseName: c.config.DatabaseName,
		CollectedAt:  time.Now(),
	}
	byTable := map[string]int{}

	for rows.Next() {
		var table, column, dataType, nullable string
		if err := rows.Scan(&table, &column, &dataType, &nullable); err != nil {
			return nil, adapter.WrapError(dbcapabilities.PostgreSQL, "schema introspection", err)
		}
		idx, ok := byTable[table]
		if !ok {
			idx = len(info.Tables)
			byTable[table] = idx
			info.Tables = append(info.Tables, adapter.TableInfo{Name: table})
		}
		info.Tables[idx].Columns = append(info.Tables[idx].Columns, adapter.ColumnDescriptor{
			Name:         column,
			DeclaredType: dataType,
			Nullable:     nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(dbcapabilities.PostgreSQL, "schema introspection", err)
	}
	return info, nil
}

func isoLevel(level adapter.IsolationLevel) pgx.TxIsoLevel {
	switch level {
	case adapter.IsolationReadUncommitted:
		return pgx.ReadUncommitted
	case adapter.IsolationReadCommitted:
		return pgx.ReadCommitted
	case adapter.IsolationRepeatableRead:
		return pgx.RepeatableRead
	case adapter.IsolationSerializable:
		return pgx.Serializable
	default:
		return ""
	}
}

// pgExecutor abstracts *pgx.Conn and pgx.Tx for shared statement execution.
type pgExecutor interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func runQuery(ctx context.Context, q pgExecutor, text string, params []dbvalue.Value) (*adapter.QueryResult, error) {
	start := time.Now()

	rows, err := q.Query(ctx, text, dbvalue.Natives(params)...)
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.PostgreSQL, "query",
			fmt.Errorf("%w: %v", adapter.ErrQueryFailed, err))
	}
	defer rows.Close()

	result := &adapter.QueryResult{}
	for _, fd := range rows.FieldDescriptions() {
		result.Columns = append(result.Columns, adapter.ColumnDescriptor{
			Name:         fd.Name,
			DeclaredType: fmt.Sprintf("oid:%d", fd.DataTypeOID),
			Nullable:     true,
		})
	}

	for rows.Next() {
		raw, err := rows.Values()
		if err != nil {
			return nil, adapter.WrapError(dbcapabilities.PostgreSQL, "query",
				fmt.Errorf("%w: %v", adapter.ErrQueryFailed, err))
		}
		row := make(adapter.Row, len(raw))
		for i, cell := range raw {
			row[i] = convertCell(cell)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, adapter.WrapError(dbcapabilities.PostgreSQL, "query",
			fmt.Errorf("%w: %v", adapter.ErrQueryFailed, err))
	}

	result.Latency = time.Since(start)
	return result, nil
}

func runExec(ctx context.Context, q pgExecutor, text string, params []dbvalue.Value) (*adapter.ExecuteResult, error) {
	start := time.Now()

	tag, err := q.Exec(ctx, text, dbvalue.Natives(params)...)
	if err != nil {
		return nil, adapter.WrapError(dbcapabilities.PostgreSQL, "execute",
			fmt.Errorf("%w: %v", adapter.ErrQueryFailed, err))
	}

	return &adapter.ExecuteResult{
		RowsAffected: tag.RowsAffected(),
		Latency:      time.Since(start),
	}, nil
}

// convertCell maps a pgx-decoded value into the tagged value model. Unhandled
// driver types degrade to their string form rather than failing the row.
func convertCell(raw any) dbvalue.Value {
	if raw == nil {
		return dbvalue.Null()
	}
	if v, err := dbvalue.FromNative(raw); err == nil {
		return v
	}
	return dbvalue.String(fmt.Sprintf("%v", raw))
}
