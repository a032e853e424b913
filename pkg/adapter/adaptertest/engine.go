// Package adaptertest provides an in-memory Engine implementation for tests.
// It honors the full adapter contract, including capability gating, savepoint
// semantics and batched command groups, against a process-local statement
// store, so pool, transaction and service behavior can be exercised without a
// live backend.
package adaptertest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/dbvalue"
	"github.com/databridge-io/databridge/pkg/health"
)

// Engine is a fake adapter.Engine backed by an in-memory statement store.
// The zero value is not usable; construct with NewEngine.
type Engine struct {
	dbType   dbcapabilities.DatabaseID
	features dbcapabilities.FeatureSet

	// Failure injection. Set before use; not synchronized against concurrent
	// mutation during a run.
	ConnectErr   error
	ConnectDelay time.Duration
	CloseDelay   time.Duration
	QueryErr     error
	ExecuteErr   error
	PingErr      error

	mu        sync.Mutex
	committed []string
	live      int
	peak      int
	commits   int
	rollbacks int
	opened    int
}

// NewEngine builds a fake engine for the given type and feature set.
func NewEngine(dbType dbcapabilities.DatabaseID, features ...dbcapabilities.Feature) *Engine {
	return &Engine{
		dbType:   dbType,
		features: dbcapabilities.NewFeatureSet(features...),
	}
}

// NewRelationalEngine builds a fake with the full relational feature set.
func NewRelationalEngine() *Engine {
	return NewEngine(dbcapabilities.PostgreSQL,
		dbcapabilities.FeatureTransactions,
		dbcapabilities.FeatureSavepoints,
		dbcapabilities.FeaturePreparedStatements,
		dbcapabilities.FeatureSchemaIntrospection,
	)
}

// NewKeyValueEngine builds a fake with key-value semantics: no transactions,
// batched command groups only.
func NewKeyValueEngine() *Engine {
	return NewEngine(dbcapabilities.Redis,
		dbcapabilities.FeatureKeyValueStore,
		dbcapabilities.FeatureBatchedCommands,
	)
}

func (e *Engine) Type() dbcapabilities.DatabaseID { return e.dbType }

func (e *Engine) SupportedFeatures() dbcapabilities.FeatureSet { return e.features }

func (e *Engine) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	if e.ConnectDelay > 0 {
		select {
		case <-time.After(e.ConnectDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.ConnectErr != nil {
		return nil, adapter.NewConnectionError(e.dbType, config.Host, config.Port, e.ConnectErr)
	}

	e.mu.Lock()
	e.live++
	e.opened++
	if e.live > e.peak {
		e.peak = e.live
	}
	e.mu.Unlock()

	return &Conn{
		id:        uuid.NewString(),
		engine:    e,
		config:    config,
		createdAt: time.Now(),
	}, nil
}

func (e *Engine) HealthCheck(ctx context.Context, config adapter.ConnectionConfig) health.Report {
	start := time.Now()
	report := health.Report{Status: health.StatusHealthy, CheckedAt: start}
	if e.PingErr != nil {
		report.Status = health.StatusCritical
		report.Error = e.PingErr.Error()
	}
	report.Latency = time.Since(start)
	return report
}

// Committed returns the statements applied to the store, in order.
func (e *Engine) Committed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.committed))
	copy(out, e.committed)
	return out
}

// LiveConnections returns the number of currently open connections.
func (e *Engine) LiveConnections() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live
}

// PeakConnections returns the maximum number of simultaneously open
// connections observed.
func (e *Engine) PeakConnections() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peak
}

// OpenedConnections returns the total number of connections ever opened.
func (e *Engine) OpenedConnections() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opened
}

// CommitCalls returns how many backend commits were executed.
func (e *Engine) CommitCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commits
}

// RollbackCalls returns how many backend rollbacks were executed.
func (e *Engine) RollbackCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rollbacks
}

func (e *Engine) apply(statements []string) {
	e.mu.Lock()
	e.committed = append(e.committed, statements...)
	e.mu.Unlock()
}

func (e *Engine) closeConn() {
	e.mu.Lock()
	e.live--
	e.mu.Unlock()
}

// Conn is the fake connection handle.
type Conn struct {
	id        string
	engine    *Engine
	config    adapter.ConnectionConfig
	createdAt time.Time

	mu     sync.Mutex
	closed bool
}

func (c *Conn) ID() string                       { return c.id }
func (c *Conn) Type() dbcapabilities.DatabaseID  { return c.engine.dbType }
func (c *Conn) Config() adapter.ConnectionConfig { return c.config }
func (c *Conn) Engine() adapter.Engine           { return c.engine }

func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *Conn) Ping(ctx context.Context) error {
	if !c.IsConnected() {
		return adapter.ErrConnectionClosed
	}
	return c.engine.PingErr
}

func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.engine.CloseDelay > 0 {
		time.Sleep(c.engine.CloseDelay)
	}
	c.engine.closeConn()
	return nil
}

func (c *Conn) Query(ctx context.Context, text string, params []dbvalue.Value) (*adapter.QueryResult, error) {
	if !c.IsConnected() {
		return nil, adapter.ErrConnectionClosed
	}
	if c.engine.QueryErr != nil {
		return nil, adapter.WrapError(c.engine.dbType, "query", c.engine.QueryErr)
	}

	// Echo the statement back as a single row so callers can assert on it.
	return &adapter.QueryResult{
		Columns: []adapter.ColumnDescriptor{{Name: "statement", DeclaredType: "text"}},
		Rows:    []adapter.Row{{dbvalue.String(text)}},
	}, nil
}

func (c *Conn) Execute(ctx context.Context, text string, params []dbvalue.Value) (*adapter.ExecuteResult, error) {
	if !c.IsConnected() {
		return nil, adapter.ErrConnectionClosed
	}
	if c.engine.ExecuteErr != nil {
		return nil, adapter.WrapError(c.engine.dbType, "execute", c.engine.ExecuteErr)
	}

	c.engine.apply([]string{text})
	return &adapter.ExecuteResult{RowsAffected: 1}, nil
}

func (c *Conn) BeginTransaction(ctx context.Context, opts adapter.TxOptions) (adapter.Transaction, error) {
	if err := adapter.RequireFeature(c.engine.dbType, c.engine.features, dbcapabilities.FeatureTransactions, "transactions"); err != nil {
		return nil, err
	}
	if !c.IsConnected() {
		return nil, adapter.ErrConnectionClosed
	}

	return &Tx{
		conn: c,
		info: adapter.TransactionInfo{
			ID:        uuid.NewString(),
			Isolation: opts.Isolation,
			StartedAt: time.Now(),
			ReadOnly:  opts.ReadOnly,
		},
	}, nil
}

func (c *Conn) Prepare(ctx context.Context, text string) (adapter.PreparedStatement, error) {
	if err := adapter.RequireFeature(c.engine.dbType, c.engine.features, dbcapabilities.FeaturePreparedStatements, "prepared statements"); err != nil {
		return nil, err
	}
	if !c.IsConnected() {
		return nil, adapter.ErrConnectionClosed
	}

	return &Stmt{conn: c, text: text, paramCount: strings.Count(text, "?")}, nil
}

func (c *Conn) BeginBatch(ctx context.Context) (adapter.CommandBatch, error) {
	if !c.engine.features.Has(dbcapabilities.FeatureBatchedCommands) {
		return adapter.NewUnsupportedBatch(c.engine.dbType), nil
	}
	return &Batch{conn: c}, nil
}

func (c *Conn) Schema(ctx context.Context) (*adapter.SchemaInfo, error) {
	if err := adapter.RequireFeature(c.engine.dbType, c.engine.features, dbcapabilities.FeatureSchemaIntrospection, "schema introspection"); err != nil {
		return nil, err
	}
	return &adapter.SchemaInfo{
		DatabaseName: c.config.DatabaseName,
		CollectedAt:  time.Now(),
	}, nil
}

// savepointMark is an entry in the transaction op log marking an open
// savepoint. Ops after the mark are discarded by a rollback to it.
type savepointMark struct {
	name string
}

type txOp struct {
	statement string
	mark      *savepointMark
}

// Tx is the fake transaction: an op log applied to the engine store on
// commit. A second terminal call fails the way a real backend would.
type Tx struct {
	conn *Conn
	info adapter.TransactionInfo

	mu   sync.Mutex
	ops  []txOp
	done bool
}

func (t *Tx) Query(ctx context.Context, text string, params []dbvalue.Value) (*adapter.QueryResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, adapter.WrapError(t.conn.engine.dbType, "query", adapter.ErrTransactionFailed)
	}
	return &adapter.QueryResult{
		Columns: []adapter.ColumnDescriptor{{Name: "statement", DeclaredType: "text"}},
		Rows:    []adapter.Row{{dbvalue.String(text)}},
	}, nil
}

func (t *Tx) Execute(ctx context.Context, text string, params []dbvalue.Value) (*adapter.ExecuteResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, adapter.WrapError(t.conn.engine.dbType, "execute", adapter.ErrTransactionFailed)
	}
	t.ops = append(t.ops, txOp{statement: text})
	return &adapter.ExecuteResult{RowsAffected: 1}, nil
}

func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return adapter.WrapError(t.conn.engine.dbType, "commit", adapter.ErrTransactionFailed)
	}
	t.done = true
	statements := make([]string, 0, len(t.ops))
	for _, op := range t.ops {
		if op.mark == nil {
			statements = append(statements, op.statement)
		}
	}
	t.mu.Unlock()

	t.conn.engine.apply(statements)
	t.conn.engine.mu.Lock()
	t.conn.engine.commits++
	t.conn.engine.mu.Unlock()
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return adapter.WrapError(t.conn.engine.dbType, "rollback", adapter.ErrTransactionFailed)
	}
	t.done = true
	t.ops = nil
	t.mu.Unlock()

	t.conn.engine.mu.Lock()
	t.conn.engine.rollbacks++
	t.conn.engine.mu.Unlock()
	return nil
}

func (t *Tx) Savepoint(ctx context.Context, name string) error {
	if err := adapter.RequireFeature(t.conn.engine.dbType, t.conn.engine.features, dbcapabilities.FeatureSavepoints, "savepoint"); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return adapter.WrapError(t.conn.engine.dbType, "savepoint", adapter.ErrTransactionFailed)
	}
	t.ops = append(t.ops, txOp{mark: &savepointMark{name: name}})
	t.info.Savepoints = append(t.info.Savepoints, name)
	return nil
}

func (t *Tx) RollbackToSavepoint(ctx context.Context, name string) error {
	if err := adapter.RequireFeature(t.conn.engine.dbType, t.conn.engine.features, dbcapabilities.FeatureSavepoints, "rollback to savepoint"); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return adapter.WrapError(t.conn.engine.dbType, "rollback to savepoint", adapter.ErrTransactionFailed)
	}
	for i, op := range t.ops {
		if op.mark != nil && op.mark.name == name {
			t.ops = t.ops[:i]
			t.truncateSavepoints(name)
			return nil
		}
	}
	return adapter.WrapError(t.conn.engine.dbType, "rollback to savepoint",
		adapter.NewValidationError("rollback to savepoint", "savepoint '"+name+"' does not exist"))
}

func (t *Tx) ReleaseSavepoint(ctx context.Context, name string) error {
	if err := adapter.RequireFeature(t.conn.engine.dbType, t.conn.engine.features, dbcapabilities.FeatureSavepoints, "release savepoint"); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return adapter.WrapError(t.conn.engine.dbType, "release savepoint", adapter.ErrTransactionFailed)
	}
	for i, op := range t.ops {
		if op.mark != nil && op.mark.name == name {
			// Release keeps the ops; only the mark disappears.
			t.ops = append(t.ops[:i], t.ops[i+1:]...)
			t.removeSavepoint(name)
			return nil
		}
	}
	return adapter.WrapError(t.conn.engine.dbType, "release savepoint",
		adapter.NewValidationError("release savepoint", "savepoint '"+name+"' does not exist"))
}

func (t *Tx) truncateSavepoints(name string) {
	for i, sp := range t.info.Savepoints {
		if sp == name {
			t.info.Savepoints = t.info.Savepoints[:i]
			return
		}
	}
}

func (t *Tx) removeSavepoint(name string) {
	for i, sp := range t.info.Savepoints {
		if sp == name {
			t.info.Savepoints = append(t.info.Savepoints[:i], t.info.Savepoints[i+1:]...)
			return
		}
	}
}

func (t *Tx) Info() adapter.TransactionInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	info := t.info
	info.Savepoints = append([]string(nil), t.info.Savepoints...)
	return info
}

// Stmt is the fake prepared statement. The parameter count is the number of
// '?' placeholders in the text.
type Stmt struct {
	conn       *Conn
	text       string
	paramCount int
	closed     bool
}

func (s *Stmt) ParameterCount() int { return s.paramCount }

func (s *Stmt) Query(ctx context.Context, params []dbvalue.Value) (*adapter.QueryResult, error) {
	if err := s.checkParams(params); err != nil {
		return nil, err
	}
	return s.conn.Query(ctx, s.text, params)
}

func (s *Stmt) Execute(ctx context.Context, params []dbvalue.Value) (*adapter.ExecuteResult, error) {
	if err := s.checkParams(params); err != nil {
		return nil, err
	}
	return s.conn.Execute(ctx, s.text, params)
}

func (s *Stmt) checkParams(params []dbvalue.Value) error {
	if s.closed {
		return adapter.NewValidationError("prepared statement", "statement is closed")
	}
	if len(params) != s.paramCount {
		return adapter.NewValidationError("prepared statement",
			"parameter count mismatch")
	}
	return nil
}

func (s *Stmt) Close() error {
	s.closed = true
	return nil
}

// Batch is the fake command group: queued statements applied to the store in
// one step on Execute, or dropped by Discard.
type Batch struct {
	conn *Conn

	mu       sync.Mutex
	queued   []string
	consumed bool
}

func (b *Batch) Queue(text string, params []dbvalue.Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed {
		return adapter.NewValidationError("batch", "command group already consumed")
	}
	b.queued = append(b.queued, text)
	return nil
}

func (b *Batch) Execute(ctx context.Context) ([]*adapter.ExecuteResult, error) {
	b.mu.Lock()
	if b.consumed {
		b.mu.Unlock()
		return nil, adapter.NewValidationError("batch", "command group already consumed")
	}
	b.consumed = true
	statements := b.queued
	b.mu.Unlock()

	b.conn.engine.apply(statements)
	results := make([]*adapter.ExecuteResult, len(statements))
	for i := range statements {
		results[i] = &adapter.ExecuteResult{RowsAffected: 1}
	}
	return results, nil
}

func (b *Batch) Discard() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed {
		return adapter.NewValidationError("batch", "command group already consumed")
	}
	b.consumed = true
	b.queued = nil
	return nil
}
