// Package adapter provides the unified interface for all database backends.
// This package defines the contracts that backend-specific implementations
// must follow; callers never branch on a backend's name, only on its declared
// capability set.
package adapter

import (
	"context"

	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/dbvalue"
	"github.com/databridge-io/databridge/pkg/health"
)

// Engine represents a database technology backend. Each database type
// (PostgreSQL, Redis, MongoDB, ...) must implement this interface and
// truthfully report its feature set.
type Engine interface {
	// Type returns the canonical database type identifier.
	Type() dbcapabilities.DatabaseID

	// SupportedFeatures returns the declared capability set. It is pure and
	// performs no I/O.
	SupportedFeatures() dbcapabilities.FeatureSet

	// Connect establishes a connection to a specific database.
	Connect(ctx context.Context, config ConnectionConfig) (Connection, error)

	// HealthCheck probes the backend and reports status with latency and
	// error detail. It never returns an error; failures are carried in the
	// report.
	HealthCheck(ctx context.Context, config ConnectionConfig) health.Report
}

// Connection represents one live, exclusively-owned session against a
// backend. A connection handle is never shared between concurrent callers.
type Connection interface {
	// Identity and status
	ID() string
	Type() dbcapabilities.DatabaseID
	IsConnected() bool

	// Lifecycle management
	Ping(ctx context.Context) error
	Close() error

	// Query runs a row-returning statement or command with positional
	// parameters.
	Query(ctx context.Context, text string, params []dbvalue.Value) (*QueryResult, error)

	// Execute runs a statement that does not return rows.
	Execute(ctx context.Context, text string, params []dbvalue.Value) (*ExecuteResult, error)

	// BeginTransaction starts a backend transaction. It fails with an
	// unsupported-operation error when Transactions is absent from the
	// engine's feature set, before any backend I/O.
	BeginTransaction(ctx context.Context, opts TxOptions) (Transaction, error)

	// Prepare compiles a statement for repeated execution. It fails with an
	// unsupported-operation error when PreparedStatements is absent.
	Prepare(ctx context.Context, text string) (PreparedStatement, error)

	// BeginBatch opens a coarse-atomicity command group on backends that
	// declare BatchedCommands. It is not a transaction: there is no
	// isolation level and no partial rollback.
	BeginBatch(ctx context.Context) (CommandBatch, error)

	// Schema introspects the backend where SchemaIntrospection is declared.
	Schema(ctx context.Context) (*SchemaInfo, error)

	// Config returns the configuration the connection was opened with.
	Config() ConnectionConfig

	// Engine returns the owning engine.
	Engine() Engine
}

// Transaction is a sequence of operations with all-or-nothing commit
// semantics, scoped to one connection. Commit and Rollback each consume the
// handle exactly once; any later call fails with a validation error.
type Transaction interface {
	Query(ctx context.Context, text string, params []dbvalue.Value) (*QueryResult, error)
	Execute(ctx context.Context, text string, params []dbvalue.Value) (*ExecuteResult, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// Savepoint operations fail with an unsupported-operation error when
	// Savepoints is absent from the owning engine's feature set.
	Savepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error

	// Info describes the transaction: identifier, isolation level, start
	// time, open savepoints and read-only flag.
	Info() TransactionInfo
}

// PreparedStatement is a compiled statement bound to one connection. The
// parameter count is validated before any backend I/O.
type PreparedStatement interface {
	Query(ctx context.Context, params []dbvalue.Value) (*QueryResult, error)
	Execute(ctx context.Context, params []dbvalue.Value) (*ExecuteResult, error)

	// ParameterCount returns the number of positional parameters the
	// statement expects.
	ParameterCount() int

	Close() error
}

// CommandBatch is the atomic unit for backends without transactions: a queued
// command group executed as one backend round trip, or discarded. It has no
// isolation concept and cannot be rolled back partially.
type CommandBatch interface {
	// Queue appends a command to the group. Nothing is sent to the backend
	// until Execute.
	Queue(text string, params []dbvalue.Value) error

	// Execute sends the whole group and returns one result per queued
	// command. The batch is consumed either way.
	Execute(ctx context.Context) ([]*ExecuteResult, error)

	// Discard drops the queued commands without touching the backend.
	Discard() error
}

// IsolationLevel mirrors the isolation levels of SQL backends. Backends
// without an isolation concept ignore it.
type IsolationLevel string

const (
	IsolationDefault         IsolationLevel = ""
	IsolationReadUncommitted IsolationLevel = "read uncommitted"
	IsolationReadCommitted   IsolationLevel = "read committed"
	IsolationRepeatableRead  IsolationLevel = "repeatable read"
	IsolationSerializable    IsolationLevel = "serializable"
)

// TxOptions configures a transaction at begin time.
type TxOptions struct {
	Isolation IsolationLevel
	ReadOnly  bool
}
