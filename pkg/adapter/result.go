package adapter

import (
	"time"

	"github.com/databridge-io/databridge/pkg/dbvalue"
)

// ColumnDescriptor describes one result column.
type ColumnDescriptor struct {
	Name         string `json:"name"`
	DeclaredType string `json:"declaredType"`
	Nullable     bool   `json:"nullable"`
}

// Row is one ordered sequence of cell values.
type Row []dbvalue.Value

// QueryResult carries the rows produced by a query.
type QueryResult struct {
	Columns []ColumnDescriptor `json:"columns"`
	Rows    []Row              `json:"rows"`

	// TotalCount is the total-row count where the backend can report it
	// cheaply; nil otherwise.
	TotalCount *int64 `json:"totalCount,omitempty"`

	// Latency is the observed execution time.
	Latency time.Duration `json:"latency"`
}

// ExecuteResult carries the outcome of a non-returning statement.
type ExecuteResult struct {
	RowsAffected int64 `json:"rowsAffected"`

	// LastInsertID is the generated identifier where the backend reports one;
	// nil otherwise.
	LastInsertID *int64 `json:"lastInsertId,omitempty"`

	Latency time.Duration `json:"latency"`
}

// TransactionInfo describes an open or finished transaction.
type TransactionInfo struct {
	ID        string         `json:"id"`
	Isolation IsolationLevel `json:"isolation"`
	StartedAt time.Time      `json:"startedAt"`

	// Savepoints is the ordered sequence of currently-open savepoint names.
	// Names are unique within one open transaction.
	Savepoints []string `json:"savepoints"`

	ReadOnly bool `json:"readOnly"`
}

// TableInfo describes one table or collection in a schema.
type TableInfo struct {
	Name    string             `json:"name"`
	Columns []ColumnDescriptor `json:"columns,omitempty"`
}

// SchemaInfo is the introspection result for backends that support it.
type SchemaInfo struct {
	DatabaseName string      `json:"databaseName"`
	Tables       []TableInfo `json:"tables"`
	CollectedAt  time.Time   `json:"collectedAt"`
}
