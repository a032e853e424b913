package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/dbvalue"
)

// Transaction wraps a pgx transaction. Savepoints use the SQL SAVEPOINT
// commands with sanitized identifiers.
type Transaction struct {
	tx   pgx.Tx
	info adapter.TransactionInfo
}

func (t *Transaction) Query(ctx context.Context, text string, params []dbvalue.Value) (*adapter.QueryResult, error) {
	return runQuery(ctx, t.tx, text, params)
}

func (t *Transaction) Execute(ctx context.Context, text string, params []dbvalue.Value) (*adapter.ExecuteResult, error) {
	return runExec(ctx, t.tx, text, params)
}

func (t *Transaction) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return adapter.WrapError(dbcapabilities.PostgreSQL, "commit", err)
	}
	return nil
}

func (t *Transaction) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil {
		return adapter.WrapError(dbcapabilities.PostgreSQL, "rollback", err)
	}
	return nil
}

func (t *Transaction) Savepoint(ctx context.Context, name string) error {
	if _, err := t.tx.Exec(ctx, "SAVEPOINT "+quoteIdent(name)); err != nil {
		return adapter.WrapError(dbcapabilities.PostgreSQL, "savepoint", err)
	}
	t.info.Savepoints = append(t.info.Savepoints, name)
	return nil
}

func (t *Transaction) RollbackToSavepoint(ctx context.Context, name string) error {
	if _, err := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+quoteIdent(name)); err != nil {
		return adapter.WrapError(dbcapabilities.PostgreSQL, "rollback to savepoint", err)
	}
	for i, sp := range t.info.Savepoints {
		if sp == name {
			t.info.Savepoints = t.info.Savepoints[:i]
			break
		}
	}
	return nil
}

func (t *Transaction) ReleaseSavepoint(ctx context.Context, name string) error {
	if _, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+quoteIdent(name)); err != nil {
		return adapter.WrapError(dbcapabilities.PostgreSQL, "release savepoint", err)
	}
	for i, sp := range t.info.Savepoints {
		if sp == name {
			t.info.Savepoints = append(t.info.Savepoints[:i], t.info.Savepoints[i+1:]...)
			break
		}
	}
	return nil
}

func (t *Transaction) Info() adapter.TransactionInfo {
	info := t.info
	info.Savepoints = append([]string(nil), t.info.Savepoints...)
	return info
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
