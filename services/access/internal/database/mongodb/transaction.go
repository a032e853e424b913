package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/dbvalue"
)

// Transaction runs commands inside a driver session. MongoDB transactions
// have no savepoints; those operations are refused before any backend I/O.
type Transaction struct {
	adapter.UnsupportedSavepoints

	db      *mongo.Database
	session *mongo.Session
	info    adapter.TransactionInfo
}

func (t *Transaction) Query(ctx context.Context, text string, params []dbvalue.Value) (*adapter.QueryResult, error) {
	return runCommandQuery(mongo.NewSessionContext(ctx, t.session), t.db, text)
}

func (t *Transaction) Execute(ctx context.Context, text string, params []dbvalue.Value) (*adapter.ExecuteResult, error) {
	return runCommandExec(mongo.NewSessionContext(ctx, t.session), t.db, text)
}

func (t *Transaction) Commit(ctx context.Context) error {
	defer t.session.EndSession(ctx)
	if err := t.session.CommitTransaction(ctx); err != nil {
		return adapter.WrapError(dbcapabilities.MongoDB, "commit", err)
	}
	return nil
}

func (t *Transaction) Rollback(ctx context.Context) error {
	defer t.session.EndSession(ctx)
	if err := t.session.AbortTransaction(ctx); err != nil {
		return adapter.WrapError(dbcapabilities.MongoDB, "rollback", err)
	}
	return nil
}

func (t *Transaction) Info() adapter.TransactionInfo {
	return t.info
}
