package engine

import (
	"context"
	"sync"

	"github.com/databridge-io/databridge/pkg/pool"
	"github.com/databridge-io/databridge/pkg/transaction"
)

// Tx is a managed transaction bound to a pooled connection the handle owns
// exclusively. The connection returns to the pool on the terminal call; a
// failed terminal call closes it instead.
type Tx struct {
	*transaction.ManagedTransaction
	pc *pool.PooledConnection

	releaseOnce sync.Once
}

// Commit commits and returns the connection to the pool.
func (t *Tx) Commit(ctx context.Context) error {
	err := t.ManagedTransaction.Commit(ctx)
	t.release(err)
	return err
}

// Rollback rolls back and returns the connection to the pool.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.ManagedTransaction.Rollback(ctx)
	t.release(err)
	return err
}

func (t *Tx) release(terminalErr error) {
	t.releaseOnce.Do(func() {
		if terminalErr != nil {
			// The backend state is uncertain after a failed terminal call.
			t.pc.MarkBroken()
		}
		_ = t.pc.Release()
	})
}
