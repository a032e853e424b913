// Package transaction layers lifecycle and savepoint discipline on top of the
// backend transaction handles: a transaction is single-use, every terminal
// call flips it into a final state, and the savepoint stack is validated
// before any statement reaches the backend.
package transaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/dbvalue"
)

// State is the lifecycle state of a managed transaction.
type State string

const (
	// StateActive allows statements and savepoint operations.
	StateActive State = "active"
	// StateCommitted is terminal; the transaction was committed.
	StateCommitted State = "committed"
	// StateRolledBack is terminal; the transaction was rolled back.
	StateRolledBack State = "rolled_back"
)

// ManagedTransaction wraps a backend transaction with single-use semantics
// and a validated savepoint stack. All methods are safe for sequential use;
// a transaction is not meant to be shared between goroutines.
type ManagedTransaction struct {
	backend  adapter.Transaction
	dbType   dbcapabilities.DatabaseID
	features dbcapabilities.FeatureSet
	logger   *zap.Logger

	mu         sync.Mutex
	state      State
	savepoints []string
	startedAt  time.Time
}

func newManaged(backend adapter.Transaction, dbType dbcapabilities.DatabaseID, features dbcapabilities.FeatureSet, logger *zap.Logger) *ManagedTransaction {
	return &ManagedTransaction{
		backend:   backend,
		dbType:    dbType,
		features:  features,
		logger:    logger,
		state:     StateActive,
		startedAt: time.Now(),
	}
}

// State returns the current lifecycle state.
func (t *ManagedTransaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Savepoints returns the open savepoint names, oldest first.
func (t *ManagedTransaction) Savepoints() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.savepoints...)
}

// Info returns the backend transaction metadata merged with the managed
// savepoint stack.
func (t *ManagedTransaction) Info() adapter.TransactionInfo {
	info := t.backend.Info()
	t.mu.Lock()
	info.Savepoints = append([]string(nil), t.savepoints...)
	t.mu.Unlock()
	return info
}

// requireActive fails with a validation error when the transaction has
// already reached a terminal state.
func (t *ManagedTransaction) requireActive(operation string) error {
	if t.state != StateActive {
		return adapter.NewValidationError(operation,
			fmt.Sprintf("transaction is %s and cannot be reused", t.state))
	}
	return nil
}

// Query runs a read inside the transaction.
func (t *ManagedTransaction) Query(ctx context.Context, text string, params []dbvalue.Value) (*adapter.QueryResult, error) {
	t.mu.Lock()
	if err := t.requireActive("query"); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.mu.Unlock()

	return t.backend.Query(ctx, text, params)
}

// Execute runs a write inside the transaction.
func (t *ManagedTransaction) Execute(ctx context.Context, text string, params []dbvalue.Value) (*adapter.ExecuteResult, error) {
	t.mu.Lock()
	if err := t.requireActive("execute"); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.mu.Unlock()

	return t.backend.Execute(ctx, text, params)
}

// Commit makes the transaction's effects durable and moves it to its terminal
// state. The state flips even when the backend commit fails; a failed commit
// cannot be retried on the same handle.
func (t *ManagedTransaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	if err := t.requireActive("commit"); err != nil {
		t.mu.Unlock()
		return err
	}
	t.state = StateCommitted
	t.savepoints = nil
	t.mu.Unlock()

	if err := t.backend.Commit(ctx); err != nil {
		return adapter.WrapError(t.dbType, "commit", err)
	}
	t.logger.Debug("transaction committed",
		zap.String("database_type", string(t.dbType)),
		zap.Duration("duration", time.Since(t.startedAt)))
	return nil
}

// Rollback discards the transaction's effects and moves it to its terminal
// state.
func (t *ManagedTransaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	if err := t.requireActive("rollback"); err != nil {
		t.mu.Unlock()
		return err
	}
	t.state = StateRolledBack
	t.savepoints = nil
	t.mu.Unlock()

	if err := t.backend.Rollback(ctx); err != nil {
		return adapter.WrapError(t.dbType, "rollback", err)
	}
	t.logger.Debug("transaction rolled back",
		zap.String("database_type", string(t.dbType)),
		zap.Duration("duration", time.Since(t.startedAt)))
	return nil
}

// Savepoint opens a named savepoint. Names must be unique among the open
// savepoints of this transaction. The capability check runs before any
// backend I/O.
func (t *ManagedTransaction) Savepoint(ctx context.Context, name string) error {
	if err := adapter.RequireFeature(t.dbType, t.features, dbcapabilities.FeatureSavepoints, "savepoint"); err != nil {
		return err
	}
	if name == "" {
		return adapter.NewValidationError("savepoint", "savepoint name cannot be empty")
	}

	t.mu.Lock()
	if err := t.requireActive("savepoint"); err != nil {
		t.mu.Unlock()
		return err
	}
	if t.indexOf(name) >= 0 {
		t.mu.Unlock()
		return adapter.NewValidationError("savepoint",
			fmt.Sprintf("savepoint %q already exists", name))
	}
	t.mu.Unlock()

	if err := t.backend.Savepoint(ctx, name); err != nil {
		return adapter.WrapError(t.dbType, "savepoint", err)
	}

	t.mu.Lock()
	t.savepoints = append(t.savepoints, name)
	t.mu.Unlock()
	return nil
}

// RollbackToSavepoint undoes everything since the named savepoint and
// removes it together with every savepoint opened after it. The transaction
// stays active.
func (t *ManagedTransaction) RollbackToSavepoint(ctx context.Context, name string) error {
	if err := adapter.RequireFeature(t.dbType, t.features, dbcapabilities.FeatureSavepoints, "rollback to savepoint"); err != nil {
		return err
	}

	t.mu.Lock()
	if err := t.requireActive("rollback to savepoint"); err != nil {
		t.mu.Unlock()
		return err
	}
	idx := t.indexOf(name)
	if idx < 0 {
		t.mu.Unlock()
		return adapter.NewValidationError("rollback to savepoint",
			fmt.Sprintf("savepoint %q does not exist", name))
	}
	t.mu.Unlock()

	if err := t.backend.RollbackToSavepoint(ctx, name); err != nil {
		return adapter.WrapError(t.dbType, "rollback to savepoint", err)
	}

	t.mu.Lock()
	t.savepoints = t.savepoints[:idx]
	t.mu.Unlock()
	return nil
}

// ReleaseSavepoint forgets the named savepoint without undoing any work.
// Savepoints opened after it stay on the stack.
func (t *ManagedTransaction) ReleaseSavepoint(ctx context.Context, name string) error {
	if err := adapter.RequireFeature(t.dbType, t.features, dbcapabilities.FeatureSavepoints, "release savepoint"); err != nil {
		return err
	}

	t.mu.Lock()
	if err := t.requireActive("release savepoint"); err != nil {
		t.mu.Unlock()
		return err
	}
	idx := t.indexOf(name)
	if idx < 0 {
		t.mu.Unlock()
		return adapter.NewValidationError("release savepoint",
			fmt.Sprintf("savepoint %q does not exist", name))
	}
	t.mu.Unlock()

	if err := t.backend.ReleaseSavepoint(ctx, name); err != nil {
		return adapter.WrapError(t.dbType, "release savepoint", err)
	}

	t.mu.Lock()
	if i := t.indexOf(name); i >= 0 {
		t.savepoints = append(t.savepoints[:i], t.savepoints[i+1:]...)
	}
	t.mu.Unlock()
	return nil
}

// indexOf is called with t.mu held.
func (t *ManagedTransaction) indexOf(name string) int {
	for i, sp := range t.savepoints {
		if sp == name {
			return i
		}
	}
	return -1
}
