package adapter

import (
	"context"

	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/dbvalue"
)

// RequireFeature returns an unsupported-operation error when the feature is
// absent from the set. Adapters call this before any backend I/O so capability
// mismatches fail fast and deterministically.
func RequireFeature(dbType dbcapabilities.DatabaseID, features dbcapabilities.FeatureSet, f dbcapabilities.Feature, operation string) error {
	if features.Has(f) {
		return nil
	}
	return NewUnsupportedOperationError(dbType, operation, "feature '"+string(f)+"' is not declared by this engine")
}

// UnsupportedBatch is a nil object pattern for backends that don't support
// batched command groups.
type UnsupportedBatch struct {
	dbType dbcapabilities.DatabaseID
}

func (u *UnsupportedBatch) Queue(text string, params []dbvalue.Value) error {
	return NewUnsupportedOperationError(u.dbType, "batched commands", "")
}

func (u *UnsupportedBatch) Execute(ctx context.Context) ([]*ExecuteResult, error) {
	return nil, NewUnsupportedOperationError(u.dbType, "batched commands", "")
}

func (u *UnsupportedBatch) Discard() error {
	return NewUnsupportedOperationError(u.dbType, "batched commands", "")
}

// NewUnsupportedBatch creates a new unsupported command batch.
func NewUnsupportedBatch(dbType dbcapabilities.DatabaseID) CommandBatch {
	return &UnsupportedBatch{dbType: dbType}
}

// UnsupportedSavepoints provides the savepoint family for transactions on
// backends whose feature set excludes Savepoints. Adapters embed it so every
// savepoint call fails before reaching the backend.
type UnsupportedSavepoints struct {
	DBType dbcapabilities.DatabaseID
}

func (u UnsupportedSavepoints) Savepoint(ctx context.Context, name string) error {
	return NewUnsupportedOperationError(u.DBType, "savepoint", "")
}

func (u UnsupportedSavepoints) RollbackToSavepoint(ctx context.Context, name string) error {
	return NewUnsupportedOperationError(u.DBType, "rollback to savepoint", "")
}

func (u UnsupportedSavepoints) ReleaseSavepoint(ctx context.Context, name string) error {
	return NewUnsupportedOperationError(u.DBType, "release savepoint", "")
}
