package transaction

import (
	"context"

	"go.uber.org/zap"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
)

// Manager opens managed transactions on adapter connections, gating on the
// engine's declared capabilities before touching the backend.
type Manager struct {
	logger *zap.Logger
}

// NewManager creates a transaction manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger.Named("transaction")}
}

// Begin starts a managed transaction on the connection. Engines whose
// capability set lacks transactions are refused up front with an unsupported
// operation error.
func (m *Manager) Begin(ctx context.Context, conn adapter.Connection, opts adapter.TxOptions) (*ManagedTransaction, error) {
	features := conn.Engine().SupportedFeatures()
	dbType := conn.Type()

	if err := adapter.RequireFeature(dbType, features, dbcapabilities.FeatureTransactions, "transactions"); err != nil {
		return nil, err
	}

	backend, err := conn.BeginTransaction(ctx, opts)
	if err != nil {
		return nil, adapter.WrapError(dbType, "begin transaction", err)
	}

	m.logger.Debug("transaction started",
		zap.String("database_type", string(dbType)),
		zap.String("isolation", string(opts.Isolation)),
		zap.Bool("read_only", opts.ReadOnly))

	return newManaged(backend, dbType, features, m.logger), nil
}
