package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/adapter/adaptertest"
	"github.com/databridge-io/databridge/pkg/config"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/health"
)

func testConfig() *config.Config {
	cfg := config.Default()
	pool := adapter.DefaultPoolConfig()
	pool.MaxConnections = 4
	pool.MinConnections = 1
	pool.ConnectionTimeout = time.Second

	cfg.Databases = map[string]config.DatabaseConfig{
		"primary": {
			Connection: adapter.ConnectionConfig{
				DatabaseID:     "primary",
				ConnectionType: string(dbcapabilities.PostgreSQL),
				Host:           "localhost",
				Port:           5432,
				DatabaseName:   "app",
			},
			Pool:   pool,
			WarmUp: true,
		},
		"cache": {
			Connection: adapter.ConnectionConfig{
				DatabaseID:     "cache",
				ConnectionType: string(dbcapabilities.Redis),
				Host:           "localhost",
				Port:           6379,
			},
			Pool: pool,
		},
	}
	return cfg
}

func newTestService(t *testing.T, validator SecurityValidator) (*Service, *adaptertest.Engine, *adaptertest.Engine) {
	t.Helper()

	relational := adaptertest.NewRelationalEngine()
	keyValue := adaptertest.NewKeyValueEngine()

	registry := adapter.NewRegistry()
	registry.Register(relational)
	registry.Register(keyValue)

	svc, err := NewService(testConfig(), registry, validator, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop() })
	return svc, relational, keyValue
}

func TestNewServiceUnknownEngine(t *testing.T) {
	registry := adapter.NewRegistry() // nothing registered

	_, err := NewService(testConfig(), registry, nil, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrEngineNotFound)
}

func TestStartWarmsFlaggedPools(t *testing.T) {
	svc, relational, keyValue := newTestService(t, nil)

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, 1, relational.LiveConnections(), "primary is flagged warm_up")
	assert.Equal(t, 0, keyValue.LiveConnections(), "cache is not")
}

func TestExecuteQuery(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	result, err := svc.ExecuteQuery(context.Background(), "primary", "SELECT 1", nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	echoed, err := result.Rows[0][0].AsString()
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", echoed)
	assert.GreaterOrEqual(t, Snapshot().Queries, int64(1))
}

func TestExecuteCommand(t *testing.T) {
	svc, relational, _ := newTestService(t, nil)

	result, err := svc.ExecuteCommand(context.Background(), "primary", "INSERT INTO t VALUES (1)", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RowsAffected)
	assert.Equal(t, []string{"INSERT INTO t VALUES (1)"}, relational.Committed())
}

func TestEmptyStatementRejected(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.ExecuteQuery(context.Background(), "primary", "   ", nil)
	require.Error(t, err)
	assert.True(t, adapter.IsValidation(err))
}

func TestDenyListValidator(t *testing.T) {
	svc, relational, _ := newTestService(t, DenyListValidator{Denied: []string{"drop table"}})

	_, err := svc.ExecuteCommand(context.Background(), "primary", "DROP TABLE users", nil)
	require.Error(t, err)
	assert.True(t, adapter.IsValidation(err))
	assert.Empty(t, relational.Committed(), "rejected statement never reaches the backend")
}

func TestUnknownEngineID(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.ExecuteQuery(context.Background(), "missing", "SELECT 1", nil)
	require.Error(t, err)
}

func TestBackendFailureClosesConnectionAndFeedsBreaker(t *testing.T) {
	svc, relational, _ := newTestService(t, nil)
	relational.QueryErr = errors.New("backend exploded")

	// Five consecutive failures open the breaker.
	for i := 0; i < 5; i++ {
		_, err := svc.ExecuteQuery(context.Background(), "primary", "SELECT 1", nil)
		require.Error(t, err)
		require.False(t, adapter.IsRejection(err))
	}
	assert.Equal(t, 0, relational.LiveConnections(), "failed connections are closed, not pooled")

	_, err := svc.ExecuteQuery(context.Background(), "primary", "SELECT 1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrCircuitOpen)
}

func TestGetSchema(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	info, err := svc.GetSchema(context.Background(), "primary")
	require.NoError(t, err)
	assert.Equal(t, "app", info.DatabaseName)

	// The key-value engine declares no schema introspection; the refusal
	// happens before a connection is acquired.
	_, err = svc.GetSchema(context.Background(), "cache")
	require.Error(t, err)
	assert.True(t, adapter.IsUnsupported(err))
}

func TestExecuteBatch(t *testing.T) {
	svc, _, keyValue := newTestService(t, nil)

	results, err := svc.ExecuteBatch(context.Background(), "cache", []BatchCommand{
		{Text: "SET a 1"},
		{Text: "SET b 2"},
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, []string{"SET a 1", "SET b 2"}, keyValue.Committed())
}

func TestExecuteBatchRequiresCapability(t *testing.T) {
	svc, relational, _ := newTestService(t, nil)

	_, err := svc.ExecuteBatch(context.Background(), "primary", []BatchCommand{{Text: "INSERT INTO t VALUES (1)"}})
	require.Error(t, err)
	assert.True(t, adapter.IsUnsupported(err))
	assert.Empty(t, relational.Committed())

	_, err = svc.ExecuteBatch(context.Background(), "cache", nil)
	assert.True(t, adapter.IsValidation(err))
}

func TestTransactionLifecycle(t *testing.T) {
	svc, relational, _ := newTestService(t, nil)

	tx, err := svc.BeginTransaction(context.Background(), "primary", adapter.TxOptions{})
	require.NoError(t, err)

	_, err = tx.Execute(context.Background(), "INSERT INTO t VALUES (1)", nil)
	require.NoError(t, err)
	require.NoError(t, tx.Savepoint(context.Background(), "s1"))
	_, err = tx.Execute(context.Background(), "INSERT INTO t VALUES (2)", nil)
	require.NoError(t, err)
	require.NoError(t, tx.RollbackToSavepoint(context.Background(), "s1"))

	require.NoError(t, tx.Commit(context.Background()))
	assert.Equal(t, []string{"INSERT INTO t VALUES (1)"}, relational.Committed())

	// The connection went back to the pool.
	p, err := svc.Pools().GetPool("primary")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stats().InUse)

	// The handle is single-use.
	assert.True(t, adapter.IsValidation(tx.Commit(context.Background())))
}

func TestTransactionRefusedForKeyValueEngine(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.BeginTransaction(context.Background(), "cache", adapter.TxOptions{})
	require.Error(t, err)
	assert.True(t, adapter.IsUnsupported(err))

	// The refusal released the pooled connection.
	p, perr := svc.Pools().GetPool("cache")
	require.NoError(t, perr)
	assert.Equal(t, 0, p.Stats().InUse)
}

func TestHealthCheck(t *testing.T) {
	svc, relational, _ := newTestService(t, nil)

	report, err := svc.HealthCheck(context.Background(), "primary")
	require.NoError(t, err)
	assert.Equal(t, health.StatusHealthy, report.Status)
	assert.Equal(t, health.StatusHealthy, svc.OverallHealth())

	relational.PingErr = errors.New("backend gone")
	report, err = svc.HealthCheck(context.Background(), "primary")
	require.NoError(t, err)
	assert.Equal(t, health.StatusCritical, report.Status)
	assert.NotEqual(t, health.StatusHealthy, svc.OverallHealth())
	assert.NotEmpty(t, svc.Checks())
}

func TestEmergencyShutdownBlocksOperations(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	svc.Safety().Monitor().TriggerEmergencyShutdown("disk on fire")
	_, err := svc.ExecuteQuery(context.Background(), "primary", "SELECT 1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrEmergencyShutdown)

	svc.Safety().Monitor().ResetEmergencyShutdown()
	_, err = svc.ExecuteQuery(context.Background(), "primary", "SELECT 1", nil)
	require.NoError(t, err)
}

func TestFeatures(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	features, err := svc.Features("cache")
	require.NoError(t, err)
	assert.True(t, features.Has(dbcapabilities.FeatureKeyValueStore))
	assert.False(t, features.Has(dbcapabilities.FeatureTransactions))
}
