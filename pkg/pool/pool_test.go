package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/adapter/adaptertest"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
	"github.com/databridge-io/databridge/pkg/safety"
)

func testConnConfig() adapter.ConnectionConfig {
	return adapter.ConnectionConfig{
		DatabaseID:     "test-db",
		ConnectionType: string(dbcapabilities.PostgreSQL),
		Host:           "localhost",
		Port:           5432,
		Username:       "app",
		DatabaseName:   "app",
	}
}

func newTestPool(t *testing.T, engine *adaptertest.Engine, config adapter.PoolConfig) *Pool {
	t.Helper()
	p, err := New("test-engine", engine, testConnConfig(), config, nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func smallPoolConfig() adapter.PoolConfig {
	cfg := adapter.DefaultPoolConfig()
	cfg.MaxConnections = 2
	cfg.MinConnections = 0
	cfg.ConnectionTimeout = 200 * time.Millisecond
	return cfg
}

func TestAcquireRelease(t *testing.T) {
	engine := adaptertest.NewRelationalEngine()
	p := newTestPool(t, engine, smallPoolConfig())

	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, pc.Connection().IsConnected())
	assert.Equal(t, 1, engine.LiveConnections())

	stats := p.Stats()
	assert.Equal(t, 1, stats.Live)
	assert.Equal(t, 1, stats.InUse)
	assert.Equal(t, 0, stats.Idle)

	require.NoError(t, pc.Release())

	stats = p.Stats()
	assert.Equal(t, 1, stats.Live)
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 1, stats.Idle)

	// The released connection is reused, not reopened.
	pc2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, engine.OpenedConnections())
	require.NoError(t, pc2.Release())
}

func TestAcquireTimesOutAtCapacity(t *testing.T) {
	engine := adaptertest.NewRelationalEngine()
	p := newTestPool(t, engine, smallPoolConfig())

	pc1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	pc2, err := p.Acquire(context.Background())
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrPoolTimeout)

	require.NoError(t, pc1.Release())
	require.NoError(t, pc2.Release())
}

func TestAcquireWaitsForRelease(t *testing.T) {
	engine := adaptertest.NewRelationalEngine()
	cfg := smallPoolConfig()
	cfg.MaxConnections = 1
	cfg.ConnectionTimeout = 2 * time.Second
	p := newTestPool(t, engine, cfg)

	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		pc2, err := p.Acquire(context.Background())
		if err == nil {
			err = pc2.Release()
		}
		acquired <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, pc.Release())

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiting acquirer never got the released connection")
	}
}

func TestConnectionBoundUnderConcurrency(t *testing.T) {
	engine := adaptertest.NewRelationalEngine()
	cfg := smallPoolConfig()
	cfg.MaxConnections = 5
	cfg.ConnectionTimeout = 5 * time.Second
	p := newTestPool(t, engine, cfg)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pc, err := p.Acquire(context.Background())
			if err != nil {
				return
			}
			time.Sleep(time.Millisecond)
			_ = pc.Release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, engine.PeakConnections(), cfg.MaxConnections,
		"live connections must never exceed the configured maximum")
}

func TestDoubleReleaseFails(t *testing.T) {
	engine := adaptertest.NewRelationalEngine()
	p := newTestPool(t, engine, smallPoolConfig())

	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, pc.Release())

	err = pc.Release()
	require.Error(t, err)
	assert.True(t, adapter.IsValidation(err))

	// The double release must not free a second semaphore token.
	stats := p.Stats()
	assert.Equal(t, 1, stats.Live)
	assert.Equal(t, 1, stats.Idle)
}

func TestBrokenConnectionClosedOnRelease(t *testing.T) {
	engine := adaptertest.NewRelationalEngine()
	p := newTestPool(t, engine, smallPoolConfig())

	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)
	pc.MarkBroken()
	require.NoError(t, pc.Release())

	assert.Equal(t, 0, engine.LiveConnections())
	assert.Equal(t, 0, p.Stats().Idle)

	// The pool itself stays usable.
	pc2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, pc2.Release())
}

func TestIdleTimeoutDiscardsStale(t *testing.T) {
	engine := adaptertest.NewRelationalEngine()
	cfg := smallPoolConfig()
	cfg.IdleTimeout = 20 * time.Millisecond
	p := newTestPool(t, engine, cfg)

	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, pc.Release())

	time.Sleep(50 * time.Millisecond)

	pc2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer func() { _ = pc2.Release() }()

	// The stale connection was closed and a fresh one opened.
	assert.Equal(t, 2, engine.OpenedConnections())
	assert.Equal(t, 1, engine.LiveConnections())
}

func TestMaxLifetimeClosesOnRelease(t *testing.T) {
	engine := adaptertest.NewRelationalEngine()
	cfg := smallPoolConfig()
	cfg.MaxLifetime = 20 * time.Millisecond
	p := newTestPool(t, engine, cfg)

	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, pc.Release())

	assert.Equal(t, 0, engine.LiveConnections())
	assert.Equal(t, 0, p.Stats().Idle)
}

func TestConnectFailurePropagatesAndFreesSlot(t *testing.T) {
	engine := adaptertest.NewRelationalEngine()
	engine.ConnectErr = errors.New("backend refused")
	cfg := smallPoolConfig()
	cfg.MaxConnections = 1
	p := newTestPool(t, engine, cfg)

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, adapter.IsConnectionError(err))

	// The failed attempt must not leak its semaphore token.
	engine.ConnectErr = nil
	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, pc.Release())
}

func TestWarmUp(t *testing.T) {
	engine := adaptertest.NewRelationalEngine()
	cfg := smallPoolConfig()
	cfg.MinConnections = 2
	p := newTestPool(t, engine, cfg)

	require.NoError(t, p.WarmUp(context.Background()))
	assert.Equal(t, 2, engine.LiveConnections())
	assert.Equal(t, 2, p.Stats().Idle)

	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, engine.OpenedConnections(), "warm connections should be reused")
	require.NoError(t, pc.Release())

	// Warming an already-warm pool opens nothing further.
	require.NoError(t, p.WarmUp(context.Background()))
	assert.Equal(t, 2, engine.OpenedConnections())
}

func TestWarmUpWhileSaturatedKeepsBound(t *testing.T) {
	engine := adaptertest.NewRelationalEngine()
	cfg := smallPoolConfig()
	cfg.MinConnections = 2
	p := newTestPool(t, engine, cfg)

	pc1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	pc2, err := p.Acquire(context.Background())
	require.NoError(t, err)

	// Every token is held by a caller, so warming must stop short instead of
	// opening past the maximum.
	require.NoError(t, p.WarmUp(context.Background()))
	assert.LessOrEqual(t, engine.PeakConnections(), cfg.MaxConnections,
		"warm-up must obey the same bound as acquire")
	assert.Equal(t, 2, engine.OpenedConnections())

	require.NoError(t, pc1.Release())
	require.NoError(t, pc2.Release())
}

func TestSlowCloseCountsAsLiveUntilComplete(t *testing.T) {
	engine := adaptertest.NewRelationalEngine()
	engine.CloseDelay = 150 * time.Millisecond

	timeouts := safety.DefaultTimeoutConfig()
	timeouts.PoolOperation = 20 * time.Millisecond
	sm := safety.NewSafetyManager(timeouts,
		safety.NewCircuitBreaker("test", safety.DefaultBreakerConfig(), nil),
		safety.NewResourceMonitor(4, nil),
		nil,
	)

	p, err := New("test-engine", engine, testConnConfig(), smallPoolConfig(), sm, zap.NewNop())
	require.NoError(t, err)

	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)
	pc.MarkBroken()
	require.NoError(t, pc.Release())

	// Release returned at the pool-operation budget; the connection still
	// counts as live until the backend close actually finishes.
	assert.Equal(t, 1, p.Stats().Live)

	require.Eventually(t, func() bool { return p.Stats().Live == 0 },
		time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, engine.LiveConnections())

	engine.CloseDelay = 0
	require.NoError(t, p.Close())
}

func TestCloseDrainsPool(t *testing.T) {
	engine := adaptertest.NewRelationalEngine()
	p := newTestPool(t, engine, smallPoolConfig())

	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, pc.Release())

	require.NoError(t, p.Close())
	assert.Equal(t, 0, engine.LiveConnections())

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, adapter.ErrPoolClosed)

	// Closing again is a no-op.
	require.NoError(t, p.Close())
}

func TestHeldConnectionClosedOnReleaseAfterDrain(t *testing.T) {
	engine := adaptertest.NewRelationalEngine()
	p := newTestPool(t, engine, smallPoolConfig())

	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Close())
	assert.Equal(t, 1, engine.LiveConnections(), "held connection stays open until released")

	require.NoError(t, pc.Release())
	assert.Equal(t, 0, engine.LiveConnections())
}

func TestInvalidPoolConfigRejected(t *testing.T) {
	cfg := adapter.DefaultPoolConfig()
	cfg.MinConnections = 20
	cfg.MaxConnections = 5

	_, err := New("bad", adaptertest.NewRelationalEngine(), testConnConfig(), cfg, nil, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrInvalidConfiguration)
}
