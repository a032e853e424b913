package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/adapter/adaptertest"
)

func TestManagerAddAndGet(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	engine := adaptertest.NewRelationalEngine()

	p, err := m.AddEngine("primary", engine, testConnConfig(), smallPoolConfig())
	require.NoError(t, err)
	require.NotNil(t, p)

	got, err := m.GetPool("primary")
	require.NoError(t, err)
	assert.Same(t, p, got)

	assert.ElementsMatch(t, []string{"primary"}, m.List())
}

func TestManagerDuplicateEngine(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	engine := adaptertest.NewRelationalEngine()

	_, err := m.AddEngine("primary", engine, testConnConfig(), smallPoolConfig())
	require.NoError(t, err)

	_, err = m.AddEngine("primary", engine, testConnConfig(), smallPoolConfig())
	require.Error(t, err)
	assert.True(t, adapter.IsValidation(err))
}

func TestManagerRejectsInvalidConnectionConfig(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	cfg := testConnConfig()
	cfg.Host = ""

	_, err := m.AddEngine("primary", adaptertest.NewRelationalEngine(), cfg, smallPoolConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrInvalidConfiguration)
}

func TestManagerGetUnknown(t *testing.T) {
	m := NewManager(nil, zap.NewNop())

	_, err := m.GetPool("missing")
	assert.ErrorIs(t, err, ErrPoolNotFound)

	err = m.RemoveEngine("missing")
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestManagerAcquire(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	engine := adaptertest.NewRelationalEngine()
	_, err := m.AddEngine("primary", engine, testConnConfig(), smallPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	pc, err := m.Acquire(context.Background(), "primary")
	require.NoError(t, err)
	assert.Equal(t, 1, engine.LiveConnections())
	require.NoError(t, pc.Release())
}

func TestManagerRemoveEngineDrains(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	engine := adaptertest.NewRelationalEngine()
	p, err := m.AddEngine("primary", engine, testConnConfig(), smallPoolConfig())
	require.NoError(t, err)

	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, pc.Release())
	assert.Equal(t, 1, engine.LiveConnections())

	require.NoError(t, m.RemoveEngine("primary"))
	assert.Equal(t, 0, engine.LiveConnections(), "idle connections are closed on removal")

	_, err = m.GetPool("primary")
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestManagerStatsAll(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	_, err := m.AddEngine("a", adaptertest.NewRelationalEngine(), testConnConfig(), smallPoolConfig())
	require.NoError(t, err)
	_, err = m.AddEngine("b", adaptertest.NewKeyValueEngine(), testConnConfig(), smallPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	pc, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer func() { _ = pc.Release() }()

	stats := m.StatsAll()
	require.Len(t, stats, 2)
	assert.Equal(t, 1, stats["a"].InUse)
	assert.Equal(t, 0, stats["b"].Live)
}

func TestManagerClose(t *testing.T) {
	m := NewManager(nil, zap.NewNop())
	engine := adaptertest.NewRelationalEngine()
	p, err := m.AddEngine("primary", engine, testConnConfig(), smallPoolConfig())
	require.NoError(t, err)

	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, pc.Release())

	require.NoError(t, m.Close())
	assert.Equal(t, 0, engine.LiveConnections())
	assert.Empty(t, m.List())
}
