package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/safety"
)

// ErrPoolNotFound is returned when no pool is registered for an engine
// identifier.
var ErrPoolNotFound = errors.New("pool not found")

// Manager holds one pool per engine identifier.
type Manager struct {
	safety *safety.SafetyManager
	logger *zap.Logger

	mu    sync.RWMutex
	pools map[string]*Pool
}

// NewManager creates an empty pool manager.
func NewManager(sm *safety.SafetyManager, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		safety: sm,
		logger: logger.Named("pool_manager"),
		pools:  make(map[string]*Pool),
	}
}

// AddEngine registers a pool for the engine under the given identifier. The
// connection configuration is validated first. Registering an identifier twice
// is an error; remove the old pool first.
func (m *Manager) AddEngine(engineID string, engine adapter.Engine, connConfig adapter.ConnectionConfig, poolConfig adapter.PoolConfig) (*Pool, error) {
	if engineID == "" {
		return nil, adapter.NewValidationError("engine_id", "engine identifier cannot be empty")
	}
	if err := connConfig.Validate(); err != nil {
		return nil, err
	}

	p, err := New(engineID, engine, connConfig, poolConfig, m.safety, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pools[engineID]; exists {
		return nil, adapter.NewValidationError("engine_id", fmt.Sprintf("engine %q already has a pool", engineID))
	}
	m.pools[engineID] = p

	m.logger.Info("engine pool registered",
		zap.String("engine_id", engineID),
		zap.String("database_type", string(engine.Type())),
		zap.Int("max_connections", poolConfig.MaxConnections))
	return p, nil
}

// GetPool returns the pool registered under the identifier.
func (m *Manager) GetPool(engineID string) (*Pool, error) {
	m.mu.RLock()
	p, ok := m.pools[engineID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: engine %q", ErrPoolNotFound, engineID)
	}
	return p, nil
}

// Acquire is a convenience for GetPool followed by Pool.Acquire.
func (m *Manager) Acquire(ctx context.Context, engineID string) (*PooledConnection, error) {
	p, err := m.GetPool(engineID)
	if err != nil {
		return nil, err
	}
	return p.Acquire(ctx)
}

// RemoveEngine unregisters the pool and drains it, closing every pooled
// connection before returning.
func (m *Manager) RemoveEngine(engineID string) error {
	m.mu.Lock()
	p, ok := m.pools[engineID]
	if ok {
		delete(m.pools, engineID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: engine %q", ErrPoolNotFound, engineID)
	}

	if err := p.Close(); err != nil {
		return err
	}
	m.logger.Info("engine pool removed", zap.String("engine_id", engineID))
	return nil
}

// List returns the registered engine identifiers.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.pools))
	for id := range m.pools {
		ids = append(ids, id)
	}
	return ids
}

// StatsAll returns per-engine pool counters keyed by engine identifier.
func (m *Manager) StatsAll() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Stats, len(m.pools))
	for id, p := range m.pools {
		out[id] = p.Stats()
	}
	return out
}

// Close drains every registered pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[string]*Pool)
	m.mu.Unlock()

	var firstErr error
	for _, p := range pools {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
