// Package pool bounds the number of live connections per registered engine
// and hands them out safely under concurrency. Ownership of a
// PooledConnection transfers from pool to caller on Acquire and back on
// Release; a connection that failed mid-operation is closed, never reused.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/safety"
)

// idleConn is a pooled connection waiting for its next caller.
type idleConn struct {
	conn      adapter.Connection
	createdAt time.Time
	idleSince time.Time
}

// Pool manages the live connections of one engine. The hard invariant is that
// no (MaxConnections+1)-th live connection can exist simultaneously, under
// arbitrary concurrent Acquire/Release interleavings; a buffered-channel
// semaphore sized to MaxConnections carries that bound. Acquisition is not
// FIFO.
type Pool struct {
	engineID   string
	engine     adapter.Engine
	connConfig adapter.ConnectionConfig
	config     adapter.PoolConfig
	safety     *safety.SafetyManager
	logger     *zap.Logger

	// sem holds one token per caller-owned connection right. Idle connections
	// do not hold tokens; they are claimed through the semaphore plus the
	// idle list.
	sem  chan struct{}
	done chan struct{}

	// mu guards idle, live and closed. Reads of status take the read lock;
	// no lock is held across backend I/O.
	mu     sync.RWMutex
	idle   []idleConn
	live   int
	closed bool
}

// New creates a pool for one engine. The pool configuration is validated.
func New(engineID string, engine adapter.Engine, connConfig adapter.ConnectionConfig, config adapter.PoolConfig, sm *safety.SafetyManager, logger *zap.Logger) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		engineID:   engineID,
		engine:     engine,
		connConfig: connConfig,
		config:     config,
		safety:     sm,
		logger:     logger.Named("pool").With(zap.String("engine_id", engineID)),
		sem:        make(chan struct{}, config.MaxConnections),
		done:       make(chan struct{}),
	}, nil
}

// EngineID returns the identifier the pool is registered under.
func (p *Pool) EngineID() string {
	return p.engineID
}

// Engine returns the engine the pool opens connections against.
func (p *Pool) Engine() adapter.Engine {
	return p.engine
}

// Config returns the pool sizing.
func (p *Pool) Config() adapter.PoolConfig {
	return p.config
}

// Acquire hands out a connection, waiting until a previously-released one is
// available, a new one can be opened without exceeding MaxConnections, or the
// configured connection timeout elapses.
func (p *Pool) Acquire(ctx context.Context) (*PooledConnection, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.config.ConnectionTimeout)
	defer cancel()

	select {
	case p.sem <- struct{}{}:
	case <-p.done:
		return nil, adapter.ErrPoolClosed
	case <-ctx.Done():
		acquireTimeouts.WithLabelValues(p.engineID).Inc()
		return nil, fmt.Errorf("%w: engine %q after %s", adapter.ErrPoolTimeout, p.engineID, p.config.ConnectionTimeout)
	}

	pc, err := p.claimOrOpen(ctx)
	if err != nil {
		<-p.sem
		return nil, err
	}

	acquireLatency.WithLabelValues(p.engineID).Observe(time.Since(start).Seconds())
	p.publishGauges()
	return pc, nil
}

// claimOrOpen runs with the semaphore token held: reuse the freshest idle
// connection, discarding stale ones, or open a new one. The discard loop is
// bounded by a guard sized to the pool.
func (p *Pool) claimOrOpen(ctx context.Context) (*PooledConnection, error) {
	guard := safety.NewLoopGuard("pool.acquire."+p.engineID, p.config.MaxConnections+1, p.logger)

	for guard.CheckIteration() {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, adapter.ErrPoolClosed
		}
		var candidate *idleConn
		if n := len(p.idle); n > 0 {
			c := p.idle[n-1]
			p.idle = p.idle[:n-1]
			candidate = &c
		}
		p.mu.Unlock()

		if candidate == nil {
			return p.openNew(ctx)
		}

		if p.expired(*candidate) {
			p.closeConn(candidate.conn)
			continue
		}

		return &PooledConnection{
			conn:       candidate.conn,
			pool:       p,
			createdAt:  candidate.createdAt,
			acquiredAt: time.Now(),
		}, nil
	}

	return nil, fmt.Errorf("%w: gave up discarding stale connections for engine %q", adapter.ErrOperationFailed, p.engineID)
}

// expired reports whether an idle connection must be closed instead of reused.
func (p *Pool) expired(c idleConn) bool {
	now := time.Now()
	if p.config.IdleTimeout > 0 && now.Sub(c.idleSince) > p.config.IdleTimeout {
		return true
	}
	if p.config.MaxLifetime > 0 && now.Sub(c.createdAt) > p.config.MaxLifetime {
		return true
	}
	return false
}

// openNew opens a fresh backend connection under the held semaphore token.
func (p *Pool) openNew(ctx context.Context) (*PooledConnection, error) {
	conn, err := p.engine.Connect(ctx, p.connConfig)
	if err != nil {
		return nil, adapter.WrapError(p.engine.Type(), "pool open", err)
	}

	p.mu.Lock()
	p.live++
	p.mu.Unlock()

	now := time.Now()
	return &PooledConnection{
		conn:       conn,
		pool:       p,
		createdAt:  now,
		acquiredAt: now,
	}, nil
}

// release returns a connection to the idle set, or closes it when it is
// broken, too old, or the pool has been drained. The semaphore token is freed
// in every case.
func (p *Pool) release(pc *PooledConnection) {
	defer func() {
		<-p.sem
		p.publishGauges()
	}()

	tooOld := p.config.MaxLifetime > 0 && time.Since(pc.createdAt) > p.config.MaxLifetime

	p.mu.Lock()
	if p.closed || pc.broken || tooOld || !pc.conn.IsConnected() {
		p.mu.Unlock()
		p.closeConn(pc.conn)
		return
	}
	p.idle = append(p.idle, idleConn{
		conn:      pc.conn,
		createdAt: pc.createdAt,
		idleSince: time.Now(),
	})
	p.mu.Unlock()
}

// closeConn physically closes a connection under the pool-operation budget.
// The live count drops only once the close actually completes, so a wedged
// backend close keeps counting against the pool instead of silently
// vanishing. The caller's semaphore token is still freed at the budget; only
// warm-up, which keys off live, stays conservative until the backend lets go.
func (p *Pool) closeConn(conn adapter.Connection) {
	timeout := safety.DefaultTimeoutConfig().PoolOperation
	if p.safety != nil {
		timeout = p.safety.Timeouts().PoolOperation
	}
	done := make(chan struct{})
	go func() {
		if err := conn.Close(); err != nil {
			p.logger.Warn("error closing pooled connection", zap.Error(err))
		}
		p.mu.Lock()
		p.live--
		p.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		p.logger.Warn("closing pooled connection exceeded the pool-operation budget",
			zap.Duration("budget", timeout))
	}
}

// WarmUp pre-opens idle connections until MinConnections are live. Every open
// runs under a semaphore token, the same bound Acquire obeys, so warming a
// pool whose capacity is held by callers stops short instead of exceeding
// MaxConnections. Warming an already-warm pool is a no-op.
func (p *Pool) WarmUp(ctx context.Context) error {
	for i := 0; i < p.config.MinConnections; i++ {
		opened, err := p.warmOne(ctx)
		if err != nil {
			return err
		}
		if !opened {
			break
		}
	}
	p.publishGauges()
	return nil
}

// warmOne opens one idle connection under a semaphore token. It reports false
// without opening when MinConnections are already live or no token is free.
func (p *Pool) warmOne(ctx context.Context) (bool, error) {
	p.mu.RLock()
	warm := p.live >= p.config.MinConnections
	p.mu.RUnlock()
	if warm {
		return false, nil
	}

	select {
	case p.sem <- struct{}{}:
	case <-p.done:
		return false, adapter.ErrPoolClosed
	default:
		return false, nil
	}
	defer func() { <-p.sem }()

	conn, err := p.engine.Connect(ctx, p.connConfig)
	if err != nil {
		return false, adapter.WrapError(p.engine.Type(), "pool warm-up", err)
	}

	now := time.Now()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
		return false, adapter.ErrPoolClosed
	}
	p.live++
	p.idle = append(p.idle, idleConn{conn: conn, createdAt: now, idleSince: now})
	p.mu.Unlock()
	return true, nil
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Live   int `json:"live"`
	Idle   int `json:"idle"`
	InUse  int `json:"inUse"`
	MaxCap int `json:"maxCap"`
}

// Stats returns the current pool counters.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Stats{
		Live:   p.live,
		Idle:   len(p.idle),
		InUse:  p.live - len(p.idle),
		MaxCap: p.config.MaxConnections,
	}
}

// Close drains the pool: waiting acquirers fail with ErrPoolClosed, idle
// connections are closed, and connections still held by callers are closed on
// their release.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	drained := p.idle
	p.idle = nil
	p.mu.Unlock()

	close(p.done)
	for _, c := range drained {
		p.closeConn(c.conn)
	}

	p.logger.Info("pool drained", zap.Int("closed_idle", len(drained)))
	p.publishGauges()
	return nil
}

func (p *Pool) publishGauges() {
	s := p.Stats()
	liveGauge.WithLabelValues(p.engineID).Set(float64(s.Live))
	idleGauge.WithLabelValues(p.engineID).Set(float64(s.Idle))
}

// PooledConnection owns exactly one live backend connection between Acquire
// and Release. It is never shared by two concurrent callers.
type PooledConnection struct {
	conn       adapter.Connection
	pool       *Pool
	createdAt  time.Time
	acquiredAt time.Time

	mu       sync.Mutex
	released bool
	broken   bool
}

// Connection returns the owned backend connection.
func (pc *PooledConnection) Connection() adapter.Connection {
	return pc.conn
}

// AcquiredAt returns when the caller took ownership.
func (pc *PooledConnection) AcquiredAt() time.Time {
	return pc.acquiredAt
}

// MarkBroken flags the connection as possibly corrupted (it failed or timed
// out mid-operation). A broken connection is closed on release instead of
// returning to the idle set.
func (pc *PooledConnection) MarkBroken() {
	pc.mu.Lock()
	pc.broken = true
	pc.mu.Unlock()
}

// Release returns ownership to the pool. Releasing twice is a contract
// violation and reports a validation error without touching the pool.
func (pc *PooledConnection) Release() error {
	pc.mu.Lock()
	if pc.released {
		pc.mu.Unlock()
		return adapter.NewValidationError("release", "connection already released")
	}
	pc.released = true
	pc.mu.Unlock()

	pc.pool.release(pc)
	return nil
}
