package safety

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// slowLoopWarnAfter is the wall-clock threshold after which a still-running
// guarded loop is reported once.
const slowLoopWarnAfter = 10 * time.Second

// LoopGuard bounds a retry or poll loop: CheckIteration returns true for the
// first max iterations and false afterwards, so no loop in the codebase can
// run unbounded. It also reports a loop that has been running for more than
// ten seconds of wall-clock time.
type LoopGuard struct {
	name   string
	max    int
	logger *zap.Logger

	mu      sync.Mutex
	count   int
	started time.Time
	warned  bool
}

// NewLoopGuard creates a guard for the named loop. A nil logger disables the
// slow-loop warning.
func NewLoopGuard(name string, max int, logger *zap.Logger) *LoopGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoopGuard{
		name:    name,
		max:     max,
		logger:  logger.Named("loopguard"),
		started: time.Now(),
	}
}

// CheckIteration increments the iteration counter and reports whether the
// loop may continue.
func (g *LoopGuard) CheckIteration() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.count++

	if !g.warned && time.Since(g.started) > slowLoopWarnAfter {
		g.warned = true
		g.logger.Warn("guarded loop still running",
			zap.String("loop", g.name),
			zap.Int("iterations", g.count),
			zap.Duration("elapsed", time.Since(g.started)),
		)
	}

	if g.count > g.max {
		g.logger.Warn("guarded loop exceeded its iteration bound",
			zap.String("loop", g.name),
			zap.Int("max_iterations", g.max),
		)
		return false
	}
	return true
}

// Iterations returns the number of CheckIteration calls so far.
func (g *LoopGuard) Iterations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}
