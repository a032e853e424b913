package safety

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState is the three-state lifecycle of a breaker.
type CircuitState int

const (
	// StateClosed: calls flow normally.
	StateClosed CircuitState = iota
	// StateOpen: calls are refused until the recovery timeout elapses.
	StateOpen
	// StateHalfOpen: a limited probe period deciding between recovery and
	// re-opening.
	StateHalfOpen
)

// String returns the lowercase name of the state.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker.
	FailureThreshold int `json:"failureThreshold" yaml:"failure_threshold"`

	// SuccessThreshold is the number of consecutive half-open successes that
	// closes it again.
	SuccessThreshold int `json:"successThreshold" yaml:"success_threshold"`

	// RecoveryTimeout is how long the breaker stays open before allowing a
	// probe.
	RecoveryTimeout time.Duration `json:"recoveryTimeout" yaml:"recovery_timeout"`
}

// DefaultBreakerConfig returns the thresholds used when none are configured.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
	}
}

// CircuitBreaker stops calling a consistently-failing dependency until it
// shows signs of recovery. Rejection reasons (resource limits, an already-open
// circuit) must not be recorded as failures; only execution failures drive the
// state machine.
type CircuitBreaker struct {
	name   string
	config BreakerConfig
	logger *zap.Logger

	mu          sync.Mutex
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewCircuitBreaker creates a breaker in the Closed state. A nil logger
// disables logging.
func NewCircuitBreaker(name string, config BreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = DefaultBreakerConfig().SuccessThreshold
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = DefaultBreakerConfig().RecoveryTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: logger.Named("circuitbreaker"),
		state:  StateClosed,
	}
}

// CanExecute reports whether a call may proceed. While Open it returns false
// until the recovery timeout has elapsed; the first call observing the elapsed
// timeout transitions the breaker to HalfOpen and is admitted as the probe.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(cb.lastFailure) >= cb.config.RecoveryTimeout {
			cb.setState(StateHalfOpen)
			cb.successes = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess registers a successful execution.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
			cb.failures = 0
			cb.successes = 0
		}
	}
}

// RecordFailure registers a failed execution.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.setState(StateOpen)
			cb.lastFailure = time.Now()
		}
	case StateHalfOpen:
		// Any half-open failure re-opens immediately.
		cb.setState(StateOpen)
		cb.lastFailure = time.Now()
		cb.successes = 0
	case StateOpen:
		cb.lastFailure = time.Now()
	}
}

// State returns the current state without transitioning it.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset returns the breaker to Closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.failures = 0
	cb.successes = 0
}

// setState transitions and logs. Caller holds the lock.
func (cb *CircuitBreaker) setState(next CircuitState) {
	if cb.state == next {
		return
	}
	cb.logger.Warn("circuit breaker state change",
		zap.String("breaker", cb.name),
		zap.String("from", cb.state.String()),
		zap.String("to", next.String()),
		zap.Int("consecutive_failures", cb.failures),
	)
	cb.state = next
	breakerStateGauge.WithLabelValues(cb.name).Set(float64(next))
}
