package safety

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/databridge-io/databridge/pkg/adapter"
)

// Operation is a unit of work executed under the safety funnel. It must honor
// context cancellation; a timed-out operation is cancelled at its await point.
type Operation func(ctx context.Context) error

// SafetyManager is the single funnel all database calls pass through. Each
// call checks the emergency flag and the circuit breaker, reserves one
// resource slot for its duration, and runs under a time budget; the outcome
// is recorded against the breaker.
type SafetyManager struct {
	timeouts TimeoutConfig
	breaker  *CircuitBreaker
	monitor  *ResourceMonitor
	logger   *zap.Logger
}

// NewSafetyManager wires the resilience primitives together. A nil logger
// disables logging.
func NewSafetyManager(timeouts TimeoutConfig, breaker *CircuitBreaker, monitor *ResourceMonitor, logger *zap.Logger) *SafetyManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SafetyManager{
		timeouts: timeouts,
		breaker:  breaker,
		monitor:  monitor,
		logger:   logger.Named("safety"),
	}
}

// Timeouts returns the configured time budgets.
func (m *SafetyManager) Timeouts() TimeoutConfig {
	return m.timeouts
}

// Breaker returns the circuit breaker.
func (m *SafetyManager) Breaker() *CircuitBreaker {
	return m.breaker
}

// Monitor returns the resource monitor.
func (m *SafetyManager) Monitor() *ResourceMonitor {
	return m.monitor
}

// SafeExecute runs op under the default time budget.
func (m *SafetyManager) SafeExecute(ctx context.Context, operation string, op Operation) error {
	return m.SafeExecuteWithTimeout(ctx, operation, m.timeouts.Default, op)
}

// SafeExecuteWithTimeout runs op under an explicit time budget.
//
// Failure classification: a timeout or backend error counts as a breaker
// failure. A resource-limit or circuit-open rejection is a pre-execution
// rejection and is never recorded, so rejections cannot push the breaker
// further open. Validation and unsupported-operation errors are deterministic
// client errors and are likewise never recorded; a repeated client typo must
// not latch the breaker open.
func (m *SafetyManager) SafeExecuteWithTimeout(ctx context.Context, operation string, timeout time.Duration, op Operation) error {
	if m.monitor.IsEmergencyShutdown() {
		safeExecuteTotal.WithLabelValues(operation, "rejected").Inc()
		return fmt.Errorf("%w: %s", adapter.ErrEmergencyShutdown, m.monitor.EmergencyReason())
	}

	if !m.breaker.CanExecute() {
		safeExecuteTotal.WithLabelValues(operation, "rejected").Inc()
		return fmt.Errorf("%w: operation %q refused", adapter.ErrCircuitOpen, operation)
	}

	if err := m.monitor.IncrementConnections(); err != nil {
		safeExecuteTotal.WithLabelValues(operation, "rejected").Inc()
		return err
	}
	// Slot is released on every exit path.
	defer m.monitor.DecrementConnections()

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := op(opCtx)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		m.breaker.RecordSuccess()
		safeExecuteTotal.WithLabelValues(operation, "success").Inc()
		return nil

	case adapter.IsRejection(err):
		// A nested pre-execution rejection: surface it without feeding the
		// breaker.
		safeExecuteTotal.WithLabelValues(operation, "rejected").Inc()
		return err

	case adapter.IsValidation(err), adapter.IsUnsupported(err):
		// Deterministic client errors carry no signal about backend health.
		safeExecuteTotal.WithLabelValues(operation, "client_error").Inc()
		return err

	case errors.Is(err, context.DeadlineExceeded):
		m.breaker.RecordFailure()
		safeExecuteTotal.WithLabelValues(operation, "timeout").Inc()
		m.logger.Warn("operation timed out",
			zap.String("operation", operation),
			zap.Duration("budget", timeout),
			zap.Duration("elapsed", elapsed),
		)
		return fmt.Errorf("operation %q timed out after %s: %w", operation, timeout, err)

	default:
		m.breaker.RecordFailure()
		safeExecuteTotal.WithLabelValues(operation, "failure").Inc()
		m.logger.Warn("operation failed",
			zap.String("operation", operation),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return err
	}
}
