// Package safety makes every call into the pool and the backend adapters
// bounded in time and bounded in blast radius: operation timeouts, a circuit
// breaker, loop iteration guards and a live-resource ceiling, all funneled
// through SafetyManager.SafeExecute.
package safety

import "time"

// TimeoutConfig carries the distinct time budgets of the core's operation
// classes. Any operation exceeding its budget is cancelled and reported as a
// timeout, never silently retried.
type TimeoutConfig struct {
	// Default bounds operations without a more specific budget.
	Default time.Duration `json:"default" yaml:"default"`

	// ConnectionAcquire bounds taking a connection out of a pool.
	ConnectionAcquire time.Duration `json:"connectionAcquire" yaml:"connection_acquire"`

	// Query bounds statement execution.
	Query time.Duration `json:"query" yaml:"query"`

	// PoolOperation bounds pool bookkeeping (release, drain, status).
	PoolOperation time.Duration `json:"poolOperation" yaml:"pool_operation"`

	// HealthCheck bounds backend probes.
	HealthCheck time.Duration `json:"healthCheck" yaml:"health_check"`
}

// DefaultTimeoutConfig returns the budgets used when none are configured.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Default:           30 * time.Second,
		ConnectionAcquire: 10 * time.Second,
		Query:             60 * time.Second,
		PoolOperation:     5 * time.Second,
		HealthCheck:       3 * time.Second,
	}
}
