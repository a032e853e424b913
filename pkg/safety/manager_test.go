package safety

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/dbcapabilities"
)

func testManager(ceiling int) *SafetyManager {
	return NewSafetyManager(
		DefaultTimeoutConfig(),
		NewCircuitBreaker("test", BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, RecoveryTimeout: time.Minute}, nil),
		NewResourceMonitor(ceiling, nil),
		nil,
	)
}

func TestSafeExecuteSuccess(t *testing.T) {
	m := testManager(4)

	ran := false
	err := m.SafeExecute(context.Background(), "op", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 0, m.Monitor().CurrentConnections(), "slot released after success")
}

func TestSafeExecuteReleasesSlotOnFailure(t *testing.T) {
	m := testManager(4)

	err := m.SafeExecute(context.Background(), "op", func(ctx context.Context) error {
		return adapter.ErrQueryFailed
	})
	assert.Error(t, err)
	assert.Equal(t, 0, m.Monitor().CurrentConnections(), "slot released after failure")
}

func TestSafeExecuteTimeout(t *testing.T) {
	m := NewSafetyManager(
		DefaultTimeoutConfig(),
		NewCircuitBreaker("test", DefaultBreakerConfig(), nil),
		NewResourceMonitor(4, nil),
		nil,
	)

	err := m.SafeExecuteWithTimeout(context.Background(), "slow", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFailureClassification(t *testing.T) {
	t.Run("backend errors feed the breaker", func(t *testing.T) {
		m := testManager(4)
		for i := 0; i < 2; i++ {
			_ = m.SafeExecute(context.Background(), "op", func(ctx context.Context) error {
				return adapter.ErrQueryFailed
			})
		}
		assert.Equal(t, StateOpen, m.Breaker().State())
	})

	t.Run("resource rejections do not feed the breaker", func(t *testing.T) {
		m := testManager(0) // ceiling of zero rejects every reservation
		for i := 0; i < 5; i++ {
			err := m.SafeExecute(context.Background(), "op", func(ctx context.Context) error {
				return nil
			})
			assert.True(t, errors.Is(err, adapter.ErrResourceLimitExceeded))
		}
		assert.Equal(t, StateClosed, m.Breaker().State())
	})

	t.Run("nested rejections do not feed the breaker", func(t *testing.T) {
		m := testManager(4)
		for i := 0; i < 5; i++ {
			err := m.SafeExecute(context.Background(), "op", func(ctx context.Context) error {
				return adapter.ErrCircuitOpen
			})
			assert.True(t, errors.Is(err, adapter.ErrCircuitOpen))
		}
		assert.Equal(t, StateClosed, m.Breaker().State())
	})

	t.Run("client errors do not feed the breaker", func(t *testing.T) {
		m := testManager(4)
		for i := 0; i < 5; i++ {
			err := m.SafeExecute(context.Background(), "op", func(ctx context.Context) error {
				return adapter.NewValidationError("query", "malformed command")
			})
			assert.True(t, adapter.IsValidation(err))
		}
		for i := 0; i < 5; i++ {
			err := m.SafeExecute(context.Background(), "op", func(ctx context.Context) error {
				return adapter.NewUnsupportedOperationError(dbcapabilities.Redis, "schema", "key-value store")
			})
			assert.True(t, adapter.IsUnsupported(err))
		}
		assert.Equal(t, StateClosed, m.Breaker().State())
	})
}

func TestSafeExecuteCircuitOpen(t *testing.T) {
	m := testManager(4)
	for i := 0; i < 2; i++ {
		_ = m.SafeExecute(context.Background(), "op", func(ctx context.Context) error {
			return adapter.ErrQueryFailed
		})
	}

	ran := false
	err := m.SafeExecute(context.Background(), "op", func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, errors.Is(err, adapter.ErrCircuitOpen))
	assert.False(t, ran, "open circuit must short-circuit before the operation")
}

func TestSafeExecuteEmergencyShutdown(t *testing.T) {
	m := testManager(4)
	m.Monitor().TriggerEmergencyShutdown("manual halt")

	ran := false
	err := m.SafeExecute(context.Background(), "op", func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, errors.Is(err, adapter.ErrEmergencyShutdown))
	assert.False(t, ran)

	m.Monitor().ResetEmergencyShutdown()
	assert.NoError(t, m.SafeExecute(context.Background(), "op", func(ctx context.Context) error {
		return nil
	}))
}
