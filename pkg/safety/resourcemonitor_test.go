package safety

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databridge-io/databridge/pkg/adapter"
)

func TestResourceMonitorCeiling(t *testing.T) {
	m := NewResourceMonitor(2, nil)

	require.NoError(t, m.IncrementConnections())
	require.NoError(t, m.IncrementConnections())
	assert.Equal(t, 2, m.CurrentConnections())

	err := m.IncrementConnections()
	assert.True(t, errors.Is(err, adapter.ErrResourceLimitExceeded))
	assert.Equal(t, 2, m.CurrentConnections())

	m.DecrementConnections()
	assert.NoError(t, m.IncrementConnections())
}

func TestResourceMonitorDecrementFloor(t *testing.T) {
	m := NewResourceMonitor(1, nil)
	m.DecrementConnections()
	assert.Equal(t, 0, m.CurrentConnections(), "decrement never goes negative")
}

func TestEmergencyShutdownFlag(t *testing.T) {
	m := NewResourceMonitor(1, nil)

	assert.False(t, m.IsEmergencyShutdown())

	m.TriggerEmergencyShutdown("connection leak detected")
	assert.True(t, m.IsEmergencyShutdown())
	assert.Equal(t, "connection leak detected", m.EmergencyReason())

	// A second trigger keeps the original reason.
	m.TriggerEmergencyShutdown("other")
	assert.Equal(t, "connection leak detected", m.EmergencyReason())

	m.ResetEmergencyShutdown()
	assert.False(t, m.IsEmergencyShutdown())
	assert.Empty(t, m.EmergencyReason())
}
