package safety

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/databridge-io/databridge/pkg/adapter"
)

// ResourceMonitor tracks the live-connection count against a configured
// ceiling and carries the process-wide emergency-shutdown flag. The flag
// exists to convert an undetected resource leak or runaway loop into an
// immediate, visible halt instead of a slow degradation; once set, only
// ResetEmergencyShutdown recovers.
type ResourceMonitor struct {
	maxConnections int
	logger         *zap.Logger

	mu        sync.RWMutex
	current   int
	emergency bool
	reason    string
}

// NewResourceMonitor creates a monitor with the given live-connection ceiling.
// A nil logger disables logging.
func NewResourceMonitor(maxConnections int, logger *zap.Logger) *ResourceMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceMonitor{
		maxConnections: maxConnections,
		logger:         logger.Named("resourcemonitor"),
	}
}

// IncrementConnections reserves one connection slot. It refuses with a
// resource-limit error once the ceiling is hit.
func (m *ResourceMonitor) IncrementConnections() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current >= m.maxConnections {
		m.logger.Warn("connection ceiling hit",
			zap.Int("ceiling", m.maxConnections),
		)
		return fmt.Errorf("%w: %d live connections", adapter.ErrResourceLimitExceeded, m.current)
	}
	m.current++
	resourceSlotsGauge.Set(float64(m.current))
	return nil
}

// DecrementConnections releases one connection slot.
func (m *ResourceMonitor) DecrementConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current > 0 {
		m.current--
	}
	resourceSlotsGauge.Set(float64(m.current))
}

// CurrentConnections returns the number of reserved slots.
func (m *ResourceMonitor) CurrentConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// TriggerEmergencyShutdown sets the fatal flag. Every subsequent SafeExecute
// fails immediately regardless of circuit state.
func (m *ResourceMonitor) TriggerEmergencyShutdown(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.emergency {
		return
	}
	m.emergency = true
	m.reason = reason
	m.logger.Error("emergency shutdown triggered", zap.String("reason", reason))
}

// ResetEmergencyShutdown clears the fatal flag. This is the manual
// intervention path; nothing clears the flag automatically.
func (m *ResourceMonitor) ResetEmergencyShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.emergency = false
	m.reason = ""
	m.logger.Warn("emergency shutdown reset")
}

// IsEmergencyShutdown reports whether the fatal flag is set.
func (m *ResourceMonitor) IsEmergencyShutdown() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.emergency
}

// EmergencyReason returns the reason recorded when the flag was set.
func (m *ResourceMonitor) EmergencyReason() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reason
}
