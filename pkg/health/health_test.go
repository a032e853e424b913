package health

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckerOverallStatus(t *testing.T) {
	t.Run("no checks is healthy", func(t *testing.T) {
		c := NewChecker()
		assert.Equal(t, StatusHealthy, c.GetOverallStatus())
	})

	t.Run("all passing is healthy", func(t *testing.T) {
		c := NewChecker()
		c.RunCheck("a", func() error { return nil })
		c.RunCheck("b", func() error { return nil })
		assert.Equal(t, StatusHealthy, c.GetOverallStatus())
	})

	t.Run("partial failure is degraded", func(t *testing.T) {
		c := NewChecker()
		c.RunCheck("a", func() error { return nil })
		c.RunCheck("b", func() error { return errors.New("down") })
		assert.Equal(t, StatusDegraded, c.GetOverallStatus())
	})

	t.Run("total failure is critical", func(t *testing.T) {
		c := NewChecker()
		c.RunCheck("a", func() error { return errors.New("down") })
		assert.Equal(t, StatusCritical, c.GetOverallStatus())
	})
}

func TestSetCheck(t *testing.T) {
	c := NewChecker()
	c.SetCheck("engine", Report{
		Status:    StatusDegraded,
		Latency:   5 * time.Millisecond,
		Error:     "slow",
		CheckedAt: time.Now(),
	})

	checks := c.GetAllChecks()
	assert.Len(t, checks, 1)
	assert.Equal(t, StatusDegraded, checks[0].Status)
	assert.Equal(t, "slow", checks[0].Message)
	assert.Equal(t, StatusDegraded, c.GetOverallStatus())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "healthy", StatusHealthy.String())
	assert.Equal(t, "degraded", StatusDegraded.String())
	assert.Equal(t, "critical", StatusCritical.String())
}
