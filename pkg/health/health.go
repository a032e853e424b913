// Package health provides the health status model for engines and an
// aggregating checker for everything the access service monitors.
package health

import (
	"sync"
	"time"
)

// Status is the coarse health classification of a checked component.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusCritical
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Report is the result of a single health probe.
type Report struct {
	Status    Status
	Latency   time.Duration
	Error     string
	CheckedAt time.Time
}

// CheckFunc is a function that performs a health check.
type CheckFunc func() error

// Check represents a single named health check result.
type Check struct {
	Name        string
	Status      Status
	Message     string
	Latency     time.Duration
	LastChecked time.Time
}

// Checker manages health checks for a service.
type Checker struct {
	mu          sync.RWMutex
	checks      map[string]*Check
	lastHealthy time.Time
}

// NewChecker creates a new health checker.
func NewChecker() *Checker {
	return &Checker{
		checks:      make(map[string]*Check),
		lastHealthy: time.Now(),
	}
}

// RunCheck executes a health check and updates the stored status.
func (c *Checker) RunCheck(name string, checkFunc CheckFunc) {
	status := StatusHealthy
	message := "OK"

	start := time.Now()
	if err := checkFunc(); err != nil {
		status = StatusCritical
		message = err.Error()
	}
	latency := time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[name] = &Check{
		Name:        name,
		Status:      status,
		Message:     message,
		Latency:     latency,
		LastChecked: time.Now(),
	}

	// Update last healthy time if all checks pass
	if c.isHealthy() {
		c.lastHealthy = time.Now()
	}
}

// SetCheck records an externally produced report under a name.
func (c *Checker) SetCheck(name string, report Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[name] = &Check{
		Name:        name,
		Status:      report.Status,
		Message:     report.Error,
		Latency:     report.Latency,
		LastChecked: report.CheckedAt,
	}

	if c.isHealthy() {
		c.lastHealthy = time.Now()
	}
}

// GetOverallStatus returns the overall health status: healthy when every check
// passes, critical when every check fails, degraded in between.
func (c *Checker) GetOverallStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.checks) == 0 {
		return StatusHealthy
	}

	criticalCount := 0
	for _, check := range c.checks {
		if check.Status == StatusCritical {
			criticalCount++
		}
	}

	if criticalCount == 0 {
		return StatusHealthy
	} else if criticalCount < len(c.checks) {
		return StatusDegraded
	}

	return StatusCritical
}

// GetAllChecks returns all health check results.
func (c *Checker) GetAllChecks() []*Check {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var checks []*Check
	for _, check := range c.checks {
		checkCopy := *check
		checks = append(checks, &checkCopy)
	}

	return checks
}

// GetLastHealthyTime returns the last time all checks were healthy.
func (c *Checker) GetLastHealthyTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastHealthy
}

func (c *Checker) isHealthy() bool {
	for _, check := range c.checks {
		if check.Status != StatusHealthy {
			return false
		}
	}
	return true
}
