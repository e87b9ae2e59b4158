// Package health aggregates component health checks
package health

import (
	"time"

	"github.com/KOMKZ/go-fit-framework/component"
)

// Status overall or per-check state
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Checker alias of component.HealthChecker
type Checker = component.HealthChecker

// CheckResult outcome of one check
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Response aggregated report
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Checks    map[string]CheckResult `json:"checks"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// IsHealthy every check passed
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}
