package health

import (
	"context"
	"sync"
	"time"
)

// Aggregator runs registered checks concurrently under one timeout
type Aggregator struct {
	mu       sync.RWMutex
	checkers []Checker
	timeout  time.Duration
	metadata map[string]interface{}
}

// NewAggregator timeout <= 0 means 5s
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Aggregator{
		timeout:  timeout,
		metadata: make(map[string]interface{}),
	}
}

// Register adds a check; nil is ignored
func (a *Aggregator) Register(checker Checker) {
	if checker == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkers = append(a.checkers, checker)
}

// SetMetadata attaches a value to every report
func (a *Aggregator) SetMetadata(key string, value interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metadata[key] = value
}

// Check runs every check
func (a *Aggregator) Check(ctx context.Context) *Response {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.mu.RLock()
	checkers := append([]Checker(nil), a.checkers...)
	metadata := make(map[string]interface{}, len(a.metadata))
	for k, v := range a.metadata {
		metadata[k] = v
	}
	a.mu.RUnlock()

	results := make(chan CheckResult, len(checkers))
	for _, checker := range checkers {
		go func(c Checker) {
			results <- checkOne(ctx, c)
		}(checker)
	}

	checks := make(map[string]CheckResult, len(checkers))
	for range checkers {
		r := <-results
		checks[r.Name] = r
	}

	return &Response{
		Status:    overall(checks),
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Checks:    checks,
		Metadata:  metadata,
	}
}

func checkOne(ctx context.Context, checker Checker) CheckResult {
	start := time.Now()
	result := CheckResult{Name: checker.Name(), Timestamp: start}

	err := checker.Check(ctx)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Health check failed"
		return result
	}
	result.Status = StatusHealthy
	result.Message = "OK"
	return result
}

func overall(checks map[string]CheckResult) Status {
	status := StatusHealthy
	for _, r := range checks {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}
