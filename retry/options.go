package retry

import "time"

type config struct {
	maxAttempts int
	backoff     BackoffStrategy
	condition   func(err error) bool
	onRetry     func(attempt int, err error)
	timeout     time.Duration // per attempt; 0 is unbounded
}

func defaultConfig() *config {
	return &config{
		maxAttempts: 3,
		backoff:     ExponentialBackoff(time.Second),
		condition:   func(error) bool { return true },
	}
}

// Option configures Do
type Option func(*config)

// MaxAttempts total attempts including the first (default 3)
func MaxAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// Backoff delay strategy (default exponential from 1s)
func Backoff(b BackoffStrategy) Option {
	return func(c *config) {
		if b != nil {
			c.backoff = b
		}
	}
}

// Condition retry only errors for which cond is true
func Condition(cond func(err error) bool) Option {
	return func(c *config) {
		if cond != nil {
			c.condition = cond
		}
	}
}

// OnRetry called before each backoff wait
func OnRetry(f func(attempt int, err error)) Option {
	return func(c *config) {
		c.onRetry = f
	}
}

// Timeout bounds each attempt
func Timeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}
