package retry

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy delay before retry number attempt (from 1)
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// BackoffOption tunes ExponentialBackoff
type BackoffOption func(*exponentialBackoff)

// WithMultiplier growth factor (default 2)
func WithMultiplier(m float64) BackoffOption {
	return func(b *exponentialBackoff) {
		if m > 0 {
			b.multiplier = m
		}
	}
}

// WithMaxDelay upper bound (default 30s)
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *exponentialBackoff) {
		if d > 0 {
			b.maxDelay = d
		}
	}
}

// WithJitter random spread as a ratio of the delay, 0..1 (default 0.2)
func WithJitter(ratio float64) BackoffOption {
	return func(b *exponentialBackoff) {
		if ratio >= 0 && ratio <= 1 {
			b.jitter = ratio
		}
	}
}

type exponentialBackoff struct {
	base       time.Duration
	multiplier float64
	maxDelay   time.Duration
	jitter     float64
}

// ExponentialBackoff base * multiplier^(attempt-1), capped and jittered
func ExponentialBackoff(base time.Duration, opts ...BackoffOption) BackoffStrategy {
	b := &exponentialBackoff{
		base:       base,
		multiplier: 2,
		maxDelay:   30 * time.Second,
		jitter:     0.2,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *exponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(b.base) * math.Pow(b.multiplier, float64(attempt-1))
	if delay > float64(b.maxDelay) {
		delay = float64(b.maxDelay)
	}
	if b.jitter > 0 {
		delay += delay * b.jitter * (rand.Float64()*2 - 1)
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

type constantBackoff time.Duration

// ConstantBackoff always d
func ConstantBackoff(d time.Duration) BackoffStrategy {
	return constantBackoff(d)
}

func (c constantBackoff) Next(int) time.Duration {
	return time.Duration(c)
}
