// Package retry runs an operation until it succeeds, with backoff between
// attempts
package retry

import (
	"context"
	"errors"
	"time"
)

// Do runs operation until it succeeds, attempts run out or ctx ends
func Do(ctx context.Context, operation func(ctx context.Context) error, opts ...Option) error {
	_, err := DoWithData(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	}, opts...)
	return err
}

// DoWithData like Do, returning the data of the successful attempt
func DoWithData[T any](ctx context.Context, operation func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var (
		result T
		errs   []error
	)
	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var err error
		if cfg.timeout > 0 {
			opCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
			result, err = operation(opCtx)
			cancel()
		} else {
			result, err = operation(ctx)
		}
		if err == nil {
			return result, nil
		}
		errs = append(errs, err)

		if !cfg.condition(err) || attempt == cfg.maxAttempts {
			return result, &MultiError{Errors: errs, Attempts: attempt}
		}
		if cfg.onRetry != nil {
			cfg.onRetry(attempt, err)
		}

		backoff := cfg.backoff.Next(attempt)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < backoff {
			return result, &MultiError{Errors: append(errs, context.DeadlineExceeded), Attempts: attempt}
		}

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		}
	}
	return result, &MultiError{Errors: errs, Attempts: cfg.maxAttempts}
}

// GetAttempts attempts made before err was returned
func GetAttempts(err error) int {
	var multiErr *MultiError
	if errors.As(err, &multiErr) {
		return multiErr.Attempts
	}
	return 0
}
