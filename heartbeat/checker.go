// Package heartbeat answers "is this worker still alive" for the registry's
// expiry path. Workers (or their sidecars) publish beats under a scene tag;
// the registry asks before evicting a worker whose lease ran out.
package heartbeat

import (
	"context"
	"fmt"
	"time"

	"github.com/KOMKZ/go-fit-framework/logger"
	"github.com/KOMKZ/go-fit-framework/retry"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
)

// Checker backend types
const (
	TypeNone  = "none"
	TypeRedis = "redis"
	TypeEtcd  = "etcd"
)

// Checker liveness source
type Checker interface {
	// IsAlive reports whether workerID has a current beat under scene
	IsAlive(ctx context.Context, workerID, scene string) (bool, error)
	Close() error
}

// Publisher writes beats; implemented by the backed checkers
type Publisher interface {
	Beat(ctx context.Context, workerID, scene string, ttl time.Duration) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context, workerID, scene string) (bool, error)

// IsAlive calls f
func (f CheckerFunc) IsAlive(ctx context.Context, workerID, scene string) (bool, error) {
	return f(ctx, workerID, scene)
}

// Close no-op
func (f CheckerFunc) Close() error { return nil }

// NoopChecker never confirms liveness, so lease expiry alone decides
type NoopChecker struct{}

// IsAlive always false
func (NoopChecker) IsAlive(context.Context, string, string) (bool, error) { return false, nil }

// Close no-op
func (NoopChecker) Close() error { return nil }

// Config heartbeat section
type Config struct {
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
	Etcd  EtcdConfig  `mapstructure:"etcd"`
}

// Validate checks the section of the selected backend only
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.In(TypeNone, TypeRedis, TypeEtcd)),
		validation.Field(&c.Redis, validation.Skip.When(c.Type != TypeRedis)),
		validation.Field(&c.Etcd, validation.Skip.When(c.Type != TypeEtcd)),
	)
}

// New builds the checker selected by cfg.Type
func New(cfg Config, log *logger.CtxZapLogger) (Checker, error) {
	if log == nil {
		log = logger.GetLogger("heartbeat")
	}
	switch cfg.Type {
	case "", TypeNone:
		return NoopChecker{}, nil
	case TypeRedis:
		return NewRedisChecker(cfg.Redis, log)
	case TypeEtcd:
		return NewEtcdChecker(cfg.Etcd, log)
	default:
		return nil, fmt.Errorf("unknown heartbeat type: %s", cfg.Type)
	}
}

// connectBackoff between startup probes of a beat store
var connectBackoff = retry.ExponentialBackoff(200*time.Millisecond, retry.WithMaxDelay(2*time.Second))

// probe runs check until the store answers, at most attempts times, each
// bounded by timeout
func probe(store string, attempts int, timeout time.Duration, log *logger.CtxZapLogger, check func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = 3
	}
	return retry.Do(context.Background(), check,
		retry.MaxAttempts(attempts),
		retry.Timeout(timeout),
		retry.Backoff(connectBackoff),
		retry.OnRetry(func(attempt int, err error) {
			log.Warn("Heartbeat store not reachable, retrying",
				zap.String("store", store),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}),
	)
}
