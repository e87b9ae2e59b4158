package heartbeat

import (
	"context"
	"fmt"
	"time"

	"github.com/KOMKZ/go-fit-framework/logger"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig redis beat store
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// ConnectAttempts startup pings before giving up (default 3)
	ConnectAttempts int `mapstructure:"connect_attempts"`
}

// Validate addr is required
func (c RedisConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.DB, validation.Min(0), validation.Max(15)),
	)
}

func (c *RedisConfig) applyDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "fit:heartbeat"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
}

// RedisChecker beats are keys <prefix>:<scene>:<workerID> with a TTL
type RedisChecker struct {
	client redis.UniversalClient
	prefix string
	log    *logger.CtxZapLogger
}

// NewRedisChecker connects and pings redis
func NewRedisChecker(cfg RedisConfig, log *logger.CtxZapLogger) (*RedisChecker, error) {
	cfg.applyDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	if log == nil {
		log = logger.GetLogger("heartbeat")
	}
	err := probe("redis", cfg.ConnectAttempts, cfg.DialTimeout, log, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis heartbeat ping failed: %w", err)
	}

	log.Debug("Redis heartbeat checker connected", zap.String("addr", cfg.Addr))
	return NewRedisCheckerWithClient(client, cfg.KeyPrefix, log), nil
}

// NewRedisCheckerWithClient wraps an existing client
func NewRedisCheckerWithClient(client redis.UniversalClient, prefix string, log *logger.CtxZapLogger) *RedisChecker {
	if prefix == "" {
		prefix = "fit:heartbeat"
	}
	if log == nil {
		log = logger.GetLogger("heartbeat")
	}
	return &RedisChecker{client: client, prefix: prefix, log: log}
}

func (c *RedisChecker) key(workerID, scene string) string {
	return c.prefix + ":" + scene + ":" + workerID
}

// IsAlive EXISTS on the beat key
func (c *RedisChecker) IsAlive(ctx context.Context, workerID, scene string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(workerID, scene)).Result()
	if err != nil {
		return false, fmt.Errorf("redis heartbeat check %s: %w", workerID, err)
	}
	return n > 0, nil
}

// Beat marks workerID alive under scene for ttl
func (c *RedisChecker) Beat(ctx context.Context, workerID, scene string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(workerID, scene), time.Now().UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("redis heartbeat beat %s: %w", workerID, err)
	}
	return nil
}

// Ping checks the connection
func (c *RedisChecker) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close the client
func (c *RedisChecker) Close() error {
	return c.client.Close()
}
