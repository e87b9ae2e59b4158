package heartbeat

import (
	"context"
	"fmt"
	"time"

	"github.com/KOMKZ/go-fit-framework/logger"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// EtcdConfig etcd beat store
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	// ConnectAttempts startup status probes before giving up (default 3)
	ConnectAttempts int `mapstructure:"connect_attempts"`
}

// Validate endpoints are required
func (c EtcdConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Endpoints, validation.Required, validation.Each(validation.Required)),
	)
}

func (c *EtcdConfig) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "/fit/heartbeat"
	}
}

// EtcdChecker beats are lease-bound keys <prefix>/<scene>/<workerID>
type EtcdChecker struct {
	client  *clientv3.Client
	prefix  string
	timeout time.Duration
	log     *logger.CtxZapLogger
}

// NewEtcdChecker connects and probes the first endpoint
func NewEtcdChecker(cfg EtcdConfig, log *logger.CtxZapLogger) (*EtcdChecker, error) {
	cfg.applyDefaults()
	if log == nil {
		log = logger.GetLogger("heartbeat")
	}
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd heartbeat: no endpoints")
	}

	clientCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Logger:      log.GetZapLogger(),
	}
	if cfg.Username != "" {
		clientCfg.Username = cfg.Username
		clientCfg.Password = cfg.Password
	}

	client, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("connect etcd heartbeat store: %w", err)
	}

	err = probe("etcd", cfg.ConnectAttempts, cfg.DialTimeout, log, func(ctx context.Context) error {
		_, err := client.Status(ctx, cfg.Endpoints[0])
		return err
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("etcd heartbeat health check failed: %w", err)
	}

	log.Debug("Etcd heartbeat checker connected", zap.Strings("endpoints", cfg.Endpoints))
	return &EtcdChecker{client: client, prefix: cfg.KeyPrefix, timeout: cfg.DialTimeout, log: log}, nil
}

func (c *EtcdChecker) key(workerID, scene string) string {
	return c.prefix + "/" + scene + "/" + workerID
}

// IsAlive the key exists while its lease is alive
func (c *EtcdChecker) IsAlive(ctx context.Context, workerID, scene string) (bool, error) {
	resp, err := c.client.Get(ctx, c.key(workerID, scene), clientv3.WithCountOnly())
	if err != nil {
		return false, fmt.Errorf("etcd heartbeat check %s: %w", workerID, err)
	}
	return resp.Count > 0, nil
}

// Beat grants a ttl lease and puts the key under it
func (c *EtcdChecker) Beat(ctx context.Context, workerID, scene string, ttl time.Duration) error {
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	lease, err := c.client.Grant(ctx, seconds)
	if err != nil {
		return fmt.Errorf("etcd heartbeat grant lease: %w", err)
	}
	if _, err := c.client.Put(ctx, c.key(workerID, scene), time.Now().Format(time.RFC3339Nano),
		clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("etcd heartbeat beat %s: %w", workerID, err)
	}
	return nil
}

// Ping probes the cluster
func (c *EtcdChecker) Ping(ctx context.Context) error {
	endpoints := c.client.Endpoints()
	if len(endpoints) == 0 {
		return fmt.Errorf("etcd heartbeat: no endpoints")
	}
	_, err := c.client.Status(ctx, endpoints[0])
	return err
}

// Close the client
func (c *EtcdChecker) Close() error {
	c.log.Debug("Close etcd heartbeat connection")
	return c.client.Close()
}
