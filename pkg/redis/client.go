package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/logger"
)

const defaultNamespace = "hpp"

// ErrNotConfigured is returned by a Client that has no connection.
var ErrNotConfigured = errors.New("redis client not configured")

// commands is the subset of go-redis used here; tests substitute a map.
type commands interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Client backs the cron lock, the latest-snapshot cache and idempotent
// replays. Every key it hands out is prefixed with the namespace.
type Client struct {
	cmds      commands
	raw       *redis.Client
	namespace string
}

type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore is the storage used by the HTTP replay middleware.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// New connects and pings. Commands slower than cfg.SlowCommand are logged.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if logg != nil && cfg.SlowCommand > 0 {
		raw.AddHook(slowLog{threshold: cfg.SlowCommand, logg: logg})
	}
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"addr": opts.Addr, "db": opts.DB}), "redis connected")
	}
	return &Client{cmds: raw, raw: raw, namespace: cfg.Namespace}, nil
}

// options merges the URL form with the discrete settings. Values in the URL
// win over the pool and timeout defaults.
func options(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	if url := strings.TrimSpace(cfg.URL); url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
		if opts.DB == 0 {
			opts.DB = cfg.DB
		}
	}
	if opts.Addr == "" {
		return nil, errors.New("redis url or address is required")
	}
	setDefault(&opts.PoolSize, cfg.PoolSize)
	setDefault(&opts.MinIdleConns, cfg.MinIdleConns)
	setDefault(&opts.DialTimeout, cfg.DialTimeout)
	setDefault(&opts.ReadTimeout, cfg.ReadTimeout)
	setDefault(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func setDefault[T comparable](dst *T, value T) {
	var zero T
	if *dst == zero {
		*dst = value
	}
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.cmds == nil {
		return ErrNotConfigured
	}
	return c.cmds.Set(ctx, key, value, ttl).Err()
}

// Get returns redis.Nil, detectable with IsNil, for a missing key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.cmds == nil {
		return "", ErrNotConfigured
	}
	return c.cmds.Get(ctx, key).Result()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.cmds == nil {
		return false, ErrNotConfigured
	}
	return c.cmds.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.cmds == nil {
		return ErrNotConfigured
	}
	if len(keys) == 0 {
		return nil
	}
	return c.cmds.Del(ctx, keys...).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	if c.cmds == nil {
		return ErrNotConfigured
	}
	return c.cmds.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// Raw is the go-redis client for redislock; nil when built around a double.
func (c *Client) Raw() *redis.Client {
	return c.raw
}

func (c *Client) LockKey(parts ...string) string {
	return c.key(append([]string{"lock"}, parts...))
}

func (c *Client) LatestSnapshotKey(recipeID string) string {
	return c.key([]string{"snapshot", "latest", recipeID})
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return c.key([]string{"idempotency", scope, id})
}

func (c *Client) key(parts []string) string {
	ns := strings.TrimSpace(c.namespace)
	if ns == "" {
		ns = defaultNamespace
	}
	var b strings.Builder
	b.WriteString(ns)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

// IsNil reports a missing key.
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// slowLog is a go-redis hook that warns about commands exceeding threshold.
type slowLog struct {
	threshold time.Duration
	logg      *logger.Logger
}

func (h slowLog) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h slowLog) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.report(ctx, cmd.Name(), time.Since(start))
		return err
	}
}

func (h slowLog) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.report(ctx, "pipeline", time.Since(start))
		return err
	}
}

func (h slowLog) report(ctx context.Context, command string, elapsed time.Duration) {
	if elapsed < h.threshold {
		return
	}
	h.logg.Warn(h.logg.WithFields(ctx, map[string]any{
		"command":     command,
		"duration_ms": elapsed.Milliseconds(),
	}), "slow redis command")
}
