package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig controls redis client behavior.
// Keep it config-driven; defaults should be safe and conservative.
type RedisConfig struct {
	Addr string

	// Basic timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Pool tuning
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 20
	}
	if out.MinIdleConns < 0 {
		out.MinIdleConns = 0
	}
	if out.PoolTimeout <= 0 {
		out.PoolTimeout = 4 * time.Second
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

var guardReleaseScript = redis.NewScript(`
-- KEYS[1] = guard key
-- ARGV[1] = owner token
-- Delete only if we still own the guard; a TTL-expired guard may have
-- been re-acquired by another webhook delivery.
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// SendGuard serializes a one-shot side effect (e.g. the opening SMS for a
// lead) across concurrent webhook deliveries.
//
// Safety properties:
// - Atomic acquire (SET NX PX).
// - Owner-token release so a slow holder cannot delete a successor's guard.
// - TTL prevents leaked guards on process crash.
type SendGuard interface {
	Acquire(ctx context.Context, key string) (ok bool, release func(), err error)
}

// RedisSendGuard implements SendGuard on a shared Redis client.
type RedisSendGuard struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisSendGuard(client *redis.Client, ttl time.Duration) *RedisSendGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisSendGuard{Client: client, TTL: ttl}
}

func (g *RedisSendGuard) Acquire(ctx context.Context, key string) (bool, func(), error) {
	if g.Client == nil {
		return false, nil, fmt.Errorf("redis client is nil")
	}
	if key == "" {
		return false, nil, fmt.Errorf("key is required")
	}

	owner := uuid.NewString()
	ok, err := g.Client.SetNX(ctx, key, owner, g.TTL).Result()
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, nil
	}

	release := func() {
		// Best-effort; the TTL is the backstop.
		_, _ = guardReleaseScript.Run(context.Background(), g.Client, []string{key}, owner).Result()
	}
	return true, release, nil
}
