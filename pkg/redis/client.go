package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/stockledger/pkg/config"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	keyNamespace = "sl"
	accessPrefix = "access"
	lockPrefix   = "lock"
)

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
	SAdd(context.Context, string, ...any) *redis.IntCmd
	SRem(context.Context, string, ...any) *redis.IntCmd
	SIsMember(context.Context, string, any) *redis.BoolCmd
	Eval(context.Context, string, []string, ...any) *redis.Cmd
}

// deleteIfEqualsScript removes KEYS[1] only while it still holds ARGV[1].
const deleteIfEqualsScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Client wraps the redis connection helpers needed by the service.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// New bootstraps a Redis client with pooling/timeouts and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(ctx, "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errors.New("redis client not initialized")
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

// IncrWithTTL increments and ensures the key has the supplied TTL on the first increment.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.store == nil {
		return 0, errors.New("redis client not initialized")
	}
	count, err := c.store.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl > 0 && count == 1 {
		if _, expErr := c.store.Expire(ctx, key, ttl).Result(); expErr != nil {
			return count, expErr
		}
	}
	return count, nil
}

// SAdd adds members to the set stored at key.
func (c *Client) SAdd(ctx context.Context, key string, members ...any) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.SAdd(ctx, key, members...).Err()
}

// SRem removes members from the set stored at key.
func (c *Client) SRem(ctx context.Context, key string, members ...any) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.SRem(ctx, key, members...).Err()
}

// SIsMember reports whether member belongs to the set stored at key.
func (c *Client) SIsMember(ctx context.Context, key string, member any) (bool, error) {
	if c.store == nil {
		return false, errors.New("redis client not initialized")
	}
	return c.store.SIsMember(ctx, key, member).Result()
}

// AccessKey returns a namespaced key for access-gate state.
func (c *Client) AccessKey(parts ...string) string {
	return c.buildKey(append([]string{accessPrefix}, parts...)...)
}

// LockKey returns a namespaced key for distributed job locks.
func (c *Client) LockKey(name string) string {
	return c.buildKey(lockPrefix, name)
}

// Del removes the provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Del(ctx, keys...).Err()
}

// DeleteIfEquals atomically deletes key when its value is still value and
// reports whether it did.
func (c *Client) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	if c.store == nil {
		return false, errors.New("redis client not initialized")
	}
	deleted, err := c.store.Eval(ctx, deleteIfEqualsScript, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Client) buildKey(parts ...string) string {
	if len(parts) == 0 {
		return keyNamespace
	}
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part == "" {
			continue
		}
		clean = append(clean, strings.TrimSpace(part))
	}
	return strings.Join(clean, ":")
}
