package access

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type redisClient interface {
	SAdd(ctx context.Context, key string, members ...any) error
	SRem(ctx context.Context, key string, members ...any) error
	SIsMember(ctx context.Context, key string, member any) (bool, error)
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Del(ctx context.Context, keys ...string) error
	AccessKey(parts ...string) string
}

// RedisStore keeps authorized and banned users in two Redis sets and failed
// attempts in a per-user counter.
type RedisStore struct {
	client        redisClient
	failureWindow time.Duration
}

// NewRedisStore builds a Redis-backed Store. A zero failureWindow keeps
// failed-attempt counters until they are reset.
func NewRedisStore(client redisClient, failureWindow time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client required for access store")
	}
	return &RedisStore{client: client, failureWindow: failureWindow}, nil
}

func (s *RedisStore) authorizedKey() string { return s.client.AccessKey("authorized") }
func (s *RedisStore) bannedKey() string     { return s.client.AccessKey("banned") }
func (s *RedisStore) failedKey(userID string) string {
	return s.client.AccessKey("failed", userID)
}

func (s *RedisStore) IsAuthorized(ctx context.Context, userID string) (bool, error) {
	return s.client.SIsMember(ctx, s.authorizedKey(), userID)
}

func (s *RedisStore) IsBanned(ctx context.Context, userID string) (bool, error) {
	return s.client.SIsMember(ctx, s.bannedKey(), userID)
}

func (s *RedisStore) Authorize(ctx context.Context, userID string) error {
	if err := s.client.SAdd(ctx, s.authorizedKey(), userID); err != nil {
		return fmt.Errorf("authorize user: %w", err)
	}
	return nil
}

func (s *RedisStore) Ban(ctx context.Context, userID string) error {
	if err := s.client.SAdd(ctx, s.bannedKey(), userID); err != nil {
		return fmt.Errorf("ban user: %w", err)
	}
	if err := s.client.SRem(ctx, s.authorizedKey(), userID); err != nil {
		return fmt.Errorf("revoke user: %w", err)
	}
	return nil
}

func (s *RedisStore) IncrementFailures(ctx context.Context, userID string) (int, error) {
	count, err := s.client.IncrWithTTL(ctx, s.failedKey(userID), s.failureWindow)
	if err != nil {
		return 0, fmt.Errorf("count failed attempt: %w", err)
	}
	return int(count), nil
}

func (s *RedisStore) ResetFailures(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.failedKey(userID))
}
