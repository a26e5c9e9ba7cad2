package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 5 * time.Minute

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LocalLock serialises cycles within one process. It is used when only a
// single instance runs against the spreadsheet.
type LocalLock struct {
	mu sync.Mutex
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

func (l *LocalLock) Release(context.Context) error {
	l.mu.Unlock()
	return nil
}

// redisStore is the slice of pkg/redis the lock needs.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
}

// RedisLock lets one stockledger instance at a time run the sheet cycle. The
// token written under key identifies the holder so an expired lock taken over
// by another instance is never released by us.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case client == nil:
		return nil, errors.New("redis client required for lock")
	case key == "":
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	won, err := l.client.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !won {
		return false, nil
	}
	l.mu.Lock()
	l.token = token
	l.mu.Unlock()
	return true, nil
}

// Release deletes the key only while it still holds our token. If the TTL ran
// out mid-cycle and another instance took the lock, its key is left alone.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == "" {
		return nil
	}
	if _, err := l.client.DeleteIfEquals(ctx, l.key, l.token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	l.token = ""
	return nil
}
