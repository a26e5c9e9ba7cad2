package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestIncrWithTTLSetsExpiryOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	count, err := client.IncrWithTTL(ctx, "attempts", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected counter 1 got %d", count)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expected expire for first increment")
	}

	count, err = client.IncrWithTTL(ctx, "attempts", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected counter 2 got %d", count)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expire should not be set again")
	}
}

func TestSetMembership(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	key := client.AccessKey("authorized")
	if err := client.SAdd(ctx, key, "42"); err != nil {
		t.Fatalf("sadd failed: %v", err)
	}
	ok, err := client.SIsMember(ctx, key, "42")
	if err != nil || !ok {
		t.Fatalf("expected member, ok=%v err=%v", ok, err)
	}
	if err := client.SRem(ctx, key, "42"); err != nil {
		t.Fatalf("srem failed: %v", err)
	}
	ok, err = client.SIsMember(ctx, key, "42")
	if err != nil || ok {
		t.Fatalf("expected member removed, ok=%v err=%v", ok, err)
	}
}

func TestDeleteIfEqualsOnlyDropsMatchingValue(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.LockKey("sheet-reconcile")

	if ok, err := client.SetNX(ctx, key, "owner-a", time.Minute); err != nil || !ok {
		t.Fatalf("setnx failed: ok=%v err=%v", ok, err)
	}
	deleted, err := client.DeleteIfEquals(ctx, key, "owner-b")
	if err != nil || deleted {
		t.Fatalf("foreign token must not delete, deleted=%v err=%v", deleted, err)
	}
	if _, held := mock.data[key]; !held {
		t.Fatal("lock dropped by foreign token")
	}
	deleted, err = client.DeleteIfEquals(ctx, key, "owner-a")
	if err != nil || !deleted {
		t.Fatalf("owner token should delete, deleted=%v err=%v", deleted, err)
	}
	if _, held := mock.data[key]; held {
		t.Fatal("lock still present after owner delete")
	}
	if len(mock.scripts) != 2 || mock.scripts[0] != deleteIfEqualsScript {
		t.Fatalf("expected both deletes to run the compare-and-delete script, got %d", len(mock.scripts))
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error without store")
	}
	if _, err := client.SIsMember(context.Background(), "k", "m"); err == nil {
		t.Fatal("expected sismember error without store")
	}
	if _, err := client.DeleteIfEquals(context.Background(), "k", "v"); err == nil {
		t.Fatal("expected delete error without store")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.AccessKey("failed", "42"); got != "sl:access:failed:42" {
		t.Fatalf("unexpected access key %s", got)
	}
	if got := client.LockKey("sheet-reconcile"); got != "sl:lock:sheet-reconcile" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.AccessKey("banned", ""); got != "sl:access:banned" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	sets        map[string]map[string]struct{}
	expireCalls []expireCall
	scripts     []string
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
		sets: make(map[string]map[string]struct{}),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.incr, key)
		delete(m.sets, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd {
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	for _, member := range members {
		set[fmt.Sprint(member)] = struct{}{}
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (m *mockCmdable) SRem(ctx context.Context, key string, members ...any) *redis.IntCmd {
	for _, member := range members {
		delete(m.sets[key], fmt.Sprint(member))
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (m *mockCmdable) SIsMember(ctx context.Context, key string, member any) *redis.BoolCmd {
	_, ok := m.sets[key][fmt.Sprint(member)]
	return redis.NewBoolResult(ok, nil)
}

// Eval understands only the compare-and-delete script used by DeleteIfEquals.
func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	m.scripts = append(m.scripts, script)
	cmd := redis.NewCmd(ctx)
	if v, ok := m.data[keys[0]]; ok && v == fmt.Sprint(args[0]) {
		delete(m.data, keys[0])
		cmd.SetVal(int64(1))
		return cmd
	}
	cmd.SetVal(int64(0))
	return cmd
}
