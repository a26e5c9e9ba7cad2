package access

import (
	"context"
	"sync"
)

// Store persists who may use the system. Implementations must be safe for
// concurrent use.
type Store interface {
	IsAuthorized(ctx context.Context, userID string) (bool, error)
	IsBanned(ctx context.Context, userID string) (bool, error)
	Authorize(ctx context.Context, userID string) error
	Ban(ctx context.Context, userID string) error
	IncrementFailures(ctx context.Context, userID string) (int, error)
	ResetFailures(ctx context.Context, userID string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu         sync.Mutex
	authorized map[string]struct{}
	banned     map[string]struct{}
	failures   map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		authorized: map[string]struct{}{},
		banned:     map[string]struct{}{},
		failures:   map[string]int{},
	}
}

func (m *MemoryStore) IsAuthorized(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.authorized[userID]
	return ok, nil
}

func (m *MemoryStore) IsBanned(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.banned[userID]
	return ok, nil
}

func (m *MemoryStore) Authorize(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorized[userID] = struct{}{}
	return nil
}

func (m *MemoryStore) Ban(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.authorized, userID)
	m.banned[userID] = struct{}{}
	return nil
}

func (m *MemoryStore) IncrementFailures(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[userID]++
	return m.failures[userID], nil
}

func (m *MemoryStore) ResetFailures(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, userID)
	return nil
}
