// Package memory implements a lock.Store kept in process memory.
//
// It is useful for tests and for servers that run with a persistent metadata
// store but do not need locks to survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/marmos91/dittodav/pkg/lock"
)

// MemoryLockStore implements lock.Store with a map.
type MemoryLockStore struct {
	mu    sync.RWMutex
	locks map[string]lock.Lock
}

// NewMemoryLockStore returns an empty store.
func NewMemoryLockStore() *MemoryLockStore {
	return &MemoryLockStore{locks: make(map[string]lock.Lock)}
}

func (s *MemoryLockStore) Put(ctx context.Context, l lock.Lock) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.locks[l.Token] = l
	s.mu.Unlock()
	return nil
}

func (s *MemoryLockStore) Delete(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.locks, token)
	s.mu.Unlock()
	return nil
}

// List returns the stored locks ordered by creation time.
func (s *MemoryLockStore) List(ctx context.Context) ([]lock.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]lock.Lock, 0, len(s.locks))
	for _, l := range s.locks {
		result = append(result, l)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Close is a no-op.
func (s *MemoryLockStore) Close() error {
	return nil
}
