package memory

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockStore(t *testing.T) {
	store := NewMemoryLockStore()
	ctx := context.Background()
	now := time.Now()

	first := lock.Lock{Resource: "/a", Token: lock.NewToken(), CreatedAt: now, Timeout: time.Minute}
	second := lock.Lock{Resource: "/b", Token: lock.NewToken(), CreatedAt: now.Add(time.Second)}
	require.NoError(t, store.Put(ctx, second))
	require.NoError(t, store.Put(ctx, first))

	locks, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 2)
	assert.Equal(t, first.Token, locks[0].Token)
	assert.Equal(t, second.Token, locks[1].Token)

	require.NoError(t, store.Delete(ctx, first.Token))
	require.NoError(t, store.Delete(ctx, "missing"))

	locks, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, locks, 1)
	assert.NoError(t, store.Close())
}

func TestMemoryLockStore_WithManager(t *testing.T) {
	store := NewMemoryLockStore()
	ctx := context.Background()

	m := lock.NewManager(lock.WithStore(store))
	l := &lock.Lock{Resource: "/share/a", Scope: lock.ScopeExclusive, Timeout: time.Hour}
	require.NoError(t, m.Acquire(ctx, l))

	restarted := lock.NewManager(lock.WithStore(store))
	require.NoError(t, restarted.Load(ctx))

	found, ok := restarted.Lookup(l.Token)
	require.True(t, ok)
	assert.Equal(t, "/share/a", found.Resource)
}
