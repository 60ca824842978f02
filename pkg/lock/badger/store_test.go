package badger

import (
	"context"
	"testing"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerLockStore {
	t.Helper()
	store, err := NewBadgerLockStore(BadgerLockStoreConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerLockStore_PutListDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	finite := lock.Lock{Resource: "/a", Scope: lock.ScopeShared, Token: lock.NewToken(), CreatedAt: now, Timeout: time.Hour, Owner: "alice"}
	infinite := lock.Lock{Resource: "/b", Scope: lock.ScopeExclusive, Token: lock.NewToken(), CreatedAt: now.Add(time.Second), Depth: lock.DepthInfinity}
	require.NoError(t, store.Put(ctx, finite))
	require.NoError(t, store.Put(ctx, infinite))

	locks, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 2)
	assert.Equal(t, finite.Token, locks[0].Token)
	assert.Equal(t, "alice", locks[0].Owner)
	assert.Equal(t, lock.ScopeShared, locks[0].Scope)
	assert.Equal(t, lock.DepthInfinity, locks[1].Depth)

	require.NoError(t, store.Delete(ctx, finite.Token))
	require.NoError(t, store.Delete(ctx, "missing"))

	locks, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, infinite.Token, locks[0].Token)
}

func TestBadgerLockStore_LapsedLockIsNotStored(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	lapsed := lock.Lock{Resource: "/a", Token: lock.NewToken(), CreatedAt: time.Now().Add(-time.Hour), Timeout: time.Minute}
	require.NoError(t, store.Put(ctx, lapsed))

	locks, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, locks)
}

func TestBadgerLockStore_RequiresPath(t *testing.T) {
	_, err := NewBadgerLockStore(BadgerLockStoreConfig{})
	assert.Error(t, err)
}

func TestBadgerLockStore_SharedDB(t *testing.T) {
	db, err := badgerdb.Open(badgerdb.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badgerdb.WARNING))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store := NewBadgerLockStoreFromDB(db)
	require.NoError(t, store.Put(context.Background(), lock.Lock{Resource: "/a", Token: lock.NewToken(), CreatedAt: time.Now()}))

	// Closing a store that does not own the database leaves it usable.
	require.NoError(t, store.Close())
	locks, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, locks, 1)
}

func TestBadgerLockStore_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewBadgerLockStore(BadgerLockStoreConfig{DBPath: dir})
	require.NoError(t, err)

	m := lock.NewManager(lock.WithStore(store))
	l := &lock.Lock{Resource: "/share/doc", Scope: lock.ScopeExclusive, Timeout: time.Hour}
	require.NoError(t, m.Acquire(ctx, l))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerLockStore(BadgerLockStoreConfig{DBPath: dir})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	restarted := lock.NewManager(lock.WithStore(reopened))
	require.NoError(t, restarted.Load(ctx))

	found, ok := restarted.Lookup(l.Token)
	require.True(t, ok)
	assert.Equal(t, "/share/doc", found.Resource)
	assert.Equal(t, time.Hour, found.Timeout)

	err = restarted.Acquire(ctx, &lock.Lock{Resource: "/share/doc", Scope: lock.ScopeShared})
	var conflict *lock.ConflictError
	assert.ErrorAs(t, err, &conflict)
}
