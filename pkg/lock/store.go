package lock

import "context"

// Store persists locks so they survive a restart.
//
// The Manager keeps its own in-memory table and writes through to the Store
// on every change; the Store is only read back by Manager.Load.
type Store interface {
	// Put inserts or replaces the lock with l.Token.
	Put(ctx context.Context, l Lock) error

	// Delete removes the lock with the given token. Missing tokens are not an error.
	Delete(ctx context.Context, token string) error

	// List returns every persisted lock, expired ones included.
	List(ctx context.Context) ([]Lock, error)

	// Close releases backend resources.
	Close() error
}

// nopStore discards everything. It is the Manager's default.
type nopStore struct{}

func (nopStore) Put(context.Context, Lock) error      { return nil }
func (nopStore) Delete(context.Context, string) error { return nil }
func (nopStore) List(context.Context) ([]Lock, error) { return nil, nil }
func (nopStore) Close() error                         { return nil }
