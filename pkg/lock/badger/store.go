// Package badger implements a lock.Store on BadgerDB.
//
// Locks are stored under "l:<token>" as JSON. Finite locks get a Badger TTL
// equal to their remaining lifetime, so lapsed locks disappear from disk
// without a sweeper. The store can share the *badger.DB of the Badger
// metadata store, since the key prefixes do not overlap.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittodav/pkg/lock"
)

// prefixLock is the key prefix for persisted locks.
const prefixLock = "l:"

func keyLock(token string) []byte {
	return []byte(prefixLock + token)
}

// BadgerLockStoreConfig configures a standalone Badger lock store.
type BadgerLockStoreConfig struct {
	// DBPath is the directory holding the database files.
	DBPath string `mapstructure:"db_path"`

	// InMemory runs Badger without touching disk.
	InMemory bool `mapstructure:"in_memory"`
}

// BadgerLockStore implements lock.Store on BadgerDB.
type BadgerLockStore struct {
	db     *badger.DB
	ownsDB bool
	now    func() time.Time
}

// NewBadgerLockStore opens a dedicated database.
func NewBadgerLockStore(config BadgerLockStoreConfig) (*BadgerLockStore, error) {
	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if config.DBPath == "" {
			return nil, fmt.Errorf("badger lock store: db_path is required")
		}
		opts = badger.DefaultOptions(config.DBPath)
	}
	opts = opts.WithLoggingLevel(badger.WARNING).WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}
	return &BadgerLockStore{db: db, ownsDB: true, now: time.Now}, nil
}

// NewBadgerLockStoreFromDB uses an already open database. Close leaves the
// database open; its owner closes it.
func NewBadgerLockStoreFromDB(db *badger.DB) *BadgerLockStore {
	return &BadgerLockStore{db: db, now: time.Now}
}

func (s *BadgerLockStore) Put(ctx context.Context, l lock.Lock) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode lock %s: %w", l.Token, err)
	}

	entry := badger.NewEntry(keyLock(l.Token), data)
	if l.Timeout > 0 {
		remaining := l.Remaining(s.now())
		if remaining <= 0 {
			// Already lapsed; make sure no stale copy survives.
			return s.Delete(ctx, l.Token)
		}
		// Badger TTLs have second granularity; round up so the record never
		// vanishes before the lock itself expires.
		entry = entry.WithTTL(remaining.Truncate(time.Second) + time.Second)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
}

func (s *BadgerLockStore) Delete(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(keyLock(token))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// List returns every stored lock ordered by creation time.
func (s *BadgerLockStore) List(ctx context.Context) ([]lock.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []lock.Lock
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixLock)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var l lock.Lock
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &l)
			})
			if err != nil {
				return fmt.Errorf("failed to decode lock %s: %w", it.Item().Key(), err)
			}
			result = append(result, l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Close closes the database if the store opened it.
func (s *BadgerLockStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}
