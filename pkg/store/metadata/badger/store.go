package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittodav/pkg/store/metadata"
)

// BadgerMetadataStoreConfig configures the BadgerDB metadata store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory holding the database files.
	DBPath string `mapstructure:"db_path"`

	// InMemory runs Badger without touching disk. DBPath is ignored.
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_mb"`

	// BadgerOptions overrides every other option when non-nil.
	BadgerOptions *badger.Options `mapstructure:"-"`
}

// BadgerMetadataStore implements metadata.MetadataStore using BadgerDB.
//
// Every operation runs inside a single Badger transaction, so multi-key
// updates (Create writes the record and the parent index, Move rewrites a whole
// subtree) are atomic. Badger's optimistic concurrency control reports
// conflicting concurrent writers as badger.ErrConflict; those are retried a
// few times before surfacing to the caller.
//
// See keys.go for the key layout.
type BadgerMetadataStore struct {
	db *badger.DB
}

// conflictRetries bounds how many times a transaction is retried on ErrConflict.
const conflictRetries = 5

// NewBadgerMetadataStore opens (or creates) the database and ensures the root
// collection exists.
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		if config.InMemory {
			opts = badger.DefaultOptions("").WithInMemory(true)
		} else {
			if config.DBPath == "" {
				return nil, fmt.Errorf("badger metadata store: db_path is required")
			}
			opts = badger.DefaultOptions(config.DBPath)
		}

		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)

		blockCacheMB := config.BlockCacheSizeMB
		if blockCacheMB == 0 {
			blockCacheMB = 64
		}
		indexCacheMB := config.IndexCacheSizeMB
		if indexCacheMB == 0 {
			indexCacheMB = 32
		}
		opts = opts.WithBlockCacheSize(blockCacheMB << 20)
		opts = opts.WithIndexCacheSize(indexCacheMB << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	store := &BadgerMetadataStore{db: db}

	if err := store.ensureRoot(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize root collection: %w", err)
	}

	return store, nil
}

// DB exposes the underlying database so other components (the lock store)
// can share it.
func (s *BadgerMetadataStore) DB() *badger.DB {
	return s.db
}

func (s *BadgerMetadataStore) ensureRoot() error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(keyResource(metadata.RootPath))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		root := metadata.NewResource(metadata.RootPath, metadata.ResourceTypeCollection, time.Now())
		return putResource(txn, root)
	})
}

// update runs fn in a read-write transaction, retrying on write conflicts.
func (s *BadgerMetadataStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getResource(txn *badger.Txn, path string) (*metadata.Resource, error) {
	item, err := txn.Get(keyResource(path))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, metadata.NewError(metadata.ErrNotFound, "resource not found", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource %s: %w", path, err)
	}

	var res *metadata.Resource
	err = item.Value(func(val []byte) error {
		decoded, err := decodeResource(val)
		if err != nil {
			return err
		}
		res = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func putResource(txn *badger.Txn, res *metadata.Resource) error {
	data, err := encodeResource(res)
	if err != nil {
		return err
	}
	return txn.Set(keyResource(res.Path), data)
}

func listChildPaths(txn *badger.Txn, parent string) []string {
	prefix := keyChildPrefix(parent)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var children []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		children = append(children, childFromKey(it.Item().KeyCopy(nil)))
	}
	return children
}

func (s *BadgerMetadataStore) Get(ctx context.Context, path string) (*metadata.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path = metadata.CleanPath(path)

	var res *metadata.Resource
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		res, err = getResource(txn, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *BadgerMetadataStore) Create(ctx context.Context, res *metadata.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if res == nil {
		return metadata.NewError(metadata.ErrInvalidArgument, "resource is nil", "")
	}

	stored := res.Clone()
	stored.Path = metadata.CleanPath(stored.Path)
	parentPath := metadata.ParentPath(stored.Path)

	return s.update(func(txn *badger.Txn) error {
		if _, err := getResource(txn, stored.Path); err == nil {
			return metadata.NewError(metadata.ErrAlreadyExists, "resource already exists", stored.Path)
		} else if !metadata.IsNotFound(err) {
			return err
		}

		parent, err := getResource(txn, parentPath)
		if metadata.IsNotFound(err) {
			return metadata.NewError(metadata.ErrParentNotFound, "parent collection not found", parentPath)
		}
		if err != nil {
			return err
		}
		if !parent.IsCollection() {
			return metadata.NewError(metadata.ErrNotDirectory, "parent is not a collection", parentPath)
		}

		if err := putResource(txn, stored); err != nil {
			return err
		}
		return txn.Set(keyChild(parentPath, stored.Path), nil)
	})
}

func (s *BadgerMetadataStore) Update(ctx context.Context, res *metadata.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if res == nil {
		return metadata.NewError(metadata.ErrInvalidArgument, "resource is nil", "")
	}

	stored := res.Clone()
	stored.Path = metadata.CleanPath(stored.Path)

	return s.update(func(txn *badger.Txn) error {
		existing, err := getResource(txn, stored.Path)
		if err != nil {
			return err
		}
		if existing.Type != stored.Type {
			return metadata.NewError(metadata.ErrInvalidArgument, "resource type cannot change", stored.Path)
		}
		return putResource(txn, stored)
	})
}

func (s *BadgerMetadataStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path = metadata.CleanPath(path)
	if path == metadata.RootPath {
		return metadata.NewError(metadata.ErrInvalidArgument, "cannot delete root", path)
	}

	return s.update(func(txn *badger.Txn) error {
		res, err := getResource(txn, path)
		if err != nil {
			return err
		}
		if res.IsCollection() && len(listChildPaths(txn, path)) > 0 {
			return metadata.NewError(metadata.ErrNotEmpty, "collection not empty", path)
		}

		if err := txn.Delete(keyResource(path)); err != nil {
			return err
		}
		return txn.Delete(keyChild(metadata.ParentPath(path), path))
	})
}

func (s *BadgerMetadataStore) Children(ctx context.Context, path string) ([]*metadata.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path = metadata.CleanPath(path)

	var result []*metadata.Resource
	err := s.db.View(func(txn *badger.Txn) error {
		res, err := getResource(txn, path)
		if err != nil {
			return err
		}
		if !res.IsCollection() {
			return metadata.NewError(metadata.ErrNotDirectory, "not a collection", path)
		}

		children := listChildPaths(txn, path)
		sort.Strings(children)

		result = make([]*metadata.Resource, 0, len(children))
		for _, child := range children {
			childRes, err := getResource(txn, child)
			if err != nil {
				return err
			}
			result = append(result, childRes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BadgerMetadataStore) Move(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from = metadata.CleanPath(from)
	to = metadata.CleanPath(to)

	if from == metadata.RootPath {
		return metadata.NewError(metadata.ErrInvalidArgument, "cannot move root", from)
	}
	if from == to || metadata.IsDescendant(to, from) {
		return metadata.NewError(metadata.ErrInvalidArgument, "cannot move a resource into itself", to)
	}

	return s.update(func(txn *badger.Txn) error {
		if _, err := getResource(txn, from); err != nil {
			return err
		}
		if _, err := getResource(txn, to); err == nil {
			return metadata.NewError(metadata.ErrAlreadyExists, "destination already exists", to)
		} else if !metadata.IsNotFound(err) {
			return err
		}

		parentPath := metadata.ParentPath(to)
		parent, err := getResource(txn, parentPath)
		if metadata.IsNotFound(err) {
			return metadata.NewError(metadata.ErrParentNotFound, "destination parent not found", parentPath)
		}
		if err != nil {
			return err
		}
		if !parent.IsCollection() {
			return metadata.NewError(metadata.ErrNotDirectory, "destination parent is not a collection", parentPath)
		}

		// Walk the subtree breadth-first, rewriting records and index edges.
		queue := []string{from}
		for len(queue) > 0 {
			oldPath := queue[0]
			queue = queue[1:]

			res, err := getResource(txn, oldPath)
			if err != nil {
				return err
			}

			newPath := metadata.Rebase(oldPath, from, to)
			res.Path = newPath

			if err := txn.Delete(keyResource(oldPath)); err != nil {
				return err
			}
			if err := putResource(txn, res); err != nil {
				return err
			}

			if res.IsCollection() {
				for _, child := range listChildPaths(txn, oldPath) {
					if err := txn.Delete(keyChild(oldPath, child)); err != nil {
						return err
					}
					if err := txn.Set(keyChild(newPath, metadata.Rebase(child, from, to)), nil); err != nil {
						return err
					}
					queue = append(queue, child)
				}
			}
		}

		if err := txn.Delete(keyChild(metadata.ParentPath(from), from)); err != nil {
			return err
		}
		return txn.Set(keyChild(parentPath, to), nil)
	})
}

func (s *BadgerMetadataStore) SetAttribute(ctx context.Context, path, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return metadata.NewError(metadata.ErrInvalidArgument, "attribute name is empty", path)
	}

	path = metadata.CleanPath(path)

	return s.update(func(txn *badger.Txn) error {
		res, err := getResource(txn, path)
		if err != nil {
			return err
		}
		if res.Attributes == nil {
			res.Attributes = make(map[string]string)
		}
		res.Attributes[name] = value
		return putResource(txn, res)
	})
}

func (s *BadgerMetadataStore) RemoveAttribute(ctx context.Context, path, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path = metadata.CleanPath(path)

	return s.update(func(txn *badger.Txn) error {
		res, err := getResource(txn, path)
		if err != nil {
			return err
		}
		if _, ok := res.Attributes[name]; !ok {
			return nil
		}
		delete(res.Attributes, name)
		return putResource(txn, res)
	})
}

// Close flushes pending writes and closes the database.
func (s *BadgerMetadataStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}
