package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/marmos91/dittodav/pkg/store/metadata"
	"github.com/marmos91/dittodav/pkg/vfs"
)

// Registry manages all named resources: metadata stores, content stores,
// shares and the lock manager they share. It provides thread-safe
// registration and lookup of all server resources.
//
// Example usage:
//
//	reg := NewRegistry(lock.NewManager())
//	reg.RegisterMetadataStore("badger-main", badgerStore)
//	reg.RegisterContentStore("local-disk", fsStore)
//	reg.AddShare(ctx, &ShareConfig{Name: "docs", MetadataStore: "badger-main", ContentStore: "local-disk"})
//
//	share, _ := reg.GetShare("docs")
type Registry struct {
	mu       sync.RWMutex
	metadata map[string]metadata.MetadataStore
	content  map[string]content.ContentStore
	shares   map[string]*Share
	locks    *lock.Manager
}

// NewRegistry creates an empty registry. A nil manager is replaced with an
// in-memory one.
func NewRegistry(locks *lock.Manager) *Registry {
	if locks == nil {
		locks = lock.NewManager()
	}
	return &Registry{
		metadata: make(map[string]metadata.MetadataStore),
		content:  make(map[string]content.ContentStore),
		shares:   make(map[string]*Share),
		locks:    locks,
	}
}

// Locks returns the lock manager shared by every share.
func (r *Registry) Locks() *lock.Manager {
	return r.locks
}

// RegisterMetadataStore adds a named metadata store to the registry.
// Returns an error if a store with the same name already exists.
func (r *Registry) RegisterMetadataStore(name string, store metadata.MetadataStore) error {
	if store == nil {
		return fmt.Errorf("cannot register nil metadata store")
	}
	if name == "" {
		return fmt.Errorf("cannot register metadata store with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.metadata[name]; exists {
		return fmt.Errorf("metadata store %q already registered", name)
	}

	r.metadata[name] = store
	return nil
}

// RegisterContentStore adds a named content store to the registry.
// Returns an error if a store with the same name already exists.
func (r *Registry) RegisterContentStore(name string, store content.ContentStore) error {
	if store == nil {
		return fmt.Errorf("cannot register nil content store")
	}
	if name == "" {
		return fmt.Errorf("cannot register content store with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.content[name]; exists {
		return fmt.Errorf("content store %q already registered", name)
	}

	r.content[name] = store
	return nil
}

// AddShare creates and registers a new share.
// This method:
//  1. Validates the name and that the share doesn't already exist
//  2. Validates that the referenced stores exist
//  3. Creates the share's root collection in the metadata store
//  4. Registers the share with its resource adapter
func (r *Registry) AddShare(ctx context.Context, config *ShareConfig) error {
	if config == nil || config.Name == "" {
		return fmt.Errorf("cannot add share with empty name")
	}
	if strings.ContainsAny(config.Name, "/\\") || config.Name == "." || config.Name == ".." {
		return fmt.Errorf("invalid share name %q", config.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.shares[config.Name]; exists {
		return fmt.Errorf("share %q already exists", config.Name)
	}

	metadataStore, exists := r.metadata[config.MetadataStore]
	if !exists {
		return fmt.Errorf("metadata store %q not found", config.MetadataStore)
	}
	contentStore, exists := r.content[config.ContentStore]
	if !exists {
		return fmt.Errorf("content store %q not found", config.ContentStore)
	}

	share := &Share{
		Name:           config.Name,
		MetadataStore:  config.MetadataStore,
		ContentStore:   config.ContentStore,
		ReadOnly:       config.ReadOnly,
		AllowedClients: config.AllowedClients,
		DeniedClients:  config.DeniedClients,
	}

	share.FS = vfs.New(share.RootPath(), metadataStore, contentStore, vfs.WithReadOnly(config.ReadOnly))

	if err := share.FS.EnsureRoot(ctx); err != nil {
		return fmt.Errorf("failed to create root collection: %w", err)
	}

	r.shares[config.Name] = share
	return nil
}

// RemoveShare removes a share from the registry.
// Note: This does NOT close the underlying stores, as they may be used by other shares.
func (r *Registry) RemoveShare(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.shares[name]; !exists {
		return fmt.Errorf("share %q not found", name)
	}

	delete(r.shares, name)
	return nil
}

// GetShare retrieves a share by name.
func (r *Registry) GetShare(name string) (*Share, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	share, exists := r.shares[name]
	if !exists {
		return nil, fmt.Errorf("share %q not found", name)
	}
	return share, nil
}

// ShareForPath returns the share serving the URL path p, selected by its
// first segment.
func (r *Registry) ShareForPath(p string) (*Share, bool) {
	name := strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	share, ok := r.shares[name]
	return share, ok
}

// GetMetadataStore retrieves a metadata store by name.
func (r *Registry) GetMetadataStore(name string) (metadata.MetadataStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, exists := r.metadata[name]
	if !exists {
		return nil, fmt.Errorf("metadata store %q not found", name)
	}
	return store, nil
}

// GetContentStore retrieves a content store by name.
func (r *Registry) GetContentStore(name string) (content.ContentStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, exists := r.content[name]
	if !exists {
		return nil, fmt.Errorf("content store %q not found", name)
	}
	return store, nil
}

// ListShares returns all registered share names in sorted order.
func (r *Registry) ListShares() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.shares))
	for name := range r.shares {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListSharesUsingMetadataStore returns all shares that use the specified metadata store.
func (r *Registry) ListSharesUsingMetadataStore(storeName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var shares []string
	for _, share := range r.shares {
		if share.MetadataStore == storeName {
			shares = append(shares, share.Name)
		}
	}
	sort.Strings(shares)
	return shares
}

// CountShares returns the number of registered shares.
func (r *Registry) CountShares() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shares)
}

// Close closes the lock store, then every registered store. All errors are
// collected; the first is returned.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	// Locks may share a metadata store's database, so they go first.
	if err := r.locks.Close(); err != nil {
		firstErr = fmt.Errorf("close lock store: %w", err)
	}
	for name, store := range r.metadata {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close metadata store %q: %w", name, err)
		}
	}
	for name, store := range r.content {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close content store %q: %w", name, err)
		}
	}
	return firstErr
}
