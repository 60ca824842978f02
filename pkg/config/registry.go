package config

import (
	"context"
	"fmt"
	"sort"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/lock"
	lockbadger "github.com/marmos91/dittodav/pkg/lock/badger"
	lockmemory "github.com/marmos91/dittodav/pkg/lock/memory"
	"github.com/marmos91/dittodav/pkg/registry"
	"github.com/marmos91/dittodav/pkg/store/metadata"
	"github.com/marmos91/dittodav/pkg/store/metadata/badger"
)

// InitializeRegistry creates a fully configured Registry from the provided configuration.
//
// This function orchestrates the complete initialization process:
//  1. Creates all metadata stores from cfg.Metadata.Stores
//  2. Opens the lock store, restores persisted locks and builds the lock manager
//  3. Registers the metadata stores and creates the content stores
//  4. Adds all shares from cfg.Shares, creating their root collections
//
// On failure every store opened so far is closed.
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	reg, err := config.InitializeRegistry(ctx, cfg, config.InitializeMetrics(cfg))
//	if err != nil {
//	    log.Fatalf("Failed to initialize registry: %v", err)
//	}
func InitializeRegistry(ctx context.Context, cfg *Config, m *MetricsResult) (*registry.Registry, error) {
	logger.Debug("Initializing registry from configuration")

	if err := validateRegistryConfig(cfg); err != nil {
		return nil, err
	}
	if m == nil {
		m = noopMetrics()
	}

	// Step 1: metadata stores are created first because the lock store may
	// reuse one of their databases.
	metaStores, err := createMetadataStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Step 2: lock manager
	lockStore, err := createLockStore(cfg.Locks, metaStores)
	if err != nil {
		closeMetadataStores(metaStores)
		return nil, fmt.Errorf("failed to create lock store: %w", err)
	}
	manager := lock.NewManager(lock.WithStore(lockStore), lock.WithMetrics(m.LockMetrics))
	if err := manager.Load(ctx); err != nil {
		_ = lockStore.Close()
		closeMetadataStores(metaStores)
		return nil, err
	}

	reg := registry.NewRegistry(manager)
	fail := func(err error) (*registry.Registry, error) {
		if closeErr := reg.Close(); closeErr != nil {
			logger.Warn("Failed to close registry after init error: %v", closeErr)
		}
		return nil, err
	}

	// Step 3: register stores
	for _, name := range sortedKeys(metaStores) {
		if err := reg.RegisterMetadataStore(name, metaStores[name]); err != nil {
			return fail(fmt.Errorf("failed to register metadata store %q: %w", name, err))
		}
	}
	logger.Debug("Registered %d metadata store(s)", len(metaStores))

	if err := registerContentStores(ctx, reg, cfg, m); err != nil {
		return fail(fmt.Errorf("failed to register content stores: %w", err))
	}

	// Step 4: shares
	if err := addShares(ctx, reg, cfg); err != nil {
		return fail(fmt.Errorf("failed to add shares: %w", err))
	}
	logger.Debug("Registered %d share(s)", reg.CountShares())

	return reg, nil
}

// validateRegistryConfig performs basic validation on the configuration.
func validateRegistryConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}
	if len(cfg.Metadata.Stores) == 0 {
		return fmt.Errorf("no metadata stores configured: at least one metadata store is required")
	}
	if len(cfg.Content.Stores) == 0 {
		return fmt.Errorf("no content stores configured: at least one content store is required")
	}
	if len(cfg.Shares) == 0 {
		return fmt.Errorf("no shares configured: at least one share is required")
	}
	return nil
}

// createMetadataStores opens every configured metadata store.
func createMetadataStores(ctx context.Context, cfg *Config) (map[string]metadata.MetadataStore, error) {
	stores := make(map[string]metadata.MetadataStore, len(cfg.Metadata.Stores))
	for _, name := range sortedKeys(cfg.Metadata.Stores) {
		storeCfg := cfg.Metadata.Stores[name]
		logger.Debug("Creating metadata store %q (type: %s)", name, storeCfg.Type)

		store, err := createMetadataStore(ctx, storeCfg)
		if err != nil {
			closeMetadataStores(stores)
			return nil, fmt.Errorf("failed to create metadata store %q: %w", name, err)
		}
		stores[name] = store
	}
	return stores, nil
}

func closeMetadataStores(stores map[string]metadata.MetadataStore) {
	for name, store := range stores {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close metadata store %q: %v", name, err)
		}
	}
}

// createLockStore builds the lock.Store selected by cfg.
func createLockStore(cfg LocksConfig, metaStores map[string]metadata.MetadataStore) (lock.Store, error) {
	switch cfg.Store {
	case "", "memory":
		return lockmemory.NewMemoryLockStore(), nil

	case "badger":
		if cfg.MetadataStore == "" {
			return createBadgerLockStore(cfg.Badger)
		}
		store, ok := metaStores[cfg.MetadataStore]
		if !ok {
			return nil, fmt.Errorf("metadata store %q not found", cfg.MetadataStore)
		}
		badgerStore, ok := store.(*badger.BadgerMetadataStore)
		if !ok {
			return nil, fmt.Errorf("metadata store %q is not a badger store", cfg.MetadataStore)
		}
		logger.Debug("Locks share the database of metadata store %q", cfg.MetadataStore)
		return lockbadger.NewBadgerLockStoreFromDB(badgerStore.DB()), nil

	default:
		return nil, fmt.Errorf("unknown lock store type: %q (supported: memory, badger)", cfg.Store)
	}
}

// registerContentStores creates and registers all configured content stores.
func registerContentStores(ctx context.Context, reg *registry.Registry, cfg *Config, m *MetricsResult) error {
	for _, name := range sortedKeys(cfg.Content.Stores) {
		storeCfg := cfg.Content.Stores[name]
		logger.Debug("Creating content store %q (type: %s)", name, storeCfg.Type)

		store, err := createContentStore(ctx, storeCfg, m)
		if err != nil {
			return fmt.Errorf("failed to create content store %q: %w", name, err)
		}
		if err := reg.RegisterContentStore(name, store); err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to register content store %q: %w", name, err)
		}
	}
	return nil
}

// addShares validates and adds all configured shares to the registry.
func addShares(ctx context.Context, reg *registry.Registry, cfg *Config) error {
	for i, shareCfg := range cfg.Shares {
		logger.Debug("Adding share %q (metadata: %s, content: %s, read_only: %v)",
			shareCfg.Name, shareCfg.MetadataStore, shareCfg.ContentStore, shareCfg.ReadOnly)

		if shareCfg.Name == "" {
			return fmt.Errorf("share #%d: name cannot be empty", i+1)
		}

		if err := reg.AddShare(ctx, &registry.ShareConfig{
			Name:           shareCfg.Name,
			MetadataStore:  shareCfg.MetadataStore,
			ContentStore:   shareCfg.ContentStore,
			ReadOnly:       shareCfg.ReadOnly,
			AllowedClients: shareCfg.AllowedClients,
			DeniedClients:  shareCfg.DeniedClients,
		}); err != nil {
			return fmt.Errorf("failed to add share %q: %w", shareCfg.Name, err)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
