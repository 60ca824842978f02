package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittodav/pkg/adapter/webdav"
)

// Default names used when the configuration defines no stores or shares.
const (
	DefaultMetadataStore = "default"
	DefaultContentStore  = "default"
	DefaultShare         = "dav"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyLocksDefaults(&cfg.Locks)
	applyMetadataDefaults(&cfg.Metadata)
	applyContentDefaults(&cfg.Content)

	if len(cfg.Shares) == 0 {
		cfg.Shares = []ShareConfig{{
			Name:          DefaultShare,
			MetadataStore: DefaultMetadataStore,
			ContentStore:  DefaultContentStore,
		}}
	}
	applyShareDefaults(cfg.Shares)
	applyAdaptersDefaults(&cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyLocksDefaults keeps locks in memory unless configured otherwise.
func applyLocksDefaults(cfg *LocksConfig) {
	if cfg.Store == "" {
		cfg.Store = "memory"
	}
}

// applyMetadataDefaults adds an in-memory store when none is configured.
func applyMetadataDefaults(cfg *MetadataConfig) {
	if len(cfg.Stores) == 0 {
		cfg.Stores = map[string]MetadataStoreConfig{
			DefaultMetadataStore: {Type: "memory"},
		}
	}
	for name, store := range cfg.Stores {
		if store.Memory == nil {
			store.Memory = make(map[string]any)
		}
		if store.Badger == nil {
			store.Badger = make(map[string]any)
		}
		cfg.Stores[name] = store
	}
}

// applyContentDefaults adds a filesystem store when none is configured.
func applyContentDefaults(cfg *ContentConfig) {
	if len(cfg.Stores) == 0 {
		cfg.Stores = map[string]ContentStoreConfig{
			DefaultContentStore: {
				Type:       "filesystem",
				Filesystem: map[string]any{"path": "/tmp/dittodav-content"},
			},
		}
	}
	for name, store := range cfg.Stores {
		if store.Filesystem == nil {
			store.Filesystem = make(map[string]any)
		}
		if store.Memory == nil {
			store.Memory = make(map[string]any)
		}
		if store.S3 == nil {
			store.S3 = make(map[string]any)
		}
		cfg.Stores[name] = store
	}
}

// applyShareDefaults sets share defaults.
func applyShareDefaults(shares []ShareConfig) {
	for i := range shares {
		share := &shares[i]

		// If AllowedClients is nil, initialize to empty (all allowed)
		if share.AllowedClients == nil {
			share.AllowedClients = []string{}
		}
		// If DeniedClients is nil, initialize to empty (none denied)
		if share.DeniedClients == nil {
			share.DeniedClients = []string{}
		}
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// Enable WebDAV by default if it looks unconfigured (port 0), so a fresh
	// config without a file passes validation. An explicit "enabled: false"
	// with a port keeps it disabled.
	if !cfg.WebDAV.Enabled && cfg.WebDAV.Port == 0 {
		cfg.WebDAV.Enabled = true
	}
	applyWebDAVDefaults(&cfg.WebDAV)
}

// applyWebDAVDefaults mirrors the adapter's own defaults so that generated
// configuration files show the effective values.
func applyWebDAVDefaults(cfg *webdav.WebDAVConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.DefaultLockTimeout == 0 {
		cfg.DefaultLockTimeout = time.Hour
	}
	if cfg.MaxLockTimeout == 0 {
		cfg.MaxLockTimeout = 24 * time.Hour
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			WebDAV: webdav.WebDAVConfig{Enabled: true},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
