package config

import (
	"testing"
	"time"

	"github.com/marmos91/dittodav/pkg/adapter/webdav"
)

func TestApplyDefaults_Empty(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" || cfg.Logging.Format != "text" || cfg.Logging.Output != "stdout" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.Metrics.Port != 9090 {
		t.Errorf("Expected metrics port 9090, got %d", cfg.Server.Metrics.Port)
	}
	if cfg.Locks.Store != "memory" {
		t.Errorf("Expected memory lock store, got %q", cfg.Locks.Store)
	}

	meta, ok := cfg.Metadata.Stores[DefaultMetadataStore]
	if !ok || meta.Type != "memory" {
		t.Errorf("Expected default memory metadata store, got %+v", cfg.Metadata.Stores)
	}
	blobs, ok := cfg.Content.Stores[DefaultContentStore]
	if !ok || blobs.Type != "filesystem" || blobs.Filesystem["path"] == nil {
		t.Errorf("Expected default filesystem content store, got %+v", cfg.Content.Stores)
	}

	if len(cfg.Shares) != 1 {
		t.Fatalf("Expected one default share, got %d", len(cfg.Shares))
	}
	share := cfg.Shares[0]
	if share.Name != DefaultShare || share.MetadataStore != DefaultMetadataStore || share.ContentStore != DefaultContentStore {
		t.Errorf("Unexpected default share: %+v", share)
	}
	if share.AllowedClients == nil || share.DeniedClients == nil {
		t.Error("Expected client lists to be initialized")
	}

	wd := cfg.Adapters.WebDAV
	if !wd.Enabled || wd.Port != 8080 {
		t.Errorf("Expected WebDAV enabled on 8080, got enabled=%v port=%d", wd.Enabled, wd.Port)
	}
	if wd.DefaultLockTimeout != time.Hour || wd.MaxLockTimeout != 24*time.Hour {
		t.Errorf("Unexpected lock timeouts: %v / %v", wd.DefaultLockTimeout, wd.MaxLockTimeout)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "debug", Format: "json", Output: "stderr"},
		Locks:   LocksConfig{Store: "badger", MetadataStore: "meta"},
		Metadata: MetadataConfig{Stores: map[string]MetadataStoreConfig{
			"meta": {Type: "badger", Badger: map[string]any{"db_path": "/var/lib/dav"}},
		}},
		Shares: []ShareConfig{{Name: "docs", MetadataStore: "meta", ContentStore: "default"}},
		Adapters: AdaptersConfig{WebDAV: webdav.WebDAVConfig{
			Enabled:        false,
			Port:           9000,
			MaxLockTimeout: time.Hour,
		}},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected output stderr, got %q", cfg.Logging.Output)
	}
	if cfg.Locks.Store != "badger" {
		t.Errorf("Expected badger lock store, got %q", cfg.Locks.Store)
	}
	if len(cfg.Metadata.Stores) != 1 || cfg.Metadata.Stores["meta"].Badger["db_path"] != "/var/lib/dav" {
		t.Errorf("Metadata stores were modified: %+v", cfg.Metadata.Stores)
	}
	if len(cfg.Shares) != 1 || cfg.Shares[0].Name != "docs" {
		t.Errorf("Shares were modified: %+v", cfg.Shares)
	}
	if cfg.Adapters.WebDAV.Enabled {
		t.Error("Expected explicitly configured WebDAV to stay disabled")
	}
	if cfg.Adapters.WebDAV.MaxLockTimeout != time.Hour {
		t.Errorf("Expected max lock timeout 1h, got %v", cfg.Adapters.WebDAV.MaxLockTimeout)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
}
