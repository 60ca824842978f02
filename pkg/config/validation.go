package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if len(cfg.Shares) == 0 {
		return fmt.Errorf("shares: at least one share must be configured")
	}

	names := make(map[string]bool)
	for i, share := range cfg.Shares {
		if names[share.Name] {
			return fmt.Errorf("shares[%d]: duplicate share name %q", i, share.Name)
		}
		names[share.Name] = true

		if _, ok := cfg.Metadata.Stores[share.MetadataStore]; !ok {
			return fmt.Errorf("shares[%d]: metadata store %q is not defined", i, share.MetadataStore)
		}
		if _, ok := cfg.Content.Stores[share.ContentStore]; !ok {
			return fmt.Errorf("shares[%d]: content store %q is not defined", i, share.ContentStore)
		}
	}

	if err := validateLocks(cfg); err != nil {
		return err
	}

	if !cfg.Adapters.WebDAV.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}
	if cfg.Server.Metrics.Enabled && cfg.Server.Metrics.Port == cfg.Adapters.WebDAV.Port {
		return fmt.Errorf("server.metrics.port %d conflicts with adapters.webdav.port", cfg.Server.Metrics.Port)
	}

	wd := cfg.Adapters.WebDAV
	if wd.MaxLockTimeout > 0 && wd.DefaultLockTimeout > wd.MaxLockTimeout {
		return fmt.Errorf("adapters.webdav: default_lock_timeout %v exceeds max_lock_timeout %v",
			wd.DefaultLockTimeout, wd.MaxLockTimeout)
	}
	return nil
}

// validateLocks checks the lock store selection.
func validateLocks(cfg *Config) error {
	locks := cfg.Locks
	if locks.Store != "badger" {
		if locks.MetadataStore != "" {
			return fmt.Errorf("locks: metadata_store requires store \"badger\"")
		}
		return nil
	}

	if locks.MetadataStore == "" {
		if len(locks.Badger) == 0 {
			return fmt.Errorf("locks: badger store requires either metadata_store or badger options")
		}
		return nil
	}

	store, ok := cfg.Metadata.Stores[locks.MetadataStore]
	if !ok {
		return fmt.Errorf("locks: metadata store %q is not defined (available: %v)",
			locks.MetadataStore, storeNames(cfg.Metadata.Stores))
	}
	if store.Type != "badger" {
		return fmt.Errorf("locks: metadata store %q has type %q, want badger", locks.MetadataStore, store.Type)
	}
	return nil
}

func storeNames(stores map[string]MetadataStoreConfig) []string {
	names := make([]string, 0, len(stores))
	for name := range stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		// Return the first validation error with context
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
