package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittodav/pkg/adapter/webdav"
	"github.com/spf13/viper"
)

// Config represents the complete DittoDAV configuration.
//
// This structure captures all configurable aspects of the DittoDAV server including:
//   - Logging configuration
//   - Server-wide settings (shutdown, metrics)
//   - Lock persistence
//   - Named metadata and content stores
//   - Share definitions binding URL prefixes to stores
//   - Protocol adapter configurations
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTODAV_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. A named store
// entry carries a Type and type-specific option maps; only the map matching
// Type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Locks selects where WebDAV locks are persisted
	Locks LocksConfig `mapstructure:"locks" yaml:"locks"`

	// Metadata holds the named metadata stores
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`

	// Content holds the named content stores
	Content ContentConfig `mapstructure:"content" yaml:"content"`

	// Shares defines the list of shares available to clients
	Shares []ShareConfig `mapstructure:"shares" yaml:"shares" validate:"dive"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MetricsConfig configures the metrics HTTP server.
type MetricsConfig struct {
	// Enabled turns on collection and the /metrics endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the TCP port of the metrics server
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// LocksConfig selects the lock store.
//
// With Store = "badger", locks either live in their own database (Badger
// options map) or share the database of a badger metadata store named by
// MetadataStore.
type LocksConfig struct {
	// Store is the lock persistence backend
	// Valid values: memory, badger
	Store string `mapstructure:"store" yaml:"store" validate:"required,oneof=memory badger"`

	// MetadataStore names a badger metadata store whose database also holds the locks
	MetadataStore string `mapstructure:"metadata_store" yaml:"metadata_store,omitempty"`

	// Badger contains options for a dedicated lock database
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`
}

// MetadataConfig holds the named metadata stores.
type MetadataConfig struct {
	// Stores maps a store name to its configuration
	Stores map[string]MetadataStoreConfig `mapstructure:"stores" yaml:"stores" validate:"dive"`
}

// MetadataStoreConfig configures a single metadata store.
type MetadataStoreConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-specific configuration
	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty"`

	// Badger contains BadgerDB-specific configuration
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`
}

// ContentConfig holds the named content stores.
type ContentConfig struct {
	// Stores maps a store name to its configuration
	Stores map[string]ContentStoreConfig `mapstructure:"stores" yaml:"stores" validate:"dive"`
}

// ContentStoreConfig configures a single content store.
type ContentStoreConfig struct {
	// Type specifies which content store implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem contains filesystem-specific configuration
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem,omitempty"`

	// Memory contains memory-specific configuration
	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty"`

	// S3 contains S3-specific configuration
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// ShareConfig defines a single share, served under "/<name>/".
type ShareConfig struct {
	// Name is the first URL path segment of the share (e.g., "docs")
	Name string `mapstructure:"name" yaml:"name" validate:"required,excludesall=/"`

	// MetadataStore names the metadata store backing the share
	MetadataStore string `mapstructure:"metadata_store" yaml:"metadata_store" validate:"required"`

	// ContentStore names the content store backing the share
	ContentStore string `mapstructure:"content_store" yaml:"content_store" validate:"required"`

	// ReadOnly makes the share read-only if true
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only"`

	// AllowedClients lists IP addresses or CIDR ranges allowed to access
	// Empty list means all clients are allowed
	AllowedClients []string `mapstructure:"allowed_clients" yaml:"allowed_clients"`

	// DeniedClients lists IP addresses or CIDR ranges explicitly denied
	// Takes precedence over AllowedClients
	DeniedClients []string `mapstructure:"denied_clients" yaml:"denied_clients"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// WebDAV uses the webdav.WebDAVConfig type directly to avoid duplication.
	WebDAV webdav.WebDAVConfig `mapstructure:"webdav" yaml:"webdav"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTODAV_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTODAV_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTODAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	// Default location: $XDG_CONFIG_HOME/dittodav/config.yaml
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittodav")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dittodav")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
