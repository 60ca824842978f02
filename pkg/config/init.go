package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// InitConfig writes a sample configuration file to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as a commented YAML document. Keys
// follow the mapstructure names so the output loads back through Load.
func generateYAMLWithComments(cfg *Config) ([]byte, error) {
	wd := cfg.Adapters.WebDAV

	doc := mapping(
		entry("logging", "Logging: level (DEBUG, INFO, WARN, ERROR), format (text, json), output (stdout, stderr, or a file path)", mapping(
			entry("level", "", scalar(cfg.Logging.Level)),
			entry("format", "", scalar(cfg.Logging.Format)),
			entry("output", "", scalar(cfg.Logging.Output)),
		)),
		entry("server", "Server-wide settings", mapping(
			entry("shutdown_timeout", "Maximum time to wait for in-flight requests on shutdown", duration(cfg.Server.ShutdownTimeout)),
			entry("metrics", "Prometheus endpoint served at http://<host>:<port>/metrics", mapping(
				entry("enabled", "", boolean(cfg.Server.Metrics.Enabled)),
				entry("port", "", integer(int64(cfg.Server.Metrics.Port))),
			)),
		)),
		entry("locks", "Lock persistence: memory, or badger (set metadata_store to reuse a badger metadata database, or badger.db_path for a dedicated one)", mapping(
			entry("store", "", scalar(cfg.Locks.Store)),
		)),
		entry("metadata", "Named metadata stores (types: memory, badger)", mapping(
			entry("stores", "", metadataStores(cfg.Metadata.Stores)),
		)),
		entry("content", "Named content stores (types: filesystem, memory, s3)", mapping(
			entry("stores", "", contentStores(cfg.Content.Stores)),
		)),
		entry("shares", "Each share is served under /<name>/", shares(cfg.Shares)),
		entry("adapters", "Protocol adapters", mapping(
			entry("webdav", "WebDAV (class 1 and 2)", mapping(
				entry("enabled", "", boolean(wd.Enabled)),
				entry("port", "", integer(int64(wd.Port))),
				entry("read_timeout", "", duration(wd.ReadTimeout)),
				entry("write_timeout", "", duration(wd.WriteTimeout)),
				entry("idle_timeout", "", duration(wd.IdleTimeout)),
				entry("shutdown_timeout", "", duration(wd.ShutdownTimeout)),
				entry("max_requests_per_second", "Rate limits (0 = unlimited)", integer(int64(wd.MaxRequestsPerSecond))),
				entry("client_requests_per_second", "", integer(int64(wd.ClientRequestsPerSecond))),
				entry("burst_size", "", integer(int64(wd.BurstSize))),
				entry("default_lock_timeout", "Applied to LOCK requests without a Timeout header", duration(wd.DefaultLockTimeout)),
				entry("max_lock_timeout", "Caps every lock timeout, Infinite included", duration(wd.MaxLockTimeout)),
			)),
		)),
	)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: "# DittoDAV Configuration File\n#\n# Environment variables override these values, e.g. DITTODAV_LOGGING_LEVEL=DEBUG",
		Content:     []*yaml.Node{doc},
	}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func metadataStores(stores map[string]MetadataStoreConfig) *yaml.Node {
	node := mapping()
	for _, name := range sortedKeys(stores) {
		store := stores[name]
		fields := []*yaml.Node{keyNode("type", ""), scalar(store.Type)}
		fields = appendOptions(fields, "memory", store.Memory)
		fields = appendOptions(fields, "badger", store.Badger)
		node.Content = append(node.Content, keyNode(name, ""), &yaml.Node{Kind: yaml.MappingNode, Content: fields})
	}
	return node
}

func contentStores(stores map[string]ContentStoreConfig) *yaml.Node {
	node := mapping()
	for _, name := range sortedKeys(stores) {
		store := stores[name]
		fields := []*yaml.Node{keyNode("type", ""), scalar(store.Type)}
		fields = appendOptions(fields, "filesystem", store.Filesystem)
		fields = appendOptions(fields, "memory", store.Memory)
		fields = appendOptions(fields, "s3", store.S3)
		node.Content = append(node.Content, keyNode(name, ""), &yaml.Node{Kind: yaml.MappingNode, Content: fields})
	}
	return node
}

// appendOptions adds a non-empty option map under key.
func appendOptions(fields []*yaml.Node, key string, options map[string]any) []*yaml.Node {
	if len(options) == 0 {
		return fields
	}
	node := mapping()
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value := &yaml.Node{}
		if err := value.Encode(options[k]); err != nil {
			value = scalar(fmt.Sprint(options[k]))
		}
		node.Content = append(node.Content, keyNode(k, ""), value)
	}
	return append(fields, keyNode(key, ""), node)
}

func shares(list []ShareConfig) *yaml.Node {
	node := &yaml.Node{Kind: yaml.SequenceNode}
	for _, share := range list {
		node.Content = append(node.Content, mapping(
			entry("name", "", scalar(share.Name)),
			entry("metadata_store", "", scalar(share.MetadataStore)),
			entry("content_store", "", scalar(share.ContentStore)),
			entry("read_only", "", boolean(share.ReadOnly)),
			entry("allowed_clients", "IP addresses or CIDR ranges; empty allows everyone", stringList(share.AllowedClients)),
			entry("denied_clients", "Takes precedence over allowed_clients", stringList(share.DeniedClients)),
		))
	}
	return node
}

// ============================================================================
// yaml.Node helpers
// ============================================================================

type pair struct {
	key   *yaml.Node
	value *yaml.Node
}

func entry(key, comment string, value *yaml.Node) pair {
	return pair{key: keyNode(key, comment), value: value}
}

func keyNode(key, comment string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key, HeadComment: comment}
}

func mapping(pairs ...pair) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range pairs {
		node.Content = append(node.Content, p.key, p.value)
	}
	return node
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func boolean(value bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(value)}
}

func integer(value int64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(value, 10)}
}

func duration(d time.Duration) *yaml.Node {
	return scalar(d.String())
}

func stringList(values []string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range values {
		node.Content = append(node.Content, scalar(v))
	}
	return node
}
