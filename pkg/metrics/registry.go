// Package metrics defines the observability interfaces of DittoDAV components
// and owns the Prometheus registry they report into.
//
// All metrics are optional. Components accept a nil metrics value and fall
// back to the no-op implementations in this package, so DittoDAV runs the
// same with or without collection enabled.
//
// Usage:
//
//	// Initialize the registry once (cmd/dittodav does this when enabled)
//	metrics.InitRegistry()
//
//	// Create Prometheus-backed instances
//	webdavMetrics := prometheus.NewWebDAVMetrics()
//	lockMetrics := prometheus.NewLockMetrics()
//
//	// Or pass nil for no-op behavior
//	manager := lock.NewManager() // no metrics
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the process-wide Prometheus registry.
	// Written once under registryOnce, read many times.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// This must be called before creating any metrics instances. It's safe to call
// multiple times - subsequent calls are ignored.
//
// If not called, GetRegistry() will return nil and all metrics constructors
// will return no-op implementations.
//
// Thread safety:
// sync.Once provides the necessary memory barriers to ensure the registry
// write is visible to all subsequent reads.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry.
//
// Returns nil if InitRegistry() has not been called, indicating metrics
// are disabled.
//
// Thread safety:
// Safe to call concurrently. The sync.Once in InitRegistry() provides
// a happens-before relationship ensuring the registry value is visible.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if metrics collection is enabled.
//
// Metrics are enabled if InitRegistry() has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
