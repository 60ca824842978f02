package config

import (
	"github.com/marmos91/dittodav/pkg/metrics"
	promMetrics "github.com/marmos91/dittodav/pkg/metrics/prometheus"
	"github.com/marmos91/dittodav/pkg/store/content/s3"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// WebDAVMetrics instruments the WebDAV handler (never nil)
	WebDAVMetrics metrics.WebDAVMetrics

	// LockMetrics instruments the lock manager and condition evaluator (never nil)
	LockMetrics metrics.LockMetrics

	// S3Metrics instruments S3 content stores (nil if disabled)
	S3Metrics s3.S3Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled, the global Prometheus registry is initialized and
// Prometheus-backed collectors are returned together with the HTTP server.
// Otherwise the server is nil and the collectors are no-ops.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return noopMetrics()
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server:        metrics.NewServer(cfg.Server.Metrics.Port, cfg.Server.ShutdownTimeout),
		WebDAVMetrics: promMetrics.NewWebDAVMetrics(),
		LockMetrics:   promMetrics.NewLockMetrics(),
		S3Metrics:     promMetrics.NewS3Metrics(),
	}
}

func noopMetrics() *MetricsResult {
	return &MetricsResult{
		WebDAVMetrics: metrics.NewNoopWebDAVMetrics(),
		LockMetrics:   metrics.NewNoopLockMetrics(),
	}
}
