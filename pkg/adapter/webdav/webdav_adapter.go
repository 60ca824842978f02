package webdav

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/metrics"
	"github.com/marmos91/dittodav/pkg/registry"
)

// WebDAVAdapter implements the adapter.Adapter interface for WebDAV
// (RFC 4918 class 1 and 2).
//
// The adapter owns an http.Server whose handler is a Handler bound to the
// registry injected by SetRegistry. Every share is served under "/<name>/".
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. http.Server.Shutdown closes the listener and waits for in-flight
//     requests (up to ShutdownTimeout)
//  3. Remaining connections are closed forcibly after the timeout
//
// Thread safety:
// All methods are safe for concurrent use. Stop is idempotent.
type WebDAVAdapter struct {
	config WebDAVConfig

	registry *registry.Registry
	handler  *Handler
	server   *http.Server

	webdavMetrics metrics.WebDAVMetrics
	lockMetrics   metrics.LockMetrics

	// port is the bound port once Serve is listening.
	port atomic.Int32

	shutdownOnce sync.Once
	shutdownErr  error
	started      chan struct{}
}

// WebDAVConfig holds configuration parameters for the WebDAV server.
//
// Default values (applied by New if zero):
//   - Port: 8080
//   - ReadTimeout: 5m
//   - WriteTimeout: 5m
//   - IdleTimeout: 2m
//   - ShutdownTimeout: 30s
//   - DefaultLockTimeout: 1h
//   - MaxLockTimeout: 24h
//   - MaxRequestsPerSecond: 0 (unlimited)
//   - ClientRequestsPerSecond: 0 (unlimited)
type WebDAVConfig struct {
	// Enabled controls whether the WebDAV adapter is active.
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port to listen on.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// ReadTimeout bounds reading a complete request, body included.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds writing a response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// IdleTimeout closes keep-alive connections idle for longer.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout is the maximum duration to wait for in-flight requests
	// during graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// MaxRequestsPerSecond limits the sustained request rate across all
	// clients. 0 disables the global limit.
	MaxRequestsPerSecond uint `mapstructure:"max_requests_per_second"`

	// ClientRequestsPerSecond limits the sustained request rate of each
	// client host. 0 disables per-client limiting.
	ClientRequestsPerSecond uint `mapstructure:"client_requests_per_second"`

	// BurstSize is the bucket size of both limiters. 0 means one second of
	// the corresponding rate.
	BurstSize uint `mapstructure:"burst_size"`

	// DefaultLockTimeout applies to LOCK requests without a Timeout header.
	DefaultLockTimeout time.Duration `mapstructure:"default_lock_timeout" validate:"min=0"`

	// MaxLockTimeout caps every requested lock timeout, Infinite included.
	// 0 allows infinite locks.
	MaxLockTimeout time.Duration `mapstructure:"max_lock_timeout" validate:"min=0"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *WebDAVConfig) applyDefaults() {
	// Note: Enabled field defaults are handled in pkg/config/defaults.go
	// to allow explicit false values from configuration files.

	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.DefaultLockTimeout == 0 {
		c.DefaultLockTimeout = time.Hour
	}
	if c.MaxLockTimeout == 0 {
		c.MaxLockTimeout = 24 * time.Hour
	}
}

// validate checks that the configuration is usable.
func (c *WebDAVConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("invalid timeouts: must be >= 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.MaxLockTimeout > 0 && c.DefaultLockTimeout > c.MaxLockTimeout {
		return fmt.Errorf("DefaultLockTimeout %v exceeds MaxLockTimeout %v", c.DefaultLockTimeout, c.MaxLockTimeout)
	}
	return nil
}

// New creates a WebDAVAdapter in a stopped state. Call SetRegistry, then
// Serve.
//
// Nil metrics select the no-op implementations. New panics if the
// configuration is invalid after defaults are applied, which indicates a
// programmer error.
func New(config WebDAVConfig, webdavMetrics metrics.WebDAVMetrics, lockMetrics metrics.LockMetrics) *WebDAVAdapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid WebDAV config: %v", err))
	}

	if webdavMetrics == nil {
		webdavMetrics = metrics.NewNoopWebDAVMetrics()
	}
	if lockMetrics == nil {
		lockMetrics = metrics.NewNoopLockMetrics()
	}

	return &WebDAVAdapter{
		config:        config,
		webdavMetrics: webdavMetrics,
		lockMetrics:   lockMetrics,
		started:       make(chan struct{}),
	}
}

// SetRegistry injects the shared registry and builds the request handler.
func (s *WebDAVAdapter) SetRegistry(reg *registry.Registry) {
	s.registry = reg
	s.handler = NewHandler(reg, s.config, s.webdavMetrics, s.lockMetrics)
	logger.Debug("WebDAV registry configured with %d share(s)", reg.CountShares())
}

// Handler returns the request handler. It is nil before SetRegistry.
func (s *WebDAVAdapter) Handler() *Handler {
	return s.handler
}

// Serve listens on the configured port and blocks until ctx is cancelled or
// the server fails.
func (s *WebDAVAdapter) Serve(ctx context.Context) error {
	if s.handler == nil {
		return fmt.Errorf("WebDAV adapter has no registry")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create WebDAV listener on port %d: %w", s.config.Port, err)
	}
	return s.serve(ctx, listener)
}

func (s *WebDAVAdapter) serve(ctx context.Context, listener net.Listener) error {
	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.port.Store(int32(addr.Port))
	}

	s.server = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	close(s.started)

	logger.Info("WebDAV server listening on port %d", s.Port())
	logger.Debug("WebDAV config: read_timeout=%v write_timeout=%v idle_timeout=%v default_lock_timeout=%v max_lock_timeout=%v",
		s.config.ReadTimeout, s.config.WriteTimeout, s.config.IdleTimeout, s.config.DefaultLockTimeout, s.config.MaxLockTimeout)

	go s.handler.pruneLoop(ctx)

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		logger.Info("WebDAV shutdown signal received: %v", ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err, ok := <-errChan:
		if !ok {
			// Stop was called directly.
			return nil
		}
		return fmt.Errorf("WebDAV server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Requests still running when ctx
// expires are cut off.
func (s *WebDAVAdapter) Stop(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		select {
		case <-s.started:
		default:
			// Never served; nothing to shut down.
			return
		}

		logger.Debug("WebDAV shutdown initiated")
		if err := s.server.Shutdown(ctx); err != nil {
			logger.Warn("WebDAV graceful shutdown timed out, closing connections: %v", err)
			_ = s.server.Close()
			s.shutdownErr = fmt.Errorf("WebDAV shutdown: %w", err)
			return
		}
		logger.Info("WebDAV server stopped gracefully")
	})
	return s.shutdownErr
}

// Protocol returns "WebDAV".
func (s *WebDAVAdapter) Protocol() string {
	return "WebDAV"
}

// Port returns the bound port, or the configured one before Serve.
func (s *WebDAVAdapter) Port() int {
	if p := s.port.Load(); p > 0 {
		return int(p)
	}
	return s.config.Port
}
