package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/adapter"
	"github.com/marmos91/dittodav/pkg/metrics"
	"github.com/marmos91/dittodav/pkg/registry"
	"golang.org/x/sync/errgroup"
)

// defaultStopTimeout bounds the Stop calls issued on shutdown unless
// SetStopTimeout picks another value.
const defaultStopTimeout = 30 * time.Second

// DittoServer manages the lifecycle of the protocol adapters serving one
// registry, plus the optional metrics HTTP server.
//
// Lifecycle:
//  1. Creation: New() with the registry
//  2. Registration: AddAdapter() for each protocol
//  3. Startup: Serve() runs every adapter in an errgroup
//  4. Shutdown: context cancellation, or the first adapter failure, stops
//     all adapters in reverse registration order
//
// Thread safety:
// AddAdapter() may be called concurrently before Serve(). Serve() may only be
// called once per server instance.
type DittoServer struct {
	registry *registry.Registry
	metrics  *metrics.Server

	mu          sync.Mutex
	adapters    []adapter.Adapter
	served      bool
	stopTimeout time.Duration
}

// New creates a DittoServer over reg. metricsServer may be nil.
//
// Panics if reg is nil (indicates programmer error).
func New(reg *registry.Registry, metricsServer *metrics.Server) *DittoServer {
	if reg == nil {
		panic("registry cannot be nil")
	}
	return &DittoServer{
		registry:    reg,
		metrics:     metricsServer,
		adapters:    make([]adapter.Adapter, 0, 2),
		stopTimeout: defaultStopTimeout,
	}
}

// SetStopTimeout changes how long shutdown waits for the adapters. Zero or
// negative values are ignored.
func (s *DittoServer) SetStopTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.stopTimeout = d
	s.mu.Unlock()
}

// AddAdapter injects the registry into a and registers it. Duplicate
// protocols and port conflicts are refused.
//
// Panics if a is nil or Serve() has already been called.
func (s *DittoServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()
	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}
	if s.metrics != nil && s.metrics.Port() == port {
		return fmt.Errorf("port %d already in use by the metrics server", port)
	}

	a.SetRegistry(s.registry)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Serve starts every adapter and the metrics server, and blocks until ctx
// is cancelled or one of them fails.
//
// Returns:
//   - ctx.Err() after a shutdown triggered by cancellation
//   - the first adapter error otherwise
func (s *DittoServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		panic("Serve() has already been called on this server instance")
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := append([]adapter.Adapter(nil), s.adapters...)
	s.mu.Unlock()

	logger.Info("Starting DittoServer with %d adapter(s) and %d share(s)", len(adapters), s.registry.CountShares())

	group, gctx := errgroup.WithContext(ctx)
	startTime := time.Now()

	for _, a := range adapters {
		group.Go(func() error {
			logger.Info("Starting %s adapter on port %d", a.Protocol(), a.Port())
			if err := a.Serve(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("%s adapter failed: %v", a.Protocol(), err)
				return fmt.Errorf("%s adapter error: %w", a.Protocol(), err)
			}
			if gctx.Err() == nil {
				return fmt.Errorf("%s adapter stopped unexpectedly", a.Protocol())
			}
			logger.Debug("%s adapter stopped", a.Protocol())
			return nil
		})
	}

	if s.metrics != nil {
		group.Go(func() error {
			return s.metrics.Start(gctx)
		})
	}

	// Once the group context is done, stop adapters in reverse order so
	// in-flight requests drain before the registry is closed.
	group.Go(func() error {
		<-gctx.Done()
		s.stopAllAdapters(adapters)
		return nil
	})

	logger.Debug("All components launched in %v", time.Since(startTime))

	err := group.Wait()
	if ctx.Err() != nil {
		logger.Info("DittoServer stopped (reason: %v)", ctx.Err())
		return ctx.Err()
	}
	logger.Error("DittoServer stopped after a failure: %v", err)
	return err
}

// stopAllAdapters asks each adapter to shut down, last registered first.
// Errors are logged and the remaining adapters are still stopped.
func (s *DittoServer) stopAllAdapters(adapters []adapter.Adapter) {
	s.mu.Lock()
	timeout := s.stopTimeout
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))
	for i := len(adapters) - 1; i >= 0; i-- {
		a := adapters[i]
		if err := a.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", a.Protocol(), err)
			continue
		}
		logger.Debug("%s adapter stop signal sent", a.Protocol())
	}
}

// Adapters returns a snapshot of the registered adapters.
func (s *DittoServer) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]adapter.Adapter(nil), s.adapters...)
}
