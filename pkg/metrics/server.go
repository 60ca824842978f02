package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultPort            = 9090
	defaultShutdownTimeout = 5 * time.Second
)

// Server exposes the global registry at /metrics.
type Server struct {
	server          *http.Server
	port            int
	shutdownTimeout time.Duration

	stopOnce sync.Once
	stopErr  error
}

// NewServer returns a stopped server. A non-positive port selects 9090 and a
// non-positive shutdownTimeout selects 5s.
func NewServer(port int, shutdownTimeout time.Duration) *Server {
	if port <= 0 {
		port = defaultPort
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", serveMetrics)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		port:            port,
		shutdownTimeout: shutdownTimeout,
	}
}

// serveMetrics resolves the registry per request so a server built before
// InitRegistry still serves it.
func serveMetrics(w http.ResponseWriter, r *http.Request) {
	registry := GetRegistry()
	if registry == nil {
		http.Error(w, "metrics collection is disabled", http.StatusServiceUnavailable)
		return
	}
	promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true}).ServeHTTP(w, r)
}

// Start listens on the configured port and serves until ctx is cancelled.
// A listen failure is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("metrics server failed to listen on port %d: %w", s.port, err)
	}
	logger.Info("Metrics server listening on port %d", s.port)

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(listener) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop shuts the server down. Later calls return the first result.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			s.stopErr = fmt.Errorf("metrics server shutdown error: %w", err)
			return
		}
		logger.Info("Metrics server stopped")
	})
	return s.stopErr
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.port
}
