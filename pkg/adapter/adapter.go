package adapter

import (
	"context"

	"github.com/marmos91/dittodav/pkg/registry"
)

// Adapter represents a protocol-specific server adapter that can be managed by DittoServer.
//
// Each adapter exposes the registry's shares over one protocol and provides a
// unified interface for lifecycle management. All adapters share the same
// stores and the same lock manager, so a lock taken through one protocol is
// honoured by every other.
//
// Lifecycle:
//  1. Creation: Adapter is created with protocol-specific configuration
//  2. Registry injection: SetRegistry() provides shared backend access
//  3. Startup: Serve() starts the protocol server and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. SetRegistry() is called
// once before Serve(), but Stop() may be called concurrently with Serve().
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful shutdown:
	//   - Stop accepting new connections
	//   - Wait for active requests to complete (with timeout)
	//   - Return nil
	//
	// If Serve returns before context cancellation, DittoServer treats it as
	// a fatal error and stops all other adapters.
	Serve(ctx context.Context) error

	// SetRegistry injects the shared registry containing all stores, shares
	// and the lock manager. Called exactly once before Serve().
	SetRegistry(reg *registry.Registry)

	// Stop initiates graceful shutdown of the protocol server.
	//
	// Implementations must be idempotent, safe to call concurrently with
	// Serve(), and respect the context deadline.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging and metrics.
	//
	// Examples: "WebDAV"
	Protocol() string

	// Port returns the TCP port the adapter is listening on, or 0 before
	// Serve() is called.
	Port() int
}
