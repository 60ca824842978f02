package content

import "errors"

// ============================================================================
// Standard Content Store Errors
// ============================================================================

// These errors give every content store implementation a consistent way to
// report common failures. The WebDAV adapter maps them to HTTP status codes.
//
// Implementations wrap them with the content ID:
//
//	if !exists {
//	    return fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
//	}
var (
	// ErrContentNotFound indicates the requested content does not exist.
	//
	// HTTP: 404 Not Found
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidContentID indicates the ContentID is empty or would escape
	// the store's namespace.
	//
	// HTTP: 400 Bad Request
	ErrInvalidContentID = errors.New("invalid content ID")

	// ErrTooLarge indicates the content exceeds the store's size limit.
	//
	// HTTP: 413 Payload Too Large
	ErrTooLarge = errors.New("content too large")

	// ErrUnavailable indicates the backend is temporarily unavailable.
	//
	// HTTP: 503 Service Unavailable
	ErrUnavailable = errors.New("storage unavailable")
)
