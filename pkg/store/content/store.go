package content

import (
	"context"
	"io"
	"strings"

	"github.com/marmos91/dittodav/pkg/store/metadata"
)

// ============================================================================
// ContentStore Interface
// ============================================================================

// ContentStore manages the raw bytes of file resources.
//
// The content store knows nothing about paths, collections or properties;
// those live in the MetadataStore. A file resource references its bytes
// through its ContentID, which the content store treats as an opaque key.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Concurrent writes to the
// same ContentID are last-write-wins.
type ContentStore interface {
	// ReadContent returns a reader for the content. The caller closes it.
	//
	// Returns ErrContentNotFound if the content does not exist.
	ReadContent(ctx context.Context, id metadata.ContentID) (io.ReadCloser, error)

	// WriteContent replaces the content with data, creating it if needed.
	WriteContent(ctx context.Context, id metadata.ContentID, data []byte) error

	// GetContentSize returns the content length in bytes.
	//
	// Returns ErrContentNotFound if the content does not exist.
	GetContentSize(ctx context.Context, id metadata.ContentID) (int64, error)

	// ContentExists reports whether the content exists.
	ContentExists(ctx context.Context, id metadata.ContentID) (bool, error)

	// Delete removes the content. Deleting missing content is not an error.
	Delete(ctx context.Context, id metadata.ContentID) error

	// Close releases backend resources.
	Close() error
}

// ValidateID rejects IDs that are empty or contain path traversal segments.
func ValidateID(id metadata.ContentID) error {
	s := string(id)
	if strings.TrimSpace(s) == "" {
		return ErrInvalidContentID
	}
	for _, part := range strings.Split(s, "/") {
		if part == ".." {
			return ErrInvalidContentID
		}
	}
	return nil
}
