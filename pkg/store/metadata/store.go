package metadata

import "context"

// ============================================================================
// MetadataStore Interface
// ============================================================================

// MetadataStore persists the resource hierarchy and per-resource attributes.
//
// The store owns the namespace: which paths exist, whether each is a file or a
// collection, and the string attributes attached to each one. Byte content is
// NOT stored here; resources reference it through ContentID and the caller
// moves bytes through a content store.
//
// Hierarchy Rules:
//   - RootPath always exists and is a collection
//   - Create requires the parent to exist and to be a collection
//   - Delete only removes a single resource; collections must be empty
//   - Move relocates a whole subtree atomically
//
// Error Handling:
// Domain failures are reported as *StoreError with one of the ErrorCode
// values. Infrastructure failures (database I/O, serialization) are returned
// as wrapped errors or as StoreError with ErrIOError.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Every returned *Resource is a private copy owned by the caller.
type MetadataStore interface {
	// Get returns the resource at path.
	//
	// Returns:
	//   - *Resource: A copy of the stored record
	//   - error: StoreError{ErrNotFound} if nothing exists at path
	Get(ctx context.Context, path string) (*Resource, error)

	// Create inserts a new resource.
	//
	// Returns:
	//   - error: ErrAlreadyExists if path is taken, ErrParentNotFound if the
	//     parent is missing, ErrNotDirectory if the parent is a file
	Create(ctx context.Context, res *Resource) error

	// Update replaces the record of an existing resource. The resource type and
	// path cannot be changed through Update.
	//
	// Returns:
	//   - error: ErrNotFound if the resource doesn't exist,
	//     ErrInvalidArgument if the type differs from the stored one
	Update(ctx context.Context, res *Resource) error

	// Delete removes a single resource.
	//
	// Returns:
	//   - error: ErrNotFound if missing, ErrNotEmpty for non-empty collections,
	//     ErrInvalidArgument when asked to delete RootPath
	Delete(ctx context.Context, path string) error

	// Children lists the direct members of a collection, sorted by path.
	//
	// Returns:
	//   - error: ErrNotFound if missing, ErrNotDirectory for files
	Children(ctx context.Context, path string) ([]*Resource, error)

	// Move relocates the resource at from, and everything below it, to to.
	// The destination must not exist and its parent must be a collection.
	Move(ctx context.Context, from, to string) error

	// SetAttribute stores value under name on the resource at path.
	SetAttribute(ctx context.Context, path, name, value string) error

	// RemoveAttribute deletes the named attribute. Removing an attribute that
	// is not set succeeds.
	RemoveAttribute(ctx context.Context, path, name string) error

	// Close releases resources held by the store.
	Close() error
}
