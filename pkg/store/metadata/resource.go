package metadata

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// ContentID identifies the bytes backing a file in a content store.
// Collections never have a ContentID.
type ContentID string

// ResourceType distinguishes files from collections.
type ResourceType uint8

const (
	// ResourceTypeFile is a regular resource with byte content.
	ResourceTypeFile ResourceType = iota

	// ResourceTypeCollection is a WebDAV collection (directory).
	ResourceTypeCollection
)

// String returns a human-readable name for the resource type.
func (t ResourceType) String() string {
	switch t {
	case ResourceTypeFile:
		return "file"
	case ResourceTypeCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// Resource is the metadata record of a single file or collection.
//
// Resources are addressed by their absolute, cleaned Path (e.g. "/export/docs/a.txt").
// The ID is assigned at creation and stays stable across Move operations, which
// makes it usable as a ContentID for the resource's bytes.
//
// Attributes hold arbitrary string values keyed by name. The WebDAV layer stores
// custom (dead) properties here using "{namespace}local" keys.
type Resource struct {
	// ID is a random UUID assigned when the resource is created.
	ID uuid.UUID `json:"id"`

	// Path is the absolute, cleaned path of the resource.
	Path string `json:"path"`

	// Type is either ResourceTypeFile or ResourceTypeCollection.
	Type ResourceType `json:"type"`

	// Size is the content length in bytes. Always 0 for collections.
	Size int64 `json:"size"`

	// ContentType is the MIME type detected or supplied on write.
	// Empty when unknown, and always empty for collections.
	ContentType string `json:"content_type,omitempty"`

	// ContentID references the resource's bytes in the content store.
	ContentID ContentID `json:"content_id,omitempty"`

	// CreatedAt is the creation time.
	CreatedAt time.Time `json:"created_at"`

	// ModifiedAt is the last modification time of content or metadata.
	ModifiedAt time.Time `json:"modified_at"`

	// Attributes are arbitrary name/value pairs attached to the resource.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// IsCollection reports whether the resource is a collection.
func (r *Resource) IsCollection() bool {
	return r.Type == ResourceTypeCollection
}

// Clone returns a deep copy of the resource.
//
// Stores hand out clones so callers can never mutate shared state without
// going through the store.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	c := *r
	if r.Attributes != nil {
		c.Attributes = maps.Clone(r.Attributes)
	}
	return &c
}

// NewResource builds a resource record for path with a fresh ID and timestamps.
func NewResource(path string, typ ResourceType, now time.Time) *Resource {
	return &Resource{
		ID:         uuid.New(),
		Path:       CleanPath(path),
		Type:       typ,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}
