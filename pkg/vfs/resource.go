package vfs

import (
	"context"
	"sort"
	"time"

	"github.com/marmos91/dittodav/pkg/store/metadata"
)

// Resource is a snapshot of one file or collection, bound to the FileSystem
// it came from so attribute changes write through to the store.
type Resource struct {
	fs  *FileSystem
	rec *metadata.Resource
}

// Path returns the resource identity, its absolute URL path.
func (r *Resource) Path() string { return r.rec.Path }

// Name returns the last path segment.
func (r *Resource) Name() string { return metadata.BaseName(r.rec.Path) }

func (r *Resource) IsCollection() bool { return r.rec.IsCollection() }

func (r *Resource) Size() int64 { return r.rec.Size }

func (r *Resource) ContentType() string { return r.rec.ContentType }

func (r *Resource) LastModified() time.Time { return r.rec.ModifiedAt }

// Record returns a copy of the underlying metadata record.
func (r *Resource) Record() *metadata.Resource { return r.rec.Clone() }

// Attribute returns a custom attribute from the snapshot.
func (r *Resource) Attribute(_ context.Context, name string) (string, bool, error) {
	value, ok := r.rec.Attributes[name]
	return value, ok, nil
}

// AttributeNames returns the custom attribute names in sorted order.
func (r *Resource) AttributeNames(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(r.rec.Attributes))
	for name := range r.rec.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SetAttribute writes through to the store and updates the snapshot.
func (r *Resource) SetAttribute(ctx context.Context, name, value string) error {
	if err := r.fs.SetAttribute(ctx, r.rec.Path, name, value); err != nil {
		return err
	}
	if r.rec.Attributes == nil {
		r.rec.Attributes = make(map[string]string)
	}
	r.rec.Attributes[name] = value
	return nil
}

// RemoveAttribute writes through to the store and updates the snapshot.
func (r *Resource) RemoveAttribute(ctx context.Context, name string) error {
	if err := r.fs.RemoveAttribute(ctx, r.rec.Path, name); err != nil {
		return err
	}
	delete(r.rec.Attributes, name)
	return nil
}
