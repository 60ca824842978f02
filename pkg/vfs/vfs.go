// Package vfs binds one metadata store and one content store into the
// resource surface the WebDAV handler works against.
//
// Paths are absolute URL paths including the share prefix ("/docs/a.txt").
// They are stored verbatim in the metadata store, so several shares can share
// one store without colliding.
package vfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"path"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/marmos91/dittodav/pkg/store/metadata"
)

// DepthInfinity selects a full recursive copy.
const DepthInfinity = -1

// ErrReadOnly is returned by every mutating operation on a read-only share.
var ErrReadOnly = errors.New("share is read-only")

// FileSystem is the resource adapter for one share.
type FileSystem struct {
	root     string
	meta     metadata.MetadataStore
	content  content.ContentStore
	readOnly bool
	now      func() time.Time
}

// Option configures a FileSystem.
type Option func(*FileSystem)

// WithReadOnly rejects every mutation with ErrReadOnly.
func WithReadOnly(readOnly bool) Option {
	return func(fs *FileSystem) { fs.readOnly = readOnly }
}

// WithClock overrides the time source used for modification times.
func WithClock(now func() time.Time) Option {
	return func(fs *FileSystem) { fs.now = now }
}

// New returns the adapter for the share rooted at root (e.g. "/docs").
func New(root string, meta metadata.MetadataStore, store content.ContentStore, opts ...Option) *FileSystem {
	fs := &FileSystem{
		root:    metadata.CleanPath(root),
		meta:    meta,
		content: store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Root returns the share root path.
func (fs *FileSystem) Root() string {
	return fs.root
}

// ReadOnly reports whether the share rejects mutations.
func (fs *FileSystem) ReadOnly() bool {
	return fs.readOnly
}

// EnsureRoot creates the share's root collection if it does not exist yet.
// Re-running it against a persistent store is a no-op.
func (fs *FileSystem) EnsureRoot(ctx context.Context) error {
	if fs.root == metadata.RootPath {
		return nil
	}

	_, err := fs.meta.Get(ctx, fs.root)
	if err == nil {
		return nil
	}
	if !metadata.IsNotFound(err) {
		return err
	}

	// Create intermediate collections for nested share roots.
	parent := metadata.ParentPath(fs.root)
	if parent != metadata.RootPath {
		if err := New(parent, fs.meta, fs.content).EnsureRoot(ctx); err != nil {
			return err
		}
	}

	err = fs.meta.Create(ctx, metadata.NewResource(fs.root, metadata.ResourceTypeCollection, fs.now()))
	if metadata.HasCode(err, metadata.ErrAlreadyExists) {
		return nil
	}
	return err
}

// Resolve returns the resource at p.
func (fs *FileSystem) Resolve(ctx context.Context, p string) (*Resource, error) {
	rec, err := fs.meta.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Resource{fs: fs, rec: rec}, nil
}

// Exists reports whether a resource exists at p.
func (fs *FileSystem) Exists(ctx context.Context, p string) (bool, error) {
	_, err := fs.meta.Get(ctx, p)
	if err == nil {
		return true, nil
	}
	if metadata.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// IsCollection reports whether p is an existing collection.
func (fs *FileSystem) IsCollection(ctx context.Context, p string) (bool, error) {
	rec, err := fs.meta.Get(ctx, p)
	if err != nil {
		if metadata.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return rec.IsCollection(), nil
}

// LastModified returns the modification time of p.
func (fs *FileSystem) LastModified(ctx context.Context, p string) (time.Time, error) {
	rec, err := fs.meta.Get(ctx, p)
	if err != nil {
		return time.Time{}, err
	}
	return rec.ModifiedAt, nil
}

// Open returns a reader over the bytes of the file at p. The caller closes it.
func (fs *FileSystem) Open(ctx context.Context, p string) (io.ReadCloser, *Resource, error) {
	res, err := fs.Resolve(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	if res.IsCollection() {
		return nil, nil, metadata.NewError(metadata.ErrIsDirectory, "cannot read a collection", res.Path())
	}

	reader, err := fs.content.ReadContent(ctx, res.rec.ContentID)
	if errors.Is(err, content.ErrContentNotFound) {
		// Files created by LOCK on an unmapped URL have no content yet.
		return io.NopCloser(bytes.NewReader(nil)), res, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return reader, res, nil
}

// Write replaces the bytes of the file at p, creating it if needed.
// It reports whether the file was newly created.
func (fs *FileSystem) Write(ctx context.Context, p string, data []byte) (bool, error) {
	if fs.readOnly {
		return false, ErrReadOnly
	}

	p = metadata.CleanPath(p)
	contentType := detectContentType(p, data)

	existing, err := fs.meta.Get(ctx, p)
	switch {
	case err == nil:
		if existing.IsCollection() {
			return false, metadata.NewError(metadata.ErrIsDirectory, "cannot write to a collection", p)
		}
		if err := fs.content.WriteContent(ctx, existing.ContentID, data); err != nil {
			return false, fmt.Errorf("failed to write content for %s: %w", p, err)
		}
		existing.Size = int64(len(data))
		existing.ContentType = contentType
		existing.ModifiedAt = fs.now()
		return false, fs.meta.Update(ctx, existing)

	case !metadata.IsNotFound(err):
		return false, err
	}

	if err := fs.checkParent(ctx, p); err != nil {
		return false, err
	}

	rec := metadata.NewResource(p, metadata.ResourceTypeFile, fs.now())
	rec.ContentID = metadata.ContentID(rec.ID.String())
	rec.Size = int64(len(data))
	rec.ContentType = contentType

	if err := fs.content.WriteContent(ctx, rec.ContentID, data); err != nil {
		return false, fmt.Errorf("failed to write content for %s: %w", p, err)
	}
	if err := fs.meta.Create(ctx, rec); err != nil {
		if delErr := fs.content.Delete(ctx, rec.ContentID); delErr != nil {
			logger.Warn("vfs: failed to remove orphaned content %s: %v", rec.ContentID, delErr)
		}
		return false, err
	}
	return true, nil
}

// Mkcol creates a collection at p.
func (fs *FileSystem) Mkcol(ctx context.Context, p string) error {
	if fs.readOnly {
		return ErrReadOnly
	}

	p = metadata.CleanPath(p)
	if err := fs.checkParent(ctx, p); err != nil {
		return err
	}
	return fs.meta.Create(ctx, metadata.NewResource(p, metadata.ResourceTypeCollection, fs.now()))
}

// Children lists the direct members of the collection at p.
func (fs *FileSystem) Children(ctx context.Context, p string) ([]*Resource, error) {
	recs, err := fs.meta.Children(ctx, p)
	if err != nil {
		return nil, err
	}

	result := make([]*Resource, 0, len(recs))
	for _, rec := range recs {
		result = append(result, &Resource{fs: fs, rec: rec})
	}
	return result, nil
}

// Attribute returns the custom attribute name of p.
func (fs *FileSystem) Attribute(ctx context.Context, p, name string) (string, bool, error) {
	rec, err := fs.meta.Get(ctx, p)
	if err != nil {
		return "", false, err
	}
	value, ok := rec.Attributes[name]
	return value, ok, nil
}

// SetAttribute stores a custom attribute on p.
func (fs *FileSystem) SetAttribute(ctx context.Context, p, name, value string) error {
	if fs.readOnly {
		return ErrReadOnly
	}
	return fs.meta.SetAttribute(ctx, p, name, value)
}

// RemoveAttribute deletes a custom attribute from p.
func (fs *FileSystem) RemoveAttribute(ctx context.Context, p, name string) error {
	if fs.readOnly {
		return ErrReadOnly
	}
	return fs.meta.RemoveAttribute(ctx, p, name)
}

// Delete removes p and, for collections, everything below it. It returns the
// deleted paths so the caller can release locks held on them.
func (fs *FileSystem) Delete(ctx context.Context, p string) ([]string, error) {
	if fs.readOnly {
		return nil, ErrReadOnly
	}

	p = metadata.CleanPath(p)
	if p == fs.root {
		return nil, metadata.NewError(metadata.ErrInvalidArgument, "cannot delete the share root", p)
	}

	rec, err := fs.meta.Get(ctx, p)
	if err != nil {
		return nil, err
	}

	var deleted []string
	if err := fs.deleteTree(ctx, rec, &deleted); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// deleteTree removes rec bottom-up, children before their collection.
func (fs *FileSystem) deleteTree(ctx context.Context, rec *metadata.Resource, deleted *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if rec.IsCollection() {
		children, err := fs.meta.Children(ctx, rec.Path)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := fs.deleteTree(ctx, child, deleted); err != nil {
				return err
			}
		}
	}

	if err := fs.meta.Delete(ctx, rec.Path); err != nil {
		return err
	}
	*deleted = append(*deleted, rec.Path)

	if !rec.IsCollection() && rec.ContentID != "" {
		if err := fs.content.Delete(ctx, rec.ContentID); err != nil {
			logger.Warn("vfs: failed to delete content %s of %s: %v", rec.ContentID, rec.Path, err)
		}
	}
	return nil
}

// Rename moves the subtree at from to to. The destination must not exist.
func (fs *FileSystem) Rename(ctx context.Context, from, to string) error {
	if fs.readOnly {
		return ErrReadOnly
	}

	from = metadata.CleanPath(from)
	to = metadata.CleanPath(to)
	if from == fs.root {
		return metadata.NewError(metadata.ErrInvalidArgument, "cannot move the share root", from)
	}
	if err := fs.checkParent(ctx, to); err != nil {
		return err
	}

	if err := fs.meta.Move(ctx, from, to); err != nil {
		return err
	}

	moved, err := fs.meta.Get(ctx, to)
	if err != nil {
		return err
	}
	moved.ModifiedAt = fs.now()
	return fs.meta.Update(ctx, moved)
}

// Copy duplicates from at to. Collections are copied with their members
// when depth is DepthInfinity, and alone when depth is 0. Copies receive new
// identities and their own content.
func (fs *FileSystem) Copy(ctx context.Context, from, to string, depth int) error {
	if fs.readOnly {
		return ErrReadOnly
	}

	from = metadata.CleanPath(from)
	to = metadata.CleanPath(to)
	if from == to || metadata.IsDescendant(to, from) {
		return metadata.NewError(metadata.ErrInvalidArgument, "cannot copy a resource into itself", to)
	}

	src, err := fs.meta.Get(ctx, from)
	if err != nil {
		return err
	}
	if err := fs.checkParent(ctx, to); err != nil {
		return err
	}
	return fs.copyTree(ctx, src, to, depth)
}

func (fs *FileSystem) copyTree(ctx context.Context, src *metadata.Resource, to string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := metadata.NewResource(to, src.Type, fs.now())
	dst.Size = src.Size
	dst.ContentType = src.ContentType
	if len(src.Attributes) > 0 {
		dst.Attributes = maps.Clone(src.Attributes)
	}

	if !src.IsCollection() {
		dst.ContentID = metadata.ContentID(dst.ID.String())
		if err := fs.copyContent(ctx, src.ContentID, dst.ContentID); err != nil {
			return err
		}
	}

	if err := fs.meta.Create(ctx, dst); err != nil {
		return err
	}

	if !src.IsCollection() || depth == 0 {
		return nil
	}

	children, err := fs.meta.Children(ctx, src.Path)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := fs.copyTree(ctx, child, path.Join(to, metadata.BaseName(child.Path)), depth); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FileSystem) copyContent(ctx context.Context, from, to metadata.ContentID) error {
	reader, err := fs.content.ReadContent(ctx, from)
	if errors.Is(err, content.ErrContentNotFound) {
		return fs.content.WriteContent(ctx, to, nil)
	}
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read content %s: %w", from, err)
	}
	return fs.content.WriteContent(ctx, to, data)
}

// checkParent verifies that the parent of p is an existing collection.
func (fs *FileSystem) checkParent(ctx context.Context, p string) error {
	parentPath := metadata.ParentPath(p)
	parent, err := fs.meta.Get(ctx, parentPath)
	if metadata.IsNotFound(err) {
		return metadata.NewError(metadata.ErrParentNotFound, "parent collection not found", parentPath)
	}
	if err != nil {
		return err
	}
	if !parent.IsCollection() {
		return metadata.NewError(metadata.ErrNotDirectory, "parent is not a collection", parentPath)
	}
	return nil
}

// detectContentType prefers the extension and falls back to sniffing the body.
// Empty bodies without a known extension have no content type.
func detectContentType(p string, data []byte) string {
	if byExt := mime.TypeByExtension(path.Ext(p)); byExt != "" {
		return byExt
	}
	if len(data) == 0 {
		return ""
	}
	return mimetype.Detect(data).String()
}
