package vfs

import (
	"context"
	"io"
	"testing"
	"time"

	contentmemory "github.com/marmos91/dittodav/pkg/store/content/memory"
	"github.com/marmos91/dittodav/pkg/store/metadata"
	metamemory "github.com/marmos91/dittodav/pkg/store/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T, opts ...Option) (*FileSystem, *contentmemory.MemoryContentStore) {
	t.Helper()
	store, err := contentmemory.NewMemoryContentStore(context.Background(), contentmemory.MemoryContentStoreConfig{})
	require.NoError(t, err)

	fs := New("/share", metamemory.NewMemoryMetadataStoreWithDefaults(), store, opts...)
	require.NoError(t, fs.EnsureRoot(context.Background()))
	return fs, store
}

func readAll(t *testing.T, fs *FileSystem, p string) string {
	t.Helper()
	reader, _, err := fs.Open(context.Background(), p)
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	return string(data)
}

func TestEnsureRoot(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, fs.EnsureRoot(ctx))

	isCol, err := fs.IsCollection(ctx, "/share")
	require.NoError(t, err)
	assert.True(t, isCol)

	nested := New("/a/b", fs.meta, fs.content)
	require.NoError(t, nested.EnsureRoot(ctx))
	exists, err := fs.Exists(ctx, "/a")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWriteAndOpen(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	created, err := fs.Write(ctx, "/share/a.txt", []byte("hello"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "hello", readAll(t, fs, "/share/a.txt"))

	created, err = fs.Write(ctx, "/share/a.txt", []byte("bye"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "bye", readAll(t, fs, "/share/a.txt"))

	res, err := fs.Resolve(ctx, "/share/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Size())
	assert.Contains(t, res.ContentType(), "text/plain")
	assert.Equal(t, "a.txt", res.Name())
}

func TestWriteDetectsContentType(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	_, err := fs.Write(ctx, "/share/noext", png)
	require.NoError(t, err)

	res, err := fs.Resolve(ctx, "/share/noext")
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.ContentType())

	_, err = fs.Write(ctx, "/share/empty", nil)
	require.NoError(t, err)
	res, err = fs.Resolve(ctx, "/share/empty")
	require.NoError(t, err)
	assert.Empty(t, res.ContentType())
}

func TestWriteErrors(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	_, err := fs.Write(ctx, "/share/missing/a.txt", []byte("x"))
	assert.True(t, metadata.HasCode(err, metadata.ErrParentNotFound))

	require.NoError(t, fs.Mkcol(ctx, "/share/dir"))
	_, err = fs.Write(ctx, "/share/dir", []byte("x"))
	assert.True(t, metadata.HasCode(err, metadata.ErrIsDirectory))

	_, err = fs.Write(ctx, "/share/file", []byte("x"))
	require.NoError(t, err)
	_, err = fs.Write(ctx, "/share/file/child", []byte("x"))
	assert.True(t, metadata.HasCode(err, metadata.ErrNotDirectory))
}

func TestOpenCollection(t *testing.T) {
	fs, _ := newTestFS(t)

	_, _, err := fs.Open(context.Background(), "/share")
	assert.True(t, metadata.HasCode(err, metadata.ErrIsDirectory))
}

func TestMkcol(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, fs.Mkcol(ctx, "/share/dir"))
	assert.True(t, metadata.HasCode(fs.Mkcol(ctx, "/share/dir"), metadata.ErrAlreadyExists))
	assert.True(t, metadata.HasCode(fs.Mkcol(ctx, "/share/x/y"), metadata.ErrParentNotFound))
}

func TestDeleteRecursive(t *testing.T) {
	fs, store := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, fs.Mkcol(ctx, "/share/dir"))
	require.NoError(t, fs.Mkcol(ctx, "/share/dir/sub"))
	_, err := fs.Write(ctx, "/share/dir/sub/a", []byte("a"))
	require.NoError(t, err)
	_, err = fs.Write(ctx, "/share/dir/b", []byte("b"))
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	deleted, err := fs.Delete(ctx, "/share/dir")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/share/dir", "/share/dir/sub", "/share/dir/sub/a", "/share/dir/b"}, deleted)
	assert.Equal(t, 0, store.Len())

	exists, err := fs.Exists(ctx, "/share/dir")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = fs.Delete(ctx, "/share")
	assert.True(t, metadata.HasCode(err, metadata.ErrInvalidArgument))
}

func TestRename(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fs, _ := newTestFS(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, fs.Mkcol(ctx, "/share/src"))
	_, err := fs.Write(ctx, "/share/src/a", []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, fs.SetAttribute(ctx, "/share/src/a", "{urn:x}k", "v"))

	now = now.Add(time.Hour)
	require.NoError(t, fs.Rename(ctx, "/share/src", "/share/dst"))

	assert.Equal(t, "payload", readAll(t, fs, "/share/dst/a"))
	value, ok, err := fs.Attribute(ctx, "/share/dst/a", "{urn:x}k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)

	modified, err := fs.LastModified(ctx, "/share/dst")
	require.NoError(t, err)
	assert.True(t, modified.Equal(now))

	err = fs.Rename(ctx, "/share/dst", "/share/nope/x")
	assert.True(t, metadata.HasCode(err, metadata.ErrParentNotFound))
}

func TestCopy(t *testing.T) {
	fs, store := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, fs.Mkcol(ctx, "/share/src"))
	_, err := fs.Write(ctx, "/share/src/a", []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, fs.SetAttribute(ctx, "/share/src", "{urn:x}k", "v"))

	require.NoError(t, fs.Copy(ctx, "/share/src", "/share/deep", DepthInfinity))
	assert.Equal(t, "payload", readAll(t, fs, "/share/deep/a"))
	assert.Equal(t, 2, store.Len(), "copies get their own content")

	value, ok, err := fs.Attribute(ctx, "/share/deep", "{urn:x}k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)

	// Modifying the copy leaves the source alone.
	_, err = fs.Write(ctx, "/share/deep/a", []byte("changed"))
	require.NoError(t, err)
	assert.Equal(t, "payload", readAll(t, fs, "/share/src/a"))

	require.NoError(t, fs.Copy(ctx, "/share/src", "/share/shallow", 0))
	children, err := fs.Children(ctx, "/share/shallow")
	require.NoError(t, err)
	assert.Empty(t, children)

	err = fs.Copy(ctx, "/share/src", "/share/src/inner", DepthInfinity)
	assert.True(t, metadata.HasCode(err, metadata.ErrInvalidArgument))
}

func TestReadOnly(t *testing.T) {
	fs, _ := newTestFS(t, WithReadOnly(true))
	ctx := context.Background()

	_, err := fs.Write(ctx, "/share/a", nil)
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, fs.Mkcol(ctx, "/share/d"), ErrReadOnly)
	assert.ErrorIs(t, fs.SetAttribute(ctx, "/share", "k", "v"), ErrReadOnly)
	_, err = fs.Delete(ctx, "/share/a")
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestResourceAttributes(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	res, err := fs.Resolve(ctx, "/share")
	require.NoError(t, err)

	require.NoError(t, res.SetAttribute(ctx, "{urn:b}two", "2"))
	require.NoError(t, res.SetAttribute(ctx, "{urn:a}one", "1"))

	names, err := res.AttributeNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"{urn:a}one", "{urn:b}two"}, names)

	require.NoError(t, res.RemoveAttribute(ctx, "{urn:a}one"))
	_, ok, err := res.Attribute(ctx, "{urn:a}one")
	require.NoError(t, err)
	assert.False(t, ok)

	fresh, err := fs.Resolve(ctx, "/share")
	require.NoError(t, err)
	value, ok, err := fresh.Attribute(ctx, "{urn:b}two")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", value)
}
