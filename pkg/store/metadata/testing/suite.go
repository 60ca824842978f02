// Package testing provides a conformance suite for metadata.MetadataStore
// implementations.
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/dittodav/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite tests the MetadataStore interface contract, not implementation
// details, so the same tests run against memory and BadgerDB stores.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &storetest.StoreTestSuite{
//	        NewStore: func(t *testing.T) metadata.MetadataStore {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) metadata.MetadataStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Hierarchy", suite.RunHierarchyTests)
	t.Run("Attributes", suite.RunAttributeTests)
	t.Run("Move", suite.RunMoveTests)
}

func testContext() context.Context {
	return context.Background()
}

func (suite *StoreTestSuite) newStore(t *testing.T) metadata.MetadataStore {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustCreate(t *testing.T, store metadata.MetadataStore, path string, typ metadata.ResourceType) *metadata.Resource {
	t.Helper()
	res := metadata.NewResource(path, typ, time.Now())
	require.NoError(t, store.Create(testContext(), res))
	return res
}

func assertCode(t *testing.T, code metadata.ErrorCode, err error) {
	t.Helper()
	require.Error(t, err)
	got, ok := metadata.CodeOf(err)
	require.True(t, ok, "expected a *metadata.StoreError, got %T: %v", err, err)
	assert.Equal(t, code, got, "unexpected error code (err: %v)", err)
}

// ============================================================================
// Hierarchy Tests
// ============================================================================

// RunHierarchyTests covers Create/Get/Update/Delete/Children.
func (suite *StoreTestSuite) RunHierarchyTests(t *testing.T) {
	t.Run("RootExists", suite.testRootExists)
	t.Run("CreateAndGet", suite.testCreateAndGet)
	t.Run("CreateDuplicate", suite.testCreateDuplicate)
	t.Run("CreateMissingParent", suite.testCreateMissingParent)
	t.Run("CreateUnderFile", suite.testCreateUnderFile)
	t.Run("Update", suite.testUpdate)
	t.Run("UpdateTypeChange", suite.testUpdateTypeChange)
	t.Run("DeleteNonEmpty", suite.testDeleteNonEmpty)
	t.Run("DeleteRoot", suite.testDeleteRoot)
	t.Run("Children", suite.testChildren)
	t.Run("ReturnsCopies", suite.testReturnsCopies)
}

func (suite *StoreTestSuite) testRootExists(t *testing.T) {
	store := suite.newStore(t)

	root, err := store.Get(testContext(), metadata.RootPath)
	require.NoError(t, err)
	assert.True(t, root.IsCollection())
}

func (suite *StoreTestSuite) testCreateAndGet(t *testing.T) {
	store := suite.newStore(t)

	created := mustCreate(t, store, "/docs", metadata.ResourceTypeCollection)
	file := metadata.NewResource("/docs/readme.txt", metadata.ResourceTypeFile, time.Now())
	file.Size = 42
	file.ContentType = "text/plain"
	require.NoError(t, store.Create(testContext(), file))

	got, err := store.Get(testContext(), "/docs/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.ID)
	assert.Equal(t, int64(42), got.Size)
	assert.Equal(t, "text/plain", got.ContentType)
	assert.False(t, got.IsCollection())

	dir, err := store.Get(testContext(), "/docs/")
	require.NoError(t, err)
	assert.Equal(t, created.ID, dir.ID)

	_, err = store.Get(testContext(), "/missing")
	assertCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testCreateDuplicate(t *testing.T) {
	store := suite.newStore(t)

	mustCreate(t, store, "/a", metadata.ResourceTypeFile)
	err := store.Create(testContext(), metadata.NewResource("/a", metadata.ResourceTypeFile, time.Now()))
	assertCode(t, metadata.ErrAlreadyExists, err)
}

func (suite *StoreTestSuite) testCreateMissingParent(t *testing.T) {
	store := suite.newStore(t)

	err := store.Create(testContext(), metadata.NewResource("/nope/a", metadata.ResourceTypeFile, time.Now()))
	assertCode(t, metadata.ErrParentNotFound, err)
}

func (suite *StoreTestSuite) testCreateUnderFile(t *testing.T) {
	store := suite.newStore(t)

	mustCreate(t, store, "/file", metadata.ResourceTypeFile)
	err := store.Create(testContext(), metadata.NewResource("/file/child", metadata.ResourceTypeFile, time.Now()))
	assertCode(t, metadata.ErrNotDirectory, err)
}

func (suite *StoreTestSuite) testUpdate(t *testing.T) {
	store := suite.newStore(t)

	res := mustCreate(t, store, "/a", metadata.ResourceTypeFile)
	res.Size = 7
	res.ModifiedAt = res.ModifiedAt.Add(time.Hour)
	require.NoError(t, store.Update(testContext(), res))

	got, err := store.Get(testContext(), "/a")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Size)
	assert.True(t, got.ModifiedAt.Equal(res.ModifiedAt))

	err = store.Update(testContext(), metadata.NewResource("/missing", metadata.ResourceTypeFile, time.Now()))
	assertCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testUpdateTypeChange(t *testing.T) {
	store := suite.newStore(t)

	res := mustCreate(t, store, "/a", metadata.ResourceTypeFile)
	res.Type = metadata.ResourceTypeCollection
	assertCode(t, metadata.ErrInvalidArgument, store.Update(testContext(), res))
}

func (suite *StoreTestSuite) testDeleteNonEmpty(t *testing.T) {
	store := suite.newStore(t)

	mustCreate(t, store, "/dir", metadata.ResourceTypeCollection)
	mustCreate(t, store, "/dir/file", metadata.ResourceTypeFile)

	assertCode(t, metadata.ErrNotEmpty, store.Delete(testContext(), "/dir"))

	require.NoError(t, store.Delete(testContext(), "/dir/file"))
	require.NoError(t, store.Delete(testContext(), "/dir"))

	_, err := store.Get(testContext(), "/dir")
	assertCode(t, metadata.ErrNotFound, err)
	assertCode(t, metadata.ErrNotFound, store.Delete(testContext(), "/dir"))
}

func (suite *StoreTestSuite) testDeleteRoot(t *testing.T) {
	store := suite.newStore(t)
	assertCode(t, metadata.ErrInvalidArgument, store.Delete(testContext(), "/"))
}

func (suite *StoreTestSuite) testChildren(t *testing.T) {
	store := suite.newStore(t)

	mustCreate(t, store, "/dir", metadata.ResourceTypeCollection)
	mustCreate(t, store, "/dir/b", metadata.ResourceTypeFile)
	mustCreate(t, store, "/dir/a", metadata.ResourceTypeCollection)
	mustCreate(t, store, "/dir/a/nested", metadata.ResourceTypeFile)
	mustCreate(t, store, "/dirx", metadata.ResourceTypeFile)

	children, err := store.Children(testContext(), "/dir")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "/dir/a", children[0].Path)
	assert.Equal(t, "/dir/b", children[1].Path)

	_, err = store.Children(testContext(), "/dir/b")
	assertCode(t, metadata.ErrNotDirectory, err)

	_, err = store.Children(testContext(), "/missing")
	assertCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testReturnsCopies(t *testing.T) {
	store := suite.newStore(t)

	mustCreate(t, store, "/a", metadata.ResourceTypeFile)
	require.NoError(t, store.SetAttribute(testContext(), "/a", "k", "v"))

	got, err := store.Get(testContext(), "/a")
	require.NoError(t, err)
	got.Attributes["k"] = "mutated"
	got.Size = 99

	again, err := store.Get(testContext(), "/a")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Attributes["k"])
	assert.Equal(t, int64(0), again.Size)
}

// ============================================================================
// Attribute Tests
// ============================================================================

// RunAttributeTests covers SetAttribute/RemoveAttribute.
func (suite *StoreTestSuite) RunAttributeTests(t *testing.T) {
	t.Run("SetAndRemove", suite.testSetAndRemoveAttribute)
	t.Run("MissingResource", suite.testAttributeMissingResource)
	t.Run("EmptyName", suite.testAttributeEmptyName)
}

func (suite *StoreTestSuite) testSetAndRemoveAttribute(t *testing.T) {
	store := suite.newStore(t)

	mustCreate(t, store, "/a", metadata.ResourceTypeFile)
	require.NoError(t, store.SetAttribute(testContext(), "/a", "{urn:x}color", "<color xmlns=\"urn:x\">red</color>"))

	got, err := store.Get(testContext(), "/a")
	require.NoError(t, err)
	assert.Equal(t, "<color xmlns=\"urn:x\">red</color>", got.Attributes["{urn:x}color"])

	require.NoError(t, store.RemoveAttribute(testContext(), "/a", "{urn:x}color"))
	require.NoError(t, store.RemoveAttribute(testContext(), "/a", "{urn:x}color"))

	got, err = store.Get(testContext(), "/a")
	require.NoError(t, err)
	_, ok := got.Attributes["{urn:x}color"]
	assert.False(t, ok)
}

func (suite *StoreTestSuite) testAttributeMissingResource(t *testing.T) {
	store := suite.newStore(t)

	assertCode(t, metadata.ErrNotFound, store.SetAttribute(testContext(), "/missing", "k", "v"))
	assertCode(t, metadata.ErrNotFound, store.RemoveAttribute(testContext(), "/missing", "k"))
}

func (suite *StoreTestSuite) testAttributeEmptyName(t *testing.T) {
	store := suite.newStore(t)

	mustCreate(t, store, "/a", metadata.ResourceTypeFile)
	assertCode(t, metadata.ErrInvalidArgument, store.SetAttribute(testContext(), "/a", " ", "v"))
}

// ============================================================================
// Move Tests
// ============================================================================

// RunMoveTests covers subtree relocation.
func (suite *StoreTestSuite) RunMoveTests(t *testing.T) {
	t.Run("MoveFile", suite.testMoveFile)
	t.Run("MoveSubtree", suite.testMoveSubtree)
	t.Run("MoveDestinationExists", suite.testMoveDestinationExists)
	t.Run("MoveMissingParent", suite.testMoveMissingParent)
	t.Run("MoveIntoItself", suite.testMoveIntoItself)
}

func (suite *StoreTestSuite) testMoveFile(t *testing.T) {
	store := suite.newStore(t)

	res := mustCreate(t, store, "/a", metadata.ResourceTypeFile)
	require.NoError(t, store.SetAttribute(testContext(), "/a", "k", "v"))

	require.NoError(t, store.Move(testContext(), "/a", "/b"))

	_, err := store.Get(testContext(), "/a")
	assertCode(t, metadata.ErrNotFound, err)

	moved, err := store.Get(testContext(), "/b")
	require.NoError(t, err)
	assert.Equal(t, res.ID, moved.ID)
	assert.Equal(t, "v", moved.Attributes["k"])

	children, err := store.Children(testContext(), "/")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "/b", children[0].Path)
}

func (suite *StoreTestSuite) testMoveSubtree(t *testing.T) {
	store := suite.newStore(t)

	mustCreate(t, store, "/src", metadata.ResourceTypeCollection)
	mustCreate(t, store, "/src/sub", metadata.ResourceTypeCollection)
	mustCreate(t, store, "/src/sub/leaf", metadata.ResourceTypeFile)
	mustCreate(t, store, "/dst", metadata.ResourceTypeCollection)

	require.NoError(t, store.Move(testContext(), "/src", "/dst/renamed"))

	leaf, err := store.Get(testContext(), "/dst/renamed/sub/leaf")
	require.NoError(t, err)
	assert.Equal(t, "/dst/renamed/sub/leaf", leaf.Path)

	children, err := store.Children(testContext(), "/dst/renamed/sub")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "/dst/renamed/sub/leaf", children[0].Path)

	_, err = store.Get(testContext(), "/src/sub/leaf")
	assertCode(t, metadata.ErrNotFound, err)

	rootChildren, err := store.Children(testContext(), "/")
	require.NoError(t, err)
	require.Len(t, rootChildren, 1)
	assert.Equal(t, "/dst", rootChildren[0].Path)
}

func (suite *StoreTestSuite) testMoveDestinationExists(t *testing.T) {
	store := suite.newStore(t)

	mustCreate(t, store, "/a", metadata.ResourceTypeFile)
	mustCreate(t, store, "/b", metadata.ResourceTypeFile)
	assertCode(t, metadata.ErrAlreadyExists, store.Move(testContext(), "/a", "/b"))
}

func (suite *StoreTestSuite) testMoveMissingParent(t *testing.T) {
	store := suite.newStore(t)

	mustCreate(t, store, "/a", metadata.ResourceTypeFile)
	assertCode(t, metadata.ErrParentNotFound, store.Move(testContext(), "/a", "/x/y"))
	assertCode(t, metadata.ErrNotFound, store.Move(testContext(), "/missing", "/z"))
}

func (suite *StoreTestSuite) testMoveIntoItself(t *testing.T) {
	store := suite.newStore(t)

	mustCreate(t, store, "/a", metadata.ResourceTypeCollection)
	assertCode(t, metadata.ErrInvalidArgument, store.Move(testContext(), "/a", "/a/b"))
}
