// Package testing provides a conformance suite for content.ContentStore
// implementations.
package testing

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/marmos91/dittodav/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite tests the ContentStore contract so it can be reused across
// the memory, filesystem and S3 implementations.
//
// Usage:
//
//	func TestMyContentStore(t *testing.T) {
//	    suite := &contenttest.StoreTestSuite{
//	        NewStore: func(t *testing.T) content.ContentStore {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh ContentStore for each test.
	NewStore func(t *testing.T) content.ContentStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("ReadContent_NotFound", suite.testReadNotFound)
	t.Run("WriteAndRead", suite.testWriteAndRead)
	t.Run("Overwrite", suite.testOverwrite)
	t.Run("EmptyContent", suite.testEmptyContent)
	t.Run("LargeContent", suite.testLargeContent)
	t.Run("Size", suite.testSize)
	t.Run("Exists", suite.testExists)
	t.Run("Delete", suite.testDelete)
	t.Run("InvalidID", suite.testInvalidID)
}

func testContext() context.Context {
	return context.Background()
}

func (suite *StoreTestSuite) newStore(t *testing.T) content.ContentStore {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustRead(t *testing.T, store content.ContentStore, id metadata.ContentID) []byte {
	t.Helper()
	reader, err := store.ReadContent(testContext(), id)
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	return data
}

func (suite *StoreTestSuite) testReadNotFound(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.ReadContent(testContext(), "missing")
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testWriteAndRead(t *testing.T) {
	store := suite.newStore(t)

	require.NoError(t, store.WriteContent(testContext(), "hello", []byte("Hello, World!")))
	assert.Equal(t, []byte("Hello, World!"), mustRead(t, store, "hello"))
}

func (suite *StoreTestSuite) testOverwrite(t *testing.T) {
	store := suite.newStore(t)

	require.NoError(t, store.WriteContent(testContext(), "doc", []byte("first version")))
	require.NoError(t, store.WriteContent(testContext(), "doc", []byte("v2")))
	assert.Equal(t, []byte("v2"), mustRead(t, store, "doc"))
}

func (suite *StoreTestSuite) testEmptyContent(t *testing.T) {
	store := suite.newStore(t)

	require.NoError(t, store.WriteContent(testContext(), "empty", nil))
	assert.Empty(t, mustRead(t, store, "empty"))

	size, err := store.GetContentSize(testContext(), "empty")
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func (suite *StoreTestSuite) testLargeContent(t *testing.T) {
	store := suite.newStore(t)

	data := bytes.Repeat([]byte("0123456789abcdef"), 64*1024)
	require.NoError(t, store.WriteContent(testContext(), "large", data))
	assert.Equal(t, data, mustRead(t, store, "large"))
}

func (suite *StoreTestSuite) testSize(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.GetContentSize(testContext(), "missing")
	assert.ErrorIs(t, err, content.ErrContentNotFound)

	require.NoError(t, store.WriteContent(testContext(), "sized", []byte("12345")))
	size, err := store.GetContentSize(testContext(), "sized")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.newStore(t)

	exists, err := store.ContentExists(testContext(), "x")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.WriteContent(testContext(), "x", []byte("x")))
	exists, err = store.ContentExists(testContext(), "x")
	require.NoError(t, err)
	assert.True(t, exists)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store := suite.newStore(t)

	require.NoError(t, store.WriteContent(testContext(), "gone", []byte("bye")))
	require.NoError(t, store.Delete(testContext(), "gone"))
	require.NoError(t, store.Delete(testContext(), "gone"))

	_, err := store.ReadContent(testContext(), "gone")
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testInvalidID(t *testing.T) {
	store := suite.newStore(t)

	assert.ErrorIs(t, store.WriteContent(testContext(), "", []byte("x")), content.ErrInvalidContentID)
	assert.ErrorIs(t, store.WriteContent(testContext(), "../escape", []byte("x")), content.ErrInvalidContentID)
}
