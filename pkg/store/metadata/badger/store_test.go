package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/dittodav/pkg/store/metadata"
	storetest "github.com/marmos91/dittodav/pkg/store/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerMetadataStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.MetadataStore {
			store, err := NewBadgerMetadataStore(context.Background(), BadgerMetadataStoreConfig{
				InMemory: true,
			})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestBadgerMetadataStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "metadata")

	store, err := NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dbPath})
	require.NoError(t, err)

	require.NoError(t, store.Create(ctx, metadata.NewResource("/docs", metadata.ResourceTypeCollection, time.Now())))
	require.NoError(t, store.Create(ctx, metadata.NewResource("/docs/a.txt", metadata.ResourceTypeFile, time.Now())))
	require.NoError(t, store.SetAttribute(ctx, "/docs/a.txt", "{urn:x}k", "v"))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dbPath})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	res, err := reopened.Get(ctx, "/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "v", res.Attributes["{urn:x}k"])

	children, err := reopened.Children(ctx, "/docs")
	require.NoError(t, err)
	require.Len(t, children, 1)
}

func TestBadgerMetadataStore_RequiresPath(t *testing.T) {
	_, err := NewBadgerMetadataStore(context.Background(), BadgerMetadataStoreConfig{})
	assert.Error(t, err)
}

func TestChildFromKey(t *testing.T) {
	assert.Equal(t, "/a/b", childFromKey(keyChild("/a", "/a/b")))
	assert.Equal(t, "", childFromKey([]byte("c:nosep")))
}
