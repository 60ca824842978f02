// Package memory implements an in-memory content store.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/marmos91/dittodav/pkg/store/metadata"
)

// MemoryContentStoreConfig configures the in-memory content store.
type MemoryContentStoreConfig struct {
	// MaxSizeBytes caps a single content item (0 = unlimited).
	MaxSizeBytes int64 `mapstructure:"max_size_bytes"`
}

// MemoryContentStore implements content.ContentStore using a map.
//
// Characteristics:
//   - Volatile: data is lost on restart
//   - Memory-bound: limited by available RAM
//   - Thread-safe: protected by an RWMutex
//
// Data is copied on both read and write so callers never share buffers with
// the store.
type MemoryContentStore struct {
	data    map[metadata.ContentID][]byte
	maxSize int64
	mu      sync.RWMutex
}

// NewMemoryContentStore creates an empty in-memory content store.
func NewMemoryContentStore(ctx context.Context, config MemoryContentStoreConfig) (*MemoryContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &MemoryContentStore{
		data:    make(map[metadata.ContentID][]byte),
		maxSize: config.MaxSizeBytes,
	}, nil
}

func (s *MemoryContentStore) ReadContent(ctx context.Context, id metadata.ContentID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.data[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

func (s *MemoryContentStore) WriteContent(ctx context.Context, id metadata.ContentID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.ValidateID(id); err != nil {
		return fmt.Errorf("content %s: %w", id, err)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return fmt.Errorf("content %s (%d bytes): %w", id, len(data), content.ErrTooLarge)
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	s.data[id] = stored
	s.mu.Unlock()
	return nil
}

func (s *MemoryContentStore) GetContentSize(ctx context.Context, id metadata.ContentID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[id]
	if !ok {
		return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	return int64(len(data)), nil
}

func (s *MemoryContentStore) ContentExists(ctx context.Context, id metadata.ContentID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[id]
	return ok, nil
}

func (s *MemoryContentStore) Delete(ctx context.Context, id metadata.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *MemoryContentStore) Close() error {
	return nil
}

// Len returns the number of stored content items.
func (s *MemoryContentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
