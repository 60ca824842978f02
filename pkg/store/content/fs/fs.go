// Package fs implements filesystem-based content storage.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/marmos91/dittodav/pkg/store/metadata"
)

// FSContentStoreConfig configures the filesystem content store.
type FSContentStoreConfig struct {
	// Path is the root directory holding content files.
	Path string `mapstructure:"path" validate:"required"`
}

// FSContentStore implements content.ContentStore on the local filesystem,
// one file per ContentID under basePath.
//
// Writes go to a temporary file in the same directory and are renamed into
// place, so readers never observe a partially written file.
type FSContentStore struct {
	basePath string
}

// NewFSContentStore creates the base directory (0755) if it does not exist.
func NewFSContentStore(ctx context.Context, config FSContentStoreConfig) (*FSContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.Path == "" {
		return nil, fmt.Errorf("fs content store: path is required")
	}

	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSContentStore{basePath: config.Path}, nil
}

// getFilePath returns the full path for a content ID.
func (r *FSContentStore) getFilePath(id metadata.ContentID) string {
	return filepath.Join(r.basePath, filepath.FromSlash(string(id)))
}

func (r *FSContentStore) ReadContent(ctx context.Context, id metadata.ContentID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := content.ValidateID(id); err != nil {
		return nil, fmt.Errorf("content %s: %w", id, err)
	}

	f, err := os.Open(r.getFilePath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open content %s: %w", id, err)
	}
	return f, nil
}

func (r *FSContentStore) WriteContent(ctx context.Context, id metadata.ContentID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.ValidateID(id); err != nil {
		return fmt.Errorf("content %s: %w", id, err)
	}

	path := r.getFilePath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create content directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write content %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close content %s: %w", id, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to commit content %s: %w", id, err)
	}
	return nil
}

func (r *FSContentStore) GetContentSize(ctx context.Context, id metadata.ContentID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := content.ValidateID(id); err != nil {
		return 0, fmt.Errorf("content %s: %w", id, err)
	}

	info, err := os.Stat(r.getFilePath(id))
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat content %s: %w", id, err)
	}
	return info.Size(), nil
}

func (r *FSContentStore) ContentExists(ctx context.Context, id metadata.ContentID) (bool, error) {
	if _, err := r.GetContentSize(ctx, id); err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *FSContentStore) Delete(ctx context.Context, id metadata.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.ValidateID(id); err != nil {
		return fmt.Errorf("content %s: %w", id, err)
	}

	err := os.Remove(r.getFilePath(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete content %s: %w", id, err)
	}
	return nil
}

// Close is a no-op; no descriptors are held between calls.
func (r *FSContentStore) Close() error {
	return nil
}
