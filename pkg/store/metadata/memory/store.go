package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittodav/pkg/store/metadata"
)

// MemoryMetadataStoreConfig configures the in-memory metadata store.
type MemoryMetadataStoreConfig struct {
	// MaxResources caps the number of resources (0 = unlimited).
	MaxResources uint64 `mapstructure:"max_resources"`
}

// MemoryMetadataStore implements metadata.MetadataStore using in-memory maps.
//
// Suitable for tests, development and ephemeral deployments; all state is lost
// when the process exits.
//
// Storage Model:
//  1. resources: path → *Resource (the records themselves)
//  2. children: collection path → set of member paths
//
// Thread Safety:
// All operations are protected by a single read-write mutex (mu).
type MemoryMetadataStore struct {
	mu        sync.RWMutex
	resources map[string]*metadata.Resource
	children  map[string]map[string]struct{}
	maxCount  uint64
}

// NewMemoryMetadataStore creates an empty store containing only the root collection.
func NewMemoryMetadataStore(config MemoryMetadataStoreConfig) *MemoryMetadataStore {
	store := &MemoryMetadataStore{
		resources: make(map[string]*metadata.Resource),
		children:  make(map[string]map[string]struct{}),
		maxCount:  config.MaxResources,
	}

	root := metadata.NewResource(metadata.RootPath, metadata.ResourceTypeCollection, time.Now())
	store.resources[root.Path] = root
	store.children[root.Path] = make(map[string]struct{})

	return store
}

// NewMemoryMetadataStoreWithDefaults creates a store with no resource cap.
func NewMemoryMetadataStoreWithDefaults() *MemoryMetadataStore {
	return NewMemoryMetadataStore(MemoryMetadataStoreConfig{})
}

func (s *MemoryMetadataStore) Get(ctx context.Context, path string) (*metadata.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path = metadata.CleanPath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.resources[path]
	if !ok {
		return nil, metadata.NewError(metadata.ErrNotFound, "resource not found", path)
	}
	return res.Clone(), nil
}

func (s *MemoryMetadataStore) Create(ctx context.Context, res *metadata.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if res == nil {
		return metadata.NewError(metadata.ErrInvalidArgument, "resource is nil", "")
	}

	path := metadata.CleanPath(res.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.resources[path]; exists {
		return metadata.NewError(metadata.ErrAlreadyExists, "resource already exists", path)
	}

	parentPath := metadata.ParentPath(path)
	parent, ok := s.resources[parentPath]
	if !ok {
		return metadata.NewError(metadata.ErrParentNotFound, "parent collection not found", parentPath)
	}
	if !parent.IsCollection() {
		return metadata.NewError(metadata.ErrNotDirectory, "parent is not a collection", parentPath)
	}

	if s.maxCount > 0 && uint64(len(s.resources)) >= s.maxCount {
		return metadata.NewError(metadata.ErrIOError, "resource limit reached", path)
	}

	stored := res.Clone()
	stored.Path = path
	s.resources[path] = stored
	s.children[parentPath][path] = struct{}{}
	if stored.IsCollection() {
		s.children[path] = make(map[string]struct{})
	}

	return nil
}

func (s *MemoryMetadataStore) Update(ctx context.Context, res *metadata.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if res == nil {
		return metadata.NewError(metadata.ErrInvalidArgument, "resource is nil", "")
	}

	path := metadata.CleanPath(res.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.resources[path]
	if !ok {
		return metadata.NewError(metadata.ErrNotFound, "resource not found", path)
	}
	if existing.Type != res.Type {
		return metadata.NewError(metadata.ErrInvalidArgument, "resource type cannot change", path)
	}

	stored := res.Clone()
	stored.Path = path
	s.resources[path] = stored
	return nil
}

func (s *MemoryMetadataStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path = metadata.CleanPath(path)
	if path == metadata.RootPath {
		return metadata.NewError(metadata.ErrInvalidArgument, "cannot delete root", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.resources[path]
	if !ok {
		return metadata.NewError(metadata.ErrNotFound, "resource not found", path)
	}
	if res.IsCollection() && len(s.children[path]) > 0 {
		return metadata.NewError(metadata.ErrNotEmpty, "collection not empty", path)
	}

	delete(s.resources, path)
	delete(s.children, path)
	delete(s.children[metadata.ParentPath(path)], path)
	return nil
}

func (s *MemoryMetadataStore) Children(ctx context.Context, path string) ([]*metadata.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path = metadata.CleanPath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.resources[path]
	if !ok {
		return nil, metadata.NewError(metadata.ErrNotFound, "resource not found", path)
	}
	if !res.IsCollection() {
		return nil, metadata.NewError(metadata.ErrNotDirectory, "not a collection", path)
	}

	members := make([]string, 0, len(s.children[path]))
	for member := range s.children[path] {
		members = append(members, member)
	}
	sort.Strings(members)

	result := make([]*metadata.Resource, 0, len(members))
	for _, member := range members {
		result = append(result, s.resources[member].Clone())
	}
	return result, nil
}

func (s *MemoryMetadataStore) Move(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from = metadata.CleanPath(from)
	to = metadata.CleanPath(to)

	if from == metadata.RootPath {
		return metadata.NewError(metadata.ErrInvalidArgument, "cannot move root", from)
	}
	if from == to || metadata.IsDescendant(to, from) {
		return metadata.NewError(metadata.ErrInvalidArgument, "cannot move a resource into itself", to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[from]; !ok {
		return metadata.NewError(metadata.ErrNotFound, "resource not found", from)
	}
	if _, exists := s.resources[to]; exists {
		return metadata.NewError(metadata.ErrAlreadyExists, "destination already exists", to)
	}
	parentPath := metadata.ParentPath(to)
	parent, ok := s.resources[parentPath]
	if !ok {
		return metadata.NewError(metadata.ErrParentNotFound, "destination parent not found", parentPath)
	}
	if !parent.IsCollection() {
		return metadata.NewError(metadata.ErrNotDirectory, "destination parent is not a collection", parentPath)
	}

	// Collect the subtree before mutating the maps.
	var subtree []string
	for p := range s.resources {
		if p == from || metadata.IsDescendant(p, from) {
			subtree = append(subtree, p)
		}
	}

	moved := make(map[string]*metadata.Resource, len(subtree))
	movedChildren := make(map[string]map[string]struct{})
	for _, oldPath := range subtree {
		newPath := metadata.Rebase(oldPath, from, to)
		res := s.resources[oldPath]
		res.Path = newPath
		moved[newPath] = res

		if members, isCollection := s.children[oldPath]; isCollection {
			rebased := make(map[string]struct{}, len(members))
			for member := range members {
				rebased[metadata.Rebase(member, from, to)] = struct{}{}
			}
			movedChildren[newPath] = rebased
		}

		delete(s.resources, oldPath)
		delete(s.children, oldPath)
	}

	for p, res := range moved {
		s.resources[p] = res
	}
	for p, members := range movedChildren {
		s.children[p] = members
	}

	delete(s.children[metadata.ParentPath(from)], from)
	s.children[parentPath][to] = struct{}{}

	return nil
}

func (s *MemoryMetadataStore) SetAttribute(ctx context.Context, path, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return metadata.NewError(metadata.ErrInvalidArgument, "attribute name is empty", path)
	}

	path = metadata.CleanPath(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.resources[path]
	if !ok {
		return metadata.NewError(metadata.ErrNotFound, "resource not found", path)
	}
	if res.Attributes == nil {
		res.Attributes = make(map[string]string)
	}
	res.Attributes[name] = value
	return nil
}

func (s *MemoryMetadataStore) RemoveAttribute(ctx context.Context, path, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path = metadata.CleanPath(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.resources[path]
	if !ok {
		return metadata.NewError(metadata.ErrNotFound, "resource not found", path)
	}
	delete(res.Attributes, name)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryMetadataStore) Close() error {
	return nil
}

// Count returns the number of resources, including the root.
func (s *MemoryMetadataStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.resources)
}
