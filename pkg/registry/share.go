package registry

import "github.com/marmos91/dittodav/pkg/vfs"

// Share binds a URL prefix to one metadata store and one content store.
//
// Requests for "/<Name>/..." are served from FS, whose root collection is
// "/<Name>" inside the metadata store. Several shares may reference the same
// stores; their trees never overlap.
type Share struct {
	Name          string
	MetadataStore string // Name of the metadata store
	ContentStore  string // Name of the content store
	ReadOnly      bool

	// Access Control
	AllowedClients []string // IP addresses or CIDR ranges allowed (empty = all allowed)
	DeniedClients  []string // IP addresses or CIDR ranges denied (takes precedence)

	// FS is the resource adapter for the share.
	FS *vfs.FileSystem
}

// ShareConfig contains all configuration needed to create a share.
type ShareConfig struct {
	Name           string
	MetadataStore  string
	ContentStore   string
	ReadOnly       bool
	AllowedClients []string
	DeniedClients  []string
}

// RootPath returns the share's root collection path.
func (s *Share) RootPath() string {
	return "/" + s.Name
}
