package badger

import "strings"

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so prefixed keys organize the data into
// logical namespaces.
//
// Data Type        Prefix   Key Format                      Value
// ===================================================================
// Resource         "r:"     r:<path>                        Resource (JSON)
// Children index   "c:"     c:<parentPath>\x00<childPath>   empty
//
// Resource (r:)
//   - One entry per file or collection, keyed by its cleaned absolute path
//   - Attributes are part of the JSON record, so SetAttribute is a single
//     read-modify-write inside one transaction
//
// Children index (c:)
//   - One entry per parent/child edge
//   - Listing a collection is a prefix scan over "c:<parentPath>\x00"
//   - The NUL separator cannot appear in a path, so "/a" never matches the
//     children of "/ab"

const (
	// prefixResource is the key prefix for resource records
	prefixResource = "r:"

	// prefixChild is the key prefix for the parent → child index
	prefixChild = "c:"

	// childSeparator separates parent and child inside a children key
	childSeparator = "\x00"
)

// keyResource returns the key for the resource at path.
func keyResource(path string) []byte {
	return []byte(prefixResource + path)
}

// keyChild returns the index key linking parent to child.
func keyChild(parent, child string) []byte {
	return []byte(prefixChild + parent + childSeparator + child)
}

// keyChildPrefix returns the scan prefix for all children of parent.
func keyChildPrefix(parent string) []byte {
	return []byte(prefixChild + parent + childSeparator)
}

// childFromKey extracts the child path from a children index key.
func childFromKey(key []byte) string {
	s := string(key)
	if idx := strings.Index(s, childSeparator); idx >= 0 {
		return s[idx+len(childSeparator):]
	}
	return ""
}
