package metadata

import (
	"path"
	"strings"
)

// RootPath is the path of the store-wide root collection.
const RootPath = "/"

// CleanPath normalizes p to an absolute path without a trailing slash.
// The empty string maps to RootPath.
func CleanPath(p string) string {
	if p == "" {
		return RootPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// ParentPath returns the parent of p. The parent of RootPath is RootPath.
func ParentPath(p string) string {
	return path.Dir(CleanPath(p))
}

// BaseName returns the last element of p. BaseName(RootPath) is "/".
func BaseName(p string) string {
	return path.Base(CleanPath(p))
}

// IsDescendant reports whether p is strictly below ancestor.
func IsDescendant(p, ancestor string) bool {
	p = CleanPath(p)
	ancestor = CleanPath(ancestor)
	if p == ancestor {
		return false
	}
	if ancestor == RootPath {
		return true
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// Rebase rewrites p, which must be from or below it, so that it sits below to.
func Rebase(p, from, to string) string {
	p = CleanPath(p)
	from = CleanPath(from)
	to = CleanPath(to)
	if p == from {
		return to
	}
	return CleanPath(to + strings.TrimPrefix(p, strings.TrimSuffix(from, "/")))
}
