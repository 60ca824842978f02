// Package lock implements WebDAV write locks.
//
// A Manager keeps a table from resource identity to the locks currently held
// on it. Acquisition enforces the scope rules (one exclusive lock excludes
// everything else, any number of shared locks may coexist) atomically, and
// expiry is evaluated lazily whenever a resource's entry is touched: there
// are no background timers.
package lock

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Scope is the lock scope.
type Scope uint8

const (
	// ScopeExclusive excludes every other lock on the resource.
	ScopeExclusive Scope = iota

	// ScopeShared coexists with other shared locks.
	ScopeShared
)

// String returns the DAV: element name of the scope.
func (s Scope) String() string {
	switch s {
	case ScopeExclusive:
		return "exclusive"
	case ScopeShared:
		return "shared"
	default:
		return "unknown"
	}
}

// ParseScope maps "exclusive" and "shared" to a Scope.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(s) {
	case "exclusive":
		return ScopeExclusive, nil
	case "shared":
		return ScopeShared, nil
	default:
		return 0, fmt.Errorf("unknown lock scope %q", s)
	}
}

const (
	// DepthInfinity marks a lock covering the resource and all its members.
	DepthInfinity = -1

	// TokenPrefix is the URI scheme of every issued token.
	TokenPrefix = "opaquelocktoken:"

	// NoLockToken is the reserved state token that never matches a real lock.
	NoLockToken = "DAV:no-lock"
)

// Lock is a single lock held on a resource.
type Lock struct {
	// Resource is the identity of the locked resource (its URL path).
	Resource string `json:"resource"`

	// Scope is exclusive or shared.
	Scope Scope `json:"scope"`

	// Owner is the client-supplied owner description, stored as serialized XML.
	Owner string `json:"owner,omitempty"`

	// Depth is 0 or DepthInfinity.
	Depth int `json:"depth"`

	// Token is the unique lock token.
	Token string `json:"token"`

	// CreatedAt is when the lock was acquired or last refreshed.
	CreatedAt time.Time `json:"created_at"`

	// Timeout is the lock lifetime from CreatedAt. Zero means infinite.
	Timeout time.Duration `json:"timeout"`
}

// NewToken returns a fresh "opaquelocktoken:<uuid>" token.
func NewToken() string {
	return TokenPrefix + uuid.NewString()
}

// IsExpired reports whether the lock has lapsed at now.
// A lock expires once now >= CreatedAt + Timeout.
func (l *Lock) IsExpired(now time.Time) bool {
	if l.Timeout <= 0 {
		return false
	}
	return !now.Before(l.CreatedAt.Add(l.Timeout))
}

// Remaining returns the lifetime left at now, or 0 for infinite locks.
func (l *Lock) Remaining(now time.Time) time.Duration {
	if l.Timeout <= 0 {
		return 0
	}
	if left := l.CreatedAt.Add(l.Timeout).Sub(now); left > 0 {
		return left
	}
	return 0
}

// conflictsWith reports whether holding existing forbids granting requested.
func conflictsWith(existing, requested Scope) bool {
	return existing == ScopeExclusive || requested == ScopeExclusive
}
