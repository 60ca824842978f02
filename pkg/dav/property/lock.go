package property

import (
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittodav/pkg/dav/davxml"
	"github.com/marmos91/dittodav/pkg/lock"
)

// LockDiscovery renders the lockdiscovery property for locks.
func LockDiscovery(locks []lock.Lock, now time.Time) *davxml.Element {
	el := davxml.NewElement(davxml.DAV("lockdiscovery"))
	for _, l := range locks {
		el.Append(ActiveLock(l, now))
	}
	return el
}

// ActiveLock renders one activelock element.
func ActiveLock(l lock.Lock, now time.Time) *davxml.Element {
	active := davxml.NewElement(davxml.DAV("activelock"))

	active.Add(davxml.DAV("locktype")).Add(davxml.DAV("write"))
	active.Add(davxml.DAV("lockscope")).Add(davxml.DAV(l.Scope.String()))
	active.Append(davxml.NewText(davxml.DAV("depth"), FormatDepth(l.Depth)))
	if owner := ownerElement(l.Owner); owner != nil {
		active.Append(owner)
	}
	active.Append(davxml.NewText(davxml.DAV("timeout"), FormatTimeout(l.Remaining(now), l.Timeout == 0)))
	active.Add(davxml.DAV("locktoken")).Append(davxml.NewText(davxml.DAV("href"), l.Token))

	return active
}

// SupportedLock renders the supportedlock property: write locks in both
// scopes.
func SupportedLock() *davxml.Element {
	el := davxml.NewElement(davxml.DAV("supportedlock"))
	for _, scope := range []lock.Scope{lock.ScopeExclusive, lock.ScopeShared} {
		entry := el.Add(davxml.DAV("lockentry"))
		entry.Add(davxml.DAV("lockscope")).Add(davxml.DAV(scope.String()))
		entry.Add(davxml.DAV("locktype")).Add(davxml.DAV("write"))
	}
	return el
}

// FormatDepth renders a lock depth for the Depth header and the depth element.
func FormatDepth(depth int) string {
	if depth == lock.DepthInfinity {
		return "infinity"
	}
	return strconv.Itoa(depth)
}

// FormatTimeout renders a lock timeout as "Second-N" or "Infinite".
func FormatTimeout(remaining time.Duration, infinite bool) string {
	if infinite {
		return "Infinite"
	}
	// Round up so a live lock never reports Second-0.
	seconds := int64((remaining + time.Second - 1) / time.Second)
	return "Second-" + strconv.FormatInt(seconds, 10)
}

// ownerElement turns a stored owner back into a DAV:owner element.
func ownerElement(owner string) *davxml.Element {
	if strings.TrimSpace(owner) == "" {
		return nil
	}

	name := davxml.DAV("owner")
	if strings.HasPrefix(owner, "<") {
		if el, err := davxml.Parse(owner); err == nil {
			if el.Name == name {
				return el
			}
			return davxml.NewElement(name).Append(el)
		}
	}
	return davxml.NewText(name, owner)
}
