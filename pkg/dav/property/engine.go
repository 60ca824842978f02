// Package property resolves WebDAV properties for PROPFIND and PROPPATCH.
//
// Names in the DAV: namespace that belong to the standard vocabulary are
// computed from the resource and the lock table and are read-only. Every
// other name is a dead property stored verbatim as a resource attribute
// keyed "{namespace}local".
package property

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/dav/davxml"
	"github.com/marmos91/dittodav/pkg/dav/etag"
	"github.com/marmos91/dittodav/pkg/lock"
)

// Resource is the view of a file or collection the engine needs.
// *vfs.Resource implements it.
type Resource interface {
	Path() string
	Name() string
	IsCollection() bool
	Size() int64
	ContentType() string
	LastModified() time.Time

	Attribute(ctx context.Context, name string) (string, bool, error)
	AttributeNames(ctx context.Context) ([]string, error)
	SetAttribute(ctx context.Context, name, value string) error
	RemoveAttribute(ctx context.Context, name string) error
}

// LockSource reports the active locks on a resource.
type LockSource interface {
	ActiveLocks(resource string) []lock.Lock
}

// Command is a PROPPATCH instruction.
type Command uint8

const (
	Set Command = iota
	Remove
)

func (c Command) String() string {
	if c == Remove {
		return "remove"
	}
	return "set"
}

// rule computes a standard property. It returns nil when the property does
// not apply to the resource.
type rule func(e *Engine, res Resource) *davxml.Element

var standard = map[string]rule{
	"creationdate":          notFound,
	"displayname":           displayName,
	"getcontentlanguage":    notFound,
	"getcontentlength":      contentLength,
	"getcontenttype":        contentType,
	"getetag":               entityTag,
	"getlastmodified":       lastModified,
	"lockdiscovery":         lockDiscovery,
	"resourcetype":          resourceType,
	"source":                notFound,
	"supportedlock":         supportedLock,
	"quota":                 quotaAvailable("quota"),
	"quota-available-bytes": quotaAvailable("quota-available-bytes"),
	"quota-used":            quotaUsed("quota-used"),
	"quota-used-bytes":      quotaUsed("quota-used-bytes"),
}

// standardOrder is the order StandardNames reports.
var standardOrder = []string{
	"creationdate",
	"displayname",
	"getcontentlanguage",
	"getcontentlength",
	"getcontenttype",
	"getetag",
	"getlastmodified",
	"lockdiscovery",
	"resourcetype",
	"source",
	"supportedlock",
	"quota",
	"quota-used",
	"quota-available-bytes",
	"quota-used-bytes",
}

// Engine resolves properties. It holds no per-resource state and is safe for
// concurrent use.
type Engine struct {
	locks LockSource
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for lock timeouts.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine returns an Engine reading lock state from locks.
func NewEngine(locks LockSource, opts ...Option) *Engine {
	e := &Engine{locks: locks, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsStandard reports whether name is computed rather than stored.
func IsStandard(name davxml.Name) bool {
	if name.Space != davxml.Namespace {
		return false
	}
	_, ok := standard[name.Local]
	return ok
}

// StandardNames returns every standard property name.
func StandardNames() []davxml.Name {
	names := make([]davxml.Name, 0, len(standardOrder))
	for _, local := range standardOrder {
		names = append(names, davxml.DAV(local))
	}
	return names
}

// Get resolves name on res. It returns false when the property does not
// exist on the resource; error is reserved for backend failures.
//
// With ignoreValue the element is returned empty, as PROPFIND propname
// requires.
func (e *Engine) Get(ctx context.Context, res Resource, name davxml.Name, ignoreValue bool) (*davxml.Element, bool, error) {
	if name.Space == davxml.Namespace {
		if compute, ok := standard[name.Local]; ok {
			el := compute(e, res)
			if el == nil {
				return nil, false, nil
			}
			if ignoreValue {
				el.Clear()
			}
			return el, true, nil
		}
	}

	value, ok, err := res.Attribute(ctx, name.String())
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	el := decodeValue(name, value)
	if ignoreValue {
		el.Clear()
	}
	return el, true, nil
}

// Set applies cmd for el's name on res. Standard properties are read-only
// and a backend failure is logged; both report false.
func (e *Engine) Set(ctx context.Context, res Resource, el *davxml.Element, cmd Command) bool {
	if el == nil || IsStandard(el.Name) {
		return false
	}

	key := el.Name.String()
	var err error
	switch cmd {
	case Set:
		err = res.SetAttribute(ctx, key, el.String())
	case Remove:
		err = res.RemoveAttribute(ctx, key)
	default:
		return false
	}
	if err != nil {
		logger.Warn("Failed to %s property %s on %s: %v", cmd, key, res.Path(), err)
		return false
	}
	return true
}

// Names returns the standard names followed by the dead properties of res.
func (e *Engine) Names(ctx context.Context, res Resource) ([]davxml.Name, error) {
	names := StandardNames()

	custom, err := res.AttributeNames(ctx)
	if err != nil {
		return nil, err
	}
	for _, key := range custom {
		names = append(names, davxml.ParseName(key))
	}
	return names, nil
}

// decodeValue turns a stored attribute back into an element. Values that
// look like markup are parsed; anything else, including markup that fails
// to parse, becomes text.
func decodeValue(name davxml.Name, value string) *davxml.Element {
	if strings.HasPrefix(value, "<") {
		if el, err := davxml.Parse(value); err == nil {
			return el
		}
		logger.Debug("Stored property %s is not well-formed XML, returning it as text", name)
	}
	return davxml.NewText(name, value)
}

// ============================================================================
// Standard property rules
// ============================================================================

func notFound(*Engine, Resource) *davxml.Element {
	return nil
}

func displayName(_ *Engine, res Resource) *davxml.Element {
	return davxml.NewText(davxml.DAV("displayname"), res.Name())
}

func contentLength(_ *Engine, res Resource) *davxml.Element {
	name := davxml.DAV("getcontentlength")
	if res.IsCollection() {
		return davxml.NewElement(name)
	}
	return davxml.NewText(name, strconv.FormatInt(res.Size(), 10))
}

func contentType(_ *Engine, res Resource) *davxml.Element {
	name := davxml.DAV("getcontenttype")
	if res.IsCollection() {
		return davxml.NewElement(name)
	}
	if res.ContentType() == "" {
		return nil
	}
	return davxml.NewText(name, res.ContentType())
}

func entityTag(_ *Engine, res Resource) *davxml.Element {
	return davxml.NewText(davxml.DAV("getetag"), etag.Compute(res.Path(), res.LastModified()))
}

func lastModified(_ *Engine, res Resource) *davxml.Element {
	return davxml.NewText(davxml.DAV("getlastmodified"), res.LastModified().UTC().Format(http.TimeFormat))
}

func lockDiscovery(e *Engine, res Resource) *davxml.Element {
	return LockDiscovery(e.locks.ActiveLocks(res.Path()), e.now())
}

func resourceType(_ *Engine, res Resource) *davxml.Element {
	el := davxml.NewElement(davxml.DAV("resourcetype"))
	if res.IsCollection() {
		el.Add(davxml.DAV("collection"))
	}
	return el
}

func supportedLock(*Engine, Resource) *davxml.Element {
	return SupportedLock()
}

func quotaAvailable(local string) rule {
	return func(_ *Engine, res Resource) *davxml.Element {
		if !res.IsCollection() {
			return nil
		}
		return davxml.NewText(davxml.DAV(local), strconv.FormatInt(math.MaxInt64, 10))
	}
}

func quotaUsed(local string) rule {
	return func(_ *Engine, res Resource) *davxml.Element {
		if !res.IsCollection() {
			return nil
		}
		return davxml.NewText(davxml.DAV(local), "0")
	}
}
