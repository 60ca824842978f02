// Package webdav serves the registry's shares over WebDAV.
//
// Handler is a plain http.Handler. It resolves the share from the first
// path segment, runs the If header gate for mutating methods and maps
// resource adapter errors to status codes. Protocol decisions live in
// pkg/lock, pkg/dav/condition and pkg/dav/property.
package webdav

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/internal/ratelimiter"
	"github.com/marmos91/dittodav/pkg/dav/condition"
	"github.com/marmos91/dittodav/pkg/dav/property"
	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/metrics"
	"github.com/marmos91/dittodav/pkg/registry"
	"github.com/marmos91/dittodav/pkg/store/metadata"
)

// allowedMethods is advertised by OPTIONS.
var allowedMethods = []string{
	http.MethodOptions,
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	"MKCOL",
	"COPY",
	"MOVE",
	"LOCK",
	"UNLOCK",
	"PROPFIND",
	"PROPPATCH",
}

// clientIdleTTL is how long an idle client's rate bucket is kept.
const clientIdleTTL = 10 * time.Minute

// Handler implements the WebDAV methods.
type Handler struct {
	registry *registry.Registry
	locks    *lock.Manager
	eval     *condition.Evaluator
	props    *property.Engine

	global  *ratelimiter.RateLimiter
	clients *ratelimiter.ClientLimiter
	metrics metrics.WebDAVMetrics

	defaultLockTimeout time.Duration
	maxLockTimeout     time.Duration
	now                func() time.Time
}

// NewHandler builds a Handler serving reg. Nil metrics select the no-op
// implementations.
func NewHandler(reg *registry.Registry, config WebDAVConfig, webdavMetrics metrics.WebDAVMetrics, lockMetrics metrics.LockMetrics) *Handler {
	if webdavMetrics == nil {
		webdavMetrics = metrics.NewNoopWebDAVMetrics()
	}

	h := &Handler{
		registry:           reg,
		locks:              reg.Locks(),
		eval:               condition.NewEvaluator(reg.Locks(), lockMetrics),
		props:              property.NewEngine(reg.Locks()),
		metrics:            webdavMetrics,
		defaultLockTimeout: config.DefaultLockTimeout,
		maxLockTimeout:     config.MaxLockTimeout,
		now:                time.Now,
	}
	if config.MaxRequestsPerSecond > 0 {
		h.global = ratelimiter.New(config.MaxRequestsPerSecond, config.BurstSize)
	}
	if config.ClientRequestsPerSecond > 0 {
		h.clients = ratelimiter.NewClientLimiter(config.ClientRequestsPerSecond, config.BurstSize, clientIdleTTL)
	}
	return h
}

// request carries the per-request state shared by the method handlers.
type request struct {
	w     http.ResponseWriter
	r     *http.Request
	ctx   context.Context
	share *registry.Share
	path  string
}

type methodFunc func(h *Handler, req *request)

// mutating lists the methods a read-only share refuses with 403. COPY is
// included because its destination is always in the same share.
var mutating = map[string]bool{
	http.MethodPut:    true,
	http.MethodDelete: true,
	"MKCOL":           true,
	"COPY":            true,
	"MOVE":            true,
	"LOCK":            true,
	"PROPPATCH":       true,
}

var methods = map[string]methodFunc{
	http.MethodGet:    (*Handler).handleGet,
	http.MethodHead:   (*Handler).handleGet,
	http.MethodPost:   (*Handler).handlePost,
	http.MethodPut:    (*Handler).handlePut,
	http.MethodDelete: (*Handler).handleDelete,
	"MKCOL":           (*Handler).handleMkcol,
	"COPY":            (*Handler).handleCopy,
	"MOVE":            (*Handler).handleMove,
	"LOCK":            (*Handler).handleLock,
	"UNLOCK":          (*Handler).handleUnlock,
	"PROPFIND":        (*Handler).handlePropfind,
	"PROPPATCH":       (*Handler).handleProppatch,
}

// ServeHTTP dispatches on the request method.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	shareName := ""

	h.metrics.RecordRequestStart(r.Method)
	defer func() {
		h.metrics.RecordRequestEnd(r.Method)
		h.metrics.RecordRequest(r.Method, shareName, rec.status, h.now().Sub(start))
		logger.Debug("WebDAV %s %s -> %d (%v)", r.Method, r.URL.Path, rec.status, h.now().Sub(start))
	}()

	if litmus := r.Header.Get("X-Litmus"); litmus != "" {
		logger.Debug("litmus: %s", litmus)
	}

	if !h.allow(r) {
		h.metrics.RecordRateLimited()
		rec.Header().Set("Retry-After", "1")
		http.Error(rec, "rate limit exceeded", http.StatusServiceUnavailable)
		return
	}

	if r.Method == http.MethodOptions {
		h.handleOptions(rec)
		return
	}

	handle, ok := methods[r.Method]
	if !ok {
		http.Error(rec, "method not implemented", http.StatusNotImplemented)
		return
	}

	p := metadata.CleanPath(r.URL.Path)
	share, ok := h.registry.ShareForPath(p)
	if !ok {
		http.NotFound(rec, r)
		return
	}
	shareName = share.Name

	if err := h.registry.CheckAccess(share.Name, r.RemoteAddr); err != nil {
		logger.Debug("WebDAV access to share %s denied: %v", share.Name, err)
		http.Error(rec, "forbidden", http.StatusForbidden)
		return
	}

	if mutating[r.Method] && share.FS.ReadOnly() {
		http.Error(rec, "share is read-only", http.StatusForbidden)
		return
	}

	handle(h, &request{w: rec, r: r, ctx: r.Context(), share: share, path: p})
}

// allow consumes a token from the global and per-client limiters.
func (h *Handler) allow(r *http.Request) bool {
	if h.global != nil && !h.global.Allow() {
		return false
	}
	if h.clients != nil && !h.clients.Allow(clientHost(r.RemoteAddr)) {
		return false
	}
	return true
}

// pruneLoop evicts idle client buckets until ctx is done.
func (h *Handler) pruneLoop(ctx context.Context) {
	if h.clients == nil {
		return
	}

	ticker := time.NewTicker(clientIdleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.clients.Prune(); n > 0 {
				logger.Debug("WebDAV rate limiter pruned %d idle client(s)", n)
			}
		}
	}
}

func (h *Handler) handleOptions(w http.ResponseWriter) {
	w.Header().Set("DAV", "1, 2")
	w.Header().Set("MS-Author-Via", "DAV")
	w.Header().Set("Allow", strings.Join(allowedMethods, ", "))
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusOK)
}

// ============================================================================
// If header gate
// ============================================================================

// checkCondition evaluates the If header against the resource at p and
// reports whether the request may proceed. On false the response has been
// written.
//
// With enforce set, a locked resource also requires an If header: mutating
// a locked resource without presenting a condition is refused with 423.
func (h *Handler) checkCondition(req *request, p string, enforce bool) bool {
	header := strings.TrimSpace(req.r.Header.Get("If"))
	if header == "" {
		if enforce {
			if active := h.locks.ActiveLocks(p); len(active) > 0 {
				logger.Debug("WebDAV %s on locked %s without If header", req.r.Method, p)
				h.writeLocked(req.w, active)
				return false
			}
		}
		return true
	}

	tag, err := h.currentETag(req, p)
	if err != nil {
		h.writeError(req, err)
		return false
	}

	ok, err := h.eval.Evaluate(p, tag, header)
	var conflict *lock.ConflictError
	switch {
	case errors.As(err, &conflict):
		h.writeLocked(req.w, conflict.Locks)
		return false
	case errors.Is(err, condition.ErrMalformedCondition):
		http.Error(req.w, "malformed If header", http.StatusPreconditionFailed)
		return false
	case err != nil:
		h.writeError(req, err)
		return false
	case !ok:
		http.Error(req.w, "precondition failed", http.StatusPreconditionFailed)
		return false
	}
	return true
}

// submittedToken returns the first non-negated state token of the If header.
func submittedToken(r *http.Request) (string, bool) {
	cond, err := condition.Parse(r.Header.Get("If"))
	if err != nil {
		return "", false
	}
	for _, group := range cond.Groups {
		for _, term := range group.Terms {
			if term.Kind == condition.TermToken && !term.Negated && term.Value != lock.NoLockToken {
				return term.Value, true
			}
		}
	}
	return "", false
}

// clientHost strips the port from a remote address.
func clientHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
