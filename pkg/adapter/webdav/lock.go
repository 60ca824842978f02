package webdav

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/dav/davxml"
	"github.com/marmos91/dittodav/pkg/dav/property"
	"github.com/marmos91/dittodav/pkg/lock"
)

// maxLockBody bounds the size of a lockinfo document.
const maxLockBody = 64 << 10

// handleLock creates a lock from a lockinfo body, or refreshes the lock
// named in the If header when the body is empty.
func (h *Handler) handleLock(req *request) {
	body, err := io.ReadAll(io.LimitReader(req.r.Body, maxLockBody))
	if err != nil {
		http.Error(req.w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		h.refreshLock(req)
		return
	}

	info, err := davxml.Parse(string(body))
	if err != nil || info.Name != davxml.DAV("lockinfo") {
		http.Error(req.w, "invalid lockinfo body", http.StatusBadRequest)
		return
	}

	l, err := parseLockInfo(info)
	if err != nil {
		http.Error(req.w, err.Error(), http.StatusBadRequest)
		return
	}
	if l.Depth, err = parseDepth(req.r, lock.DepthInfinity, false); err != nil {
		http.Error(req.w, "invalid Depth header", http.StatusBadRequest)
		return
	}
	l.Resource = req.path
	l.Timeout = h.parseTimeout(req.r)

	if !h.checkCondition(req, req.path, false) {
		return
	}

	exists, err := req.share.FS.Exists(req.ctx, req.path)
	if err != nil {
		h.writeError(req, err)
		return
	}

	if err := h.locks.Acquire(req.ctx, l); err != nil {
		var conflict *lock.ConflictError
		if errors.As(err, &conflict) {
			h.writeLocked(req.w, conflict.Locks)
			return
		}
		h.writeError(req, err)
		return
	}

	status := http.StatusOK
	if !exists {
		// Locking an unmapped URL creates an empty file in its place.
		if _, err := req.share.FS.Write(req.ctx, req.path, nil); err != nil {
			if relErr := h.locks.Release(req.ctx, l.Token); relErr != nil {
				logger.Warn("WebDAV failed to roll back lock %s: %v", l.Token, relErr)
			}
			h.writeError(req, err)
			return
		}
		status = http.StatusCreated
	}

	req.w.Header().Set("Lock-Token", "<"+l.Token+">")
	h.writeLockResponse(req.w, status, *l)
}

func (h *Handler) refreshLock(req *request) {
	token, ok := submittedToken(req.r)
	if !ok {
		http.Error(req.w, "lock refresh requires a lock token in the If header", http.StatusBadRequest)
		return
	}

	existing, found := h.locks.Lookup(token)
	if !found || existing.Resource != req.path {
		http.Error(req.w, "lock token does not match the resource", http.StatusPreconditionFailed)
		return
	}
	if !h.checkCondition(req, req.path, false) {
		return
	}

	refreshed, err := h.locks.Refresh(req.ctx, token, h.parseTimeout(req.r))
	if errors.Is(err, lock.ErrLockNotFound) {
		http.Error(req.w, "lock expired", http.StatusPreconditionFailed)
		return
	}
	if err != nil {
		h.writeError(req, err)
		return
	}
	h.writeLockResponse(req.w, http.StatusOK, *refreshed)
}

func (h *Handler) writeLockResponse(w http.ResponseWriter, status int, l lock.Lock) {
	prop := davxml.NewElement(davxml.DAV("prop"))
	prop.Append(property.LockDiscovery([]lock.Lock{l}, h.now()))
	writeXML(w, status, prop)
}

// parseLockInfo reads scope, type and owner from a lockinfo element.
func parseLockInfo(info *davxml.Element) (*lock.Lock, error) {
	l := &lock.Lock{}

	scope := info.Child(davxml.DAV("lockscope"))
	if scope == nil || len(scope.Children) != 1 {
		return nil, errors.New("lockinfo requires a lockscope")
	}
	if scope.Children[0].Name.Space != davxml.Namespace {
		return nil, errors.New("unknown lock scope")
	}
	var err error
	if l.Scope, err = lock.ParseScope(scope.Children[0].Name.Local); err != nil {
		return nil, err
	}

	if locktype := info.Child(davxml.DAV("locktype")); locktype != nil {
		if locktype.Child(davxml.DAV("write")) == nil {
			return nil, errors.New("only write locks are supported")
		}
	}

	if owner := info.Child(davxml.DAV("owner")); owner != nil {
		l.Owner = owner.String()
	}
	return l, nil
}

// handleUnlock releases the lock named by the Lock-Token header.
func (h *Handler) handleUnlock(req *request) {
	token := strings.TrimSpace(req.r.Header.Get("Lock-Token"))
	token = strings.TrimSuffix(strings.TrimPrefix(token, "<"), ">")
	if token == "" {
		http.Error(req.w, "missing Lock-Token header", http.StatusBadRequest)
		return
	}

	existing, found := h.locks.Lookup(token)
	if !found || existing.Resource != req.path {
		http.Error(req.w, "lock token does not match the resource", http.StatusConflict)
		return
	}
	if !h.checkCondition(req, req.path, false) {
		return
	}

	if err := h.locks.Release(req.ctx, token); err != nil {
		h.writeError(req, err)
		return
	}
	req.w.WriteHeader(http.StatusNoContent)
}
