package webdav

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/dav/davxml"
	"github.com/marmos91/dittodav/pkg/dav/etag"
	"github.com/marmos91/dittodav/pkg/dav/property"
	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/store/content"
	"github.com/marmos91/dittodav/pkg/store/metadata"
	"github.com/marmos91/dittodav/pkg/vfs"
)

const xmlContentType = "application/xml; charset=utf-8"

// writeXML writes root as the response body.
func writeXML(w http.ResponseWriter, status int, root *davxml.Element) {
	w.Header().Set("Content-Type", xmlContentType)
	w.WriteHeader(status)
	if err := davxml.Write(w, root); err != nil {
		logger.Debug("WebDAV failed to write response body: %v", err)
	}
}

// writeLocked answers 423 with the locks that block the request.
func (h *Handler) writeLocked(w http.ResponseWriter, locks []lock.Lock) {
	prop := davxml.NewElement(davxml.DAV("prop"))
	prop.Append(property.LockDiscovery(locks, h.now()))
	writeXML(w, http.StatusLocked, prop)
}

// writeError maps a resource adapter error to a status code.
func (h *Handler) writeError(req *request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("WebDAV %s %s failed: %v", req.r.Method, req.path, err)
	} else {
		logger.Debug("WebDAV %s %s: %v", req.r.Method, req.path, err)
	}
	http.Error(req.w, http.StatusText(status), status)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, vfs.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, content.ErrTooLarge):
		return http.StatusInsufficientStorage
	case errors.Is(err, content.ErrUnavailable):
		return http.StatusServiceUnavailable
	}

	code, ok := metadata.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch code {
	case metadata.ErrNotFound:
		return http.StatusNotFound
	case metadata.ErrAlreadyExists, metadata.ErrIsDirectory:
		return http.StatusMethodNotAllowed
	case metadata.ErrParentNotFound, metadata.ErrNotDirectory:
		return http.StatusConflict
	case metadata.ErrNotEmpty:
		return http.StatusConflict
	case metadata.ErrInvalidArgument:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// currentETag returns the entity tag of p, or "" if nothing exists there.
func (h *Handler) currentETag(req *request, p string) (string, error) {
	modified, err := req.share.FS.LastModified(req.ctx, p)
	if metadata.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return etag.Compute(p, modified), nil
}

// href renders p for a multistatus response. Collections end in "/".
func href(p string, collection bool) string {
	escaped := (&url.URL{Path: p}).EscapedPath()
	if collection && !strings.HasSuffix(escaped, "/") {
		escaped += "/"
	}
	return escaped
}

// ============================================================================
// Header parsing
// ============================================================================

// errBadHeader marks a request header that cannot be honoured.
var errBadHeader = errors.New("bad header")

// parseDepth reads the Depth header. Missing means def; "1" is accepted only
// when allowOne is set.
func parseDepth(r *http.Request, def int, allowOne bool) (int, error) {
	switch strings.ToLower(strings.TrimSpace(r.Header.Get("Depth"))) {
	case "":
		return def, nil
	case "0":
		return 0, nil
	case "1":
		if allowOne {
			return 1, nil
		}
	case "infinity":
		return lock.DepthInfinity, nil
	}
	return 0, errBadHeader
}

// parseOverwrite reads the Overwrite header, which defaults to T.
func parseOverwrite(r *http.Request) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(r.Header.Get("Overwrite"))) {
	case "", "T":
		return true, nil
	case "F":
		return false, nil
	}
	return false, errBadHeader
}

// parseTimeout reads the Timeout header ("Second-N" or "Infinite", possibly
// a comma separated list of preferences) and applies the configured
// default and cap. Zero means infinite.
func (h *Handler) parseTimeout(r *http.Request) time.Duration {
	timeout := h.defaultLockTimeout

	for _, candidate := range strings.Split(r.Header.Get("Timeout"), ",") {
		candidate = strings.TrimSpace(candidate)
		if strings.EqualFold(candidate, "Infinite") {
			timeout = 0
			break
		}
		if len(candidate) > len("Second-") && strings.EqualFold(candidate[:len("Second-")], "Second-") {
			if seconds, err := strconv.ParseUint(candidate[len("Second-"):], 10, 32); err == nil && seconds > 0 {
				timeout = time.Duration(seconds) * time.Second
				break
			}
		}
	}

	if h.maxLockTimeout > 0 && (timeout == 0 || timeout > h.maxLockTimeout) {
		timeout = h.maxLockTimeout
	}
	return timeout
}

// parseDestination resolves the Destination header to a cleaned path. The
// host, when present, must match the request's own.
func parseDestination(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Destination"))
	if raw == "" {
		return "", errBadHeader
	}

	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "", errBadHeader
	}
	if u.Host != "" && !strings.EqualFold(u.Host, r.Host) {
		return "", errForeignDestination
	}
	return metadata.CleanPath(u.Path), nil
}

// errForeignDestination is a Destination on another server.
var errForeignDestination = errors.New("destination on another server")
