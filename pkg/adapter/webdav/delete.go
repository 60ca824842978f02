package webdav

import (
	"net/http"

	"github.com/marmos91/dittodav/internal/logger"
)

// handleDelete removes a resource recursively and releases the locks held
// on everything it removed.
func (h *Handler) handleDelete(req *request) {
	if !h.checkCondition(req, req.path, true) {
		return
	}

	deleted, err := req.share.FS.Delete(req.ctx, req.path)
	h.releaseLocks(req, deleted)
	if err != nil {
		h.writeError(req, err)
		return
	}
	req.w.WriteHeader(http.StatusNoContent)
}

// releaseLocks drops the locks on paths, which no longer exist.
func (h *Handler) releaseLocks(req *request, paths []string) {
	for _, p := range paths {
		n, err := h.locks.ReleaseResource(req.ctx, p)
		if err != nil {
			logger.Warn("WebDAV failed to release locks on %s: %v", p, err)
			continue
		}
		if n > 0 {
			logger.Debug("WebDAV released %d lock(s) on removed %s", n, p)
		}
	}
}
