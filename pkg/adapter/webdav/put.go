package webdav

import (
	"io"
	"net/http"

	"github.com/marmos91/dittodav/pkg/dav/etag"
)

// handlePut creates or replaces a file.
func (h *Handler) handlePut(req *request) {
	if !h.checkCondition(req, req.path, true) {
		return
	}

	isDir, err := req.share.FS.IsCollection(req.ctx, req.path)
	if err != nil {
		h.writeError(req, err)
		return
	}
	if isDir {
		http.Error(req.w, "cannot PUT to a collection", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(req.r.Body)
	if err != nil {
		http.Error(req.w, "failed to read request body", http.StatusBadRequest)
		return
	}

	created, err := req.share.FS.Write(req.ctx, req.path, data)
	if err != nil {
		h.writeError(req, err)
		return
	}
	h.metrics.RecordBytesTransferred("write", int64(len(data)))

	if modified, err := req.share.FS.LastModified(req.ctx, req.path); err == nil {
		req.w.Header().Set("ETag", etag.Compute(req.path, modified))
	}
	if created {
		req.w.WriteHeader(http.StatusCreated)
		return
	}
	req.w.WriteHeader(http.StatusNoContent)
}
