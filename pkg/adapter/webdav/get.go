package webdav

import (
	"io"
	"net/http"
	"strconv"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/dav/etag"
)

// handleGet serves GET and HEAD. Collections are not readable.
func (h *Handler) handleGet(req *request) {
	res, err := req.share.FS.Resolve(req.ctx, req.path)
	if err != nil {
		h.writeError(req, err)
		return
	}
	if res.IsCollection() {
		http.Error(req.w, "collections cannot be read", http.StatusForbidden)
		return
	}

	header := req.w.Header()
	header.Set("Last-Modified", res.LastModified().UTC().Format(http.TimeFormat))
	header.Set("ETag", etag.Compute(res.Path(), res.LastModified()))
	header.Set("Content-Length", strconv.FormatInt(res.Size(), 10))
	if ct := res.ContentType(); ct != "" {
		header.Set("Content-Type", ct)
	}

	if req.r.Method == http.MethodHead {
		req.w.WriteHeader(http.StatusOK)
		return
	}

	reader, _, err := req.share.FS.Open(req.ctx, req.path)
	if err != nil {
		header.Del("Content-Length")
		h.writeError(req, err)
		return
	}
	defer func() { _ = reader.Close() }()

	req.w.WriteHeader(http.StatusOK)
	n, err := io.Copy(req.w, reader)
	h.metrics.RecordBytesTransferred("read", n)
	if err != nil {
		logger.Debug("WebDAV GET %s aborted after %d bytes: %v", req.path, n, err)
	}
}

// handlePost treats POST on a file as GET.
func (h *Handler) handlePost(req *request) {
	isDir, err := req.share.FS.IsCollection(req.ctx, req.path)
	if err != nil {
		h.writeError(req, err)
		return
	}
	if isDir {
		http.Error(req.w, "POST is not supported on collections", http.StatusMethodNotAllowed)
		return
	}
	h.handleGet(req)
}
