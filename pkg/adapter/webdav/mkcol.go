package webdav

import (
	"io"
	"net/http"
)

// handleMkcol creates a collection. Request bodies are not supported.
func (h *Handler) handleMkcol(req *request) {
	if hasBody(req.r) {
		http.Error(req.w, "MKCOL request bodies are not supported", http.StatusUnsupportedMediaType)
		return
	}
	exists, err := req.share.FS.Exists(req.ctx, req.path)
	if err != nil {
		h.writeError(req, err)
		return
	}
	if exists {
		http.Error(req.w, "resource already exists", http.StatusMethodNotAllowed)
		return
	}

	if err := req.share.FS.Mkcol(req.ctx, req.path); err != nil {
		h.writeError(req, err)
		return
	}
	req.w.WriteHeader(http.StatusCreated)
}

// hasBody reports whether the request carries a non-empty body.
func hasBody(r *http.Request) bool {
	if r.ContentLength > 0 {
		return true
	}
	if r.ContentLength == 0 || r.Body == nil || r.Body == http.NoBody {
		return false
	}
	// Unknown length (chunked): peek one byte.
	var b [1]byte
	n, _ := io.ReadFull(r.Body, b[:])
	return n > 0
}
