package webdav

import (
	"errors"
	"net/http"

	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/store/metadata"
	"github.com/marmos91/dittodav/pkg/vfs"
)

func (h *Handler) handleCopy(req *request) {
	h.copyOrMove(req, false)
}

func (h *Handler) handleMove(req *request) {
	h.copyOrMove(req, true)
}

// copyOrMove implements COPY and MOVE. The status mapping is:
//
//	If fails                             412
//	If names the state but not the lock  423
//	bad Destination / Depth / Overwrite  400
//	Destination on another server/share  502
//	source == destination                403
//	source missing                       404
//	destination exists, Overwrite: F     412
//	destination parent missing           409
//	destination replaced                 204
//	destination created                  201
func (h *Handler) copyOrMove(req *request, move bool) {
	dest, err := parseDestination(req.r)
	if errors.Is(err, errForeignDestination) {
		http.Error(req.w, "destination is on another server", http.StatusBadGateway)
		return
	}
	if err != nil {
		http.Error(req.w, "missing or invalid Destination header", http.StatusBadRequest)
		return
	}

	depth, err := parseDepth(req.r, lock.DepthInfinity, false)
	if err != nil || (move && depth != lock.DepthInfinity) {
		http.Error(req.w, "invalid Depth header", http.StatusBadRequest)
		return
	}
	overwrite, err := parseOverwrite(req.r)
	if err != nil {
		http.Error(req.w, "invalid Overwrite header", http.StatusBadRequest)
		return
	}

	if move && !h.checkCondition(req, req.path, true) {
		return
	}
	if !h.checkCondition(req, dest, true) {
		return
	}

	if dest == req.path {
		http.Error(req.w, "source and destination are the same", http.StatusForbidden)
		return
	}
	if destShare, ok := h.registry.ShareForPath(dest); !ok || destShare != req.share {
		http.Error(req.w, "destination is outside the share", http.StatusBadGateway)
		return
	}

	fs := req.share.FS
	exists, err := fs.Exists(req.ctx, req.path)
	if err != nil {
		h.writeError(req, err)
		return
	}
	if !exists {
		http.Error(req.w, "source not found", http.StatusNotFound)
		return
	}
	if metadata.IsDescendant(dest, req.path) {
		http.Error(req.w, "destination is inside the source", http.StatusForbidden)
		return
	}

	replaced, err := fs.Exists(req.ctx, dest)
	if err != nil {
		h.writeError(req, err)
		return
	}
	if replaced {
		if !overwrite {
			http.Error(req.w, "destination exists", http.StatusPreconditionFailed)
			return
		}
		deleted, err := fs.Delete(req.ctx, dest)
		h.releaseLocks(req, deleted)
		if err != nil {
			h.writeError(req, err)
			return
		}
	}

	if move {
		err = h.move(req, fs, dest)
	} else {
		err = fs.Copy(req.ctx, req.path, dest, depth)
	}
	if err != nil {
		if metadata.HasCode(err, metadata.ErrParentNotFound) || metadata.HasCode(err, metadata.ErrNotDirectory) {
			http.Error(req.w, "destination parent does not exist", http.StatusConflict)
			return
		}
		h.writeError(req, err)
		return
	}

	if replaced {
		req.w.WriteHeader(http.StatusNoContent)
		return
	}
	req.w.WriteHeader(http.StatusCreated)
}

// move renames the source subtree. Locks do not travel with a moved
// resource, so the locks on every moved path are released.
func (h *Handler) move(req *request, fs *vfs.FileSystem, dest string) error {
	moved, err := subtree(req, fs, req.path)
	if err != nil {
		return err
	}
	if err := fs.Rename(req.ctx, req.path, dest); err != nil {
		return err
	}
	h.releaseLocks(req, moved)
	return nil
}

// subtree lists p and everything below it.
func subtree(req *request, fs *vfs.FileSystem, p string) ([]string, error) {
	paths := []string{p}
	isDir, err := fs.IsCollection(req.ctx, p)
	if err != nil || !isDir {
		return paths, err
	}

	children, err := fs.Children(req.ctx, p)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		below, err := subtree(req, fs, child.Path())
		if err != nil {
			return nil, err
		}
		paths = append(paths, below...)
	}
	return paths, nil
}
