package webdav

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/dav/davxml"
	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/vfs"
)

// maxPropBody bounds PROPFIND and PROPPATCH documents.
const maxPropBody = 1 << 20

type propfindMode uint8

const (
	modeAllProp propfindMode = iota
	modePropName
	modeProp
)

// propfind is a parsed PROPFIND body.
type propfind struct {
	mode  propfindMode
	names []davxml.Name
}

var errBadPropfind = errors.New("invalid propfind body")

// parsePropfind reads the request body. An empty body is an allprop request.
func parsePropfind(r *http.Request) (*propfind, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPropBody))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(body)) == "" {
		return &propfind{mode: modeAllProp}, nil
	}

	root, err := davxml.Parse(string(body))
	if err != nil || root.Name != davxml.DAV("propfind") {
		return nil, errBadPropfind
	}

	switch {
	case root.Child(davxml.DAV("allprop")) != nil:
		return &propfind{mode: modeAllProp}, nil
	case root.Child(davxml.DAV("propname")) != nil:
		return &propfind{mode: modePropName}, nil
	}

	prop := root.Child(davxml.DAV("prop"))
	if prop == nil {
		return nil, errBadPropfind
	}
	pf := &propfind{mode: modeProp}
	for _, child := range prop.Children {
		pf.names = append(pf.names, child.Name)
	}
	return pf, nil
}

// handlePropfind answers a multistatus with the properties of the target
// and, depending on Depth, its members.
func (h *Handler) handlePropfind(req *request) {
	depth, err := parseDepth(req.r, lock.DepthInfinity, true)
	if err != nil {
		http.Error(req.w, "invalid Depth header", http.StatusBadRequest)
		return
	}
	pf, err := parsePropfind(req.r)
	if err != nil {
		http.Error(req.w, "invalid propfind body", http.StatusBadRequest)
		return
	}

	res, err := req.share.FS.Resolve(req.ctx, req.path)
	if err != nil {
		h.writeError(req, err)
		return
	}

	var responses []davxml.Response
	if err := h.walk(req, res, depth, func(r *vfs.Resource) {
		responses = append(responses, h.propfindResponse(req, r, pf))
	}); err != nil {
		h.writeError(req, err)
		return
	}

	writeXML(req.w, http.StatusMultiStatus, davxml.Multistatus(responses...))
}

// walk visits res and its members down to depth. DepthInfinity is unbounded.
func (h *Handler) walk(req *request, res *vfs.Resource, depth int, visit func(*vfs.Resource)) error {
	if err := req.ctx.Err(); err != nil {
		return err
	}

	visit(res)
	if depth == 0 || !res.IsCollection() {
		return nil
	}

	children, err := req.share.FS.Children(req.ctx, res.Path())
	if err != nil {
		return err
	}
	next := depth - 1
	if depth == lock.DepthInfinity {
		next = lock.DepthInfinity
	}
	for _, child := range children {
		if err := h.walk(req, child, next, visit); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) propfindResponse(req *request, res *vfs.Resource, pf *propfind) davxml.Response {
	resp := davxml.Response{Href: href(res.Path(), res.IsCollection())}

	names := pf.names
	if pf.mode != modeProp {
		var err error
		if names, err = h.props.Names(req.ctx, res); err != nil {
			logger.Warn("WebDAV failed to list properties of %s: %v", res.Path(), err)
			resp.Status = http.StatusInternalServerError
			return resp
		}
	}
	ignoreValue := pf.mode == modePropName

	found := davxml.Propstat{Status: http.StatusOK}
	missing := davxml.Propstat{Status: http.StatusNotFound}
	failed := davxml.Propstat{Status: http.StatusInternalServerError}
	for _, name := range names {
		el, ok, err := h.props.Get(req.ctx, res, name, ignoreValue)
		switch {
		case err != nil:
			logger.Warn("WebDAV failed to read property %s of %s: %v", name, res.Path(), err)
			failed.Props = append(failed.Props, davxml.NewElement(name))
		case ok:
			found.Props = append(found.Props, el)
		case pf.mode == modeProp:
			missing.Props = append(missing.Props, davxml.NewElement(name))
		}
	}

	resp.Propstats = []davxml.Propstat{found, missing, failed}
	if len(found.Props)+len(missing.Props)+len(failed.Props) == 0 {
		// An empty prop request still yields a well-formed propstat.
		resp.Propstats = nil
		resp.Status = http.StatusOK
	}
	return resp
}
