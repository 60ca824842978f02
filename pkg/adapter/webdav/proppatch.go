package webdav

import (
	"io"
	"net/http"

	"github.com/marmos91/dittodav/pkg/dav/davxml"
	"github.com/marmos91/dittodav/pkg/dav/property"
)

// handleProppatch applies the set and remove instructions of a
// propertyupdate body in document order. Each property gets its own status:
// standard properties are refused with 403 and backend failures report 409.
func (h *Handler) handleProppatch(req *request) {
	if !h.checkCondition(req, req.path, true) {
		return
	}

	res, err := req.share.FS.Resolve(req.ctx, req.path)
	if err != nil {
		h.writeError(req, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.r.Body, maxPropBody))
	if err != nil {
		http.Error(req.w, "failed to read request body", http.StatusBadRequest)
		return
	}
	root, err := davxml.Parse(string(body))
	if err != nil || root.Name != davxml.DAV("propertyupdate") {
		http.Error(req.w, "invalid propertyupdate body", http.StatusBadRequest)
		return
	}

	byStatus := map[int][]*davxml.Element{}
	var order []int
	record := func(status int, name davxml.Name) {
		if _, seen := byStatus[status]; !seen {
			order = append(order, status)
		}
		byStatus[status] = append(byStatus[status], davxml.NewElement(name))
	}

	for _, instruction := range root.Children {
		var cmd property.Command
		switch instruction.Name {
		case davxml.DAV("set"):
			cmd = property.Set
		case davxml.DAV("remove"):
			cmd = property.Remove
		default:
			continue
		}

		prop := instruction.Child(davxml.DAV("prop"))
		if prop == nil {
			continue
		}
		for _, el := range prop.Children {
			switch {
			case property.IsStandard(el.Name):
				record(http.StatusForbidden, el.Name)
			case h.props.Set(req.ctx, res, el, cmd):
				record(http.StatusOK, el.Name)
			default:
				record(http.StatusConflict, el.Name)
			}
		}
	}

	resp := davxml.Response{Href: href(res.Path(), res.IsCollection()), Status: http.StatusOK}
	for _, status := range order {
		resp.Propstats = append(resp.Propstats, davxml.Propstat{Status: status, Props: byStatus[status]})
	}
	writeXML(req.w, http.StatusMultiStatus, davxml.Multistatus(resp))
}
