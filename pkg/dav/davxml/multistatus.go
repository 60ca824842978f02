package davxml

import (
	"fmt"
	"net/http"
)

// StatusLine renders an HTTP status as used in multistatus bodies,
// e.g. "HTTP/1.1 404 Not Found".
func StatusLine(code int) string {
	return fmt.Sprintf("HTTP/1.1 %d %s", code, http.StatusText(code))
}

// Propstat groups properties that share one status.
type Propstat struct {
	Status int
	Props  []*Element
}

// Response is one <D:response> of a multistatus body. Either Status or
// Propstats is set.
type Response struct {
	Href      string
	Status    int
	Propstats []Propstat
}

// Element renders the response.
func (r Response) Element() *Element {
	resp := NewElement(DAV("response"))
	resp.Append(NewText(DAV("href"), r.Href))

	if len(r.Propstats) == 0 {
		resp.Append(NewText(DAV("status"), StatusLine(r.Status)))
		return resp
	}

	for _, ps := range r.Propstats {
		if len(ps.Props) == 0 {
			continue
		}
		propstat := resp.Add(DAV("propstat"))
		prop := propstat.Add(DAV("prop"))
		prop.Append(ps.Props...)
		propstat.Append(NewText(DAV("status"), StatusLine(ps.Status)))
	}
	return resp
}

// Multistatus builds a <D:multistatus> document.
func Multistatus(responses ...Response) *Element {
	root := NewElement(DAV("multistatus"))
	for _, r := range responses {
		root.Append(r.Element())
	}
	return root
}
