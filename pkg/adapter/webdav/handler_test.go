package webdav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/dittodav/pkg/dav/property"
	"github.com/marmos91/dittodav/pkg/registry"
	contentmemory "github.com/marmos91/dittodav/pkg/store/content/memory"
	metamemory "github.com/marmos91/dittodav/pkg/store/metadata/memory"
	"github.com/marmos91/dittodav/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ property.Resource = (*vfs.Resource)(nil)

const exclusiveLock = `<?xml version="1.0" encoding="utf-8"?>
<D:lockinfo xmlns:D="DAV:">
  <D:lockscope><D:exclusive/></D:lockscope>
  <D:locktype><D:write/></D:locktype>
  <D:owner><D:href>mailto:alice@example.com</D:href></D:owner>
</D:lockinfo>`

const sharedLock = `<D:lockinfo xmlns:D="DAV:"><D:lockscope><D:shared/></D:lockscope><D:locktype><D:write/></D:locktype></D:lockinfo>`

func testConfig() WebDAVConfig {
	return WebDAVConfig{DefaultLockTimeout: time.Hour, MaxLockTimeout: 24 * time.Hour}
}

func newTestHandler(t *testing.T, config WebDAVConfig, shares ...registry.ShareConfig) *Handler {
	t.Helper()
	ctx := context.Background()

	reg := registry.NewRegistry(nil)
	store, err := contentmemory.NewMemoryContentStore(ctx, contentmemory.MemoryContentStoreConfig{})
	require.NoError(t, err)
	require.NoError(t, reg.RegisterMetadataStore("meta", metamemory.NewMemoryMetadataStoreWithDefaults()))
	require.NoError(t, reg.RegisterContentStore("content", store))

	if len(shares) == 0 {
		shares = []registry.ShareConfig{{Name: "docs"}}
	}
	for _, share := range shares {
		share.MetadataStore = "meta"
		share.ContentStore = "content"
		require.NoError(t, reg.AddShare(ctx, &share))
	}
	return NewHandler(reg, config, nil, nil)
}

func do(h *Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func put(t *testing.T, h *Handler, target, body string) {
	t.Helper()
	rec := do(h, http.MethodPut, target, body)
	require.Contains(t, []int{http.StatusCreated, http.StatusNoContent}, rec.Code, rec.Body.String())
}

func mkcol(t *testing.T, h *Handler, target string) {
	t.Helper()
	rec := do(h, "MKCOL", target, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func lockResource(t *testing.T, h *Handler, target string, headers ...string) string {
	t.Helper()
	rec := do(h, "LOCK", target, exclusiveLock, headers...)
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, rec.Code, rec.Body.String())
	token := rec.Header().Get("Lock-Token")
	require.True(t, strings.HasPrefix(token, "<opaquelocktoken:"), token)
	return strings.Trim(token, "<>")
}

// ============================================================================
// Dispatch
// ============================================================================

func TestOptions(t *testing.T) {
	h := newTestHandler(t, testConfig())

	rec := do(h, http.MethodOptions, "/anything", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1, 2", rec.Header().Get("DAV"))
	assert.Equal(t, "DAV", rec.Header().Get("MS-Author-Via"))
	assert.Contains(t, rec.Header().Get("Allow"), "PROPFIND")
	assert.Contains(t, rec.Header().Get("Allow"), "UNLOCK")
}

func TestUnknownMethod(t *testing.T) {
	h := newTestHandler(t, testConfig())
	assert.Equal(t, http.StatusNotImplemented, do(h, "PATCH", "/docs/a", "").Code)
}

func TestUnknownShare(t *testing.T) {
	h := newTestHandler(t, testConfig())
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/nope/a", "").Code)
}

func TestAccessDenied(t *testing.T) {
	// httptest requests originate from 192.0.2.1.
	h := newTestHandler(t, testConfig(),
		registry.ShareConfig{Name: "docs", DeniedClients: []string{"192.0.2.0/24"}},
		registry.ShareConfig{Name: "open"},
	)

	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/docs/", "").Code)
	assert.NotEqual(t, http.StatusForbidden, do(h, "PROPFIND", "/open/", "", "Depth", "0").Code)
}

func TestRateLimit(t *testing.T) {
	config := testConfig()
	config.MaxRequestsPerSecond = 1
	config.BurstSize = 1
	h := newTestHandler(t, config)

	assert.Equal(t, http.StatusOK, do(h, http.MethodOptions, "/docs/", "").Code)
	rec := do(h, http.MethodOptions, "/docs/", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

// ============================================================================
// Content methods
// ============================================================================

func TestPutGetHead(t *testing.T) {
	h := newTestHandler(t, testConfig())

	rec := do(h, http.MethodPut, "/docs/a.txt", "hello")
	require.Equal(t, http.StatusCreated, rec.Code)
	tag := rec.Header().Get("ETag")
	require.NotEmpty(t, tag)

	rec = do(h, http.MethodPut, "/docs/a.txt", "hello world")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(h, http.MethodGet, "/docs/a.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello world", rec.Body.String())
	assert.Equal(t, "11", rec.Header().Get("Content-Length"))
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	rec = do(h, http.MethodHead, "/docs/a.txt", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(h, http.MethodPost, "/docs/a.txt", "")
	assert.Equal(t, "hello world", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/docs/missing", "").Code)
}

func TestGetCollection(t *testing.T) {
	h := newTestHandler(t, testConfig())
	mkcol(t, h, "/docs/dir")

	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/docs/dir", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodPost, "/docs/dir", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodPut, "/docs/dir", "x").Code)
}

func TestPutMissingParent(t *testing.T) {
	h := newTestHandler(t, testConfig())
	assert.Equal(t, http.StatusConflict, do(h, http.MethodPut, "/docs/no/such/file", "x").Code)
}

func TestReadOnlyShare(t *testing.T) {
	h := newTestHandler(t, testConfig(), registry.ShareConfig{Name: "media", ReadOnly: true})

	assert.Equal(t, http.StatusForbidden, do(h, http.MethodPut, "/media/a.txt", "x").Code)
	assert.Equal(t, http.StatusForbidden, do(h, "MKCOL", "/media/dir", "").Code)
	assert.Equal(t, http.StatusForbidden, do(h, "LOCK", "/media/a.txt", exclusiveLock).Code)

	proppatch := `<D:propertyupdate xmlns:D="DAV:" xmlns:Z="urn:z"><D:set><D:prop><Z:a>1</Z:a></D:prop></D:set></D:propertyupdate>`
	assert.Equal(t, http.StatusForbidden, do(h, "PROPPATCH", "/media/", proppatch).Code)
	assert.Equal(t, http.StatusForbidden, do(h, http.MethodDelete, "/media/a.txt", "").Code)
	assert.Equal(t, http.StatusForbidden, do(h, "COPY", "/media/", "", "Destination", "/media/copy").Code)
	assert.Equal(t, http.StatusForbidden, do(h, "MOVE", "/media/a.txt", "", "Destination", "/media/b.txt").Code)

	// Reads still work.
	assert.Equal(t, http.StatusMultiStatus, do(h, "PROPFIND", "/media/", "", "Depth", "0").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodOptions, "/media/", "").Code)
}

func TestMkcol(t *testing.T) {
	h := newTestHandler(t, testConfig())

	mkcol(t, h, "/docs/dir")
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, "MKCOL", "/docs/dir", "").Code)
	assert.Equal(t, http.StatusConflict, do(h, "MKCOL", "/docs/a/b", "").Code)
	assert.Equal(t, http.StatusUnsupportedMediaType, do(h, "MKCOL", "/docs/other", "<x/>").Code)
}

func TestDelete(t *testing.T) {
	h := newTestHandler(t, testConfig())
	mkcol(t, h, "/docs/dir")
	put(t, h, "/docs/dir/a.txt", "a")

	assert.Equal(t, http.StatusNoContent, do(h, http.MethodDelete, "/docs/dir", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/docs/dir/a.txt", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodDelete, "/docs/dir", "").Code)
}

// ============================================================================
// COPY / MOVE
// ============================================================================

func TestCopyMove(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		source  string
		dest    string
		headers []string
		want    int
	}{
		{"copy creates", "COPY", "/docs/a.txt", "/docs/c.txt", nil, http.StatusCreated},
		{"copy replaces", "COPY", "/docs/a.txt", "/docs/b.txt", nil, http.StatusNoContent},
		{"copy no overwrite", "COPY", "/docs/a.txt", "/docs/b.txt", []string{"Overwrite", "F"}, http.StatusPreconditionFailed},
		{"copy same path", "COPY", "/docs/a.txt", "/docs/a.txt", nil, http.StatusForbidden},
		{"copy missing source", "COPY", "/docs/zzz", "/docs/c.txt", nil, http.StatusNotFound},
		{"copy missing parent", "COPY", "/docs/a.txt", "/docs/no/c.txt", nil, http.StatusConflict},
		{"copy into itself", "COPY", "/docs/dir", "/docs/dir/sub", nil, http.StatusForbidden},
		{"copy other share", "COPY", "/docs/a.txt", "/other/a.txt", nil, http.StatusBadGateway},
		{"copy foreign host", "COPY", "/docs/a.txt", "http://elsewhere.test/docs/c.txt", nil, http.StatusBadGateway},
		{"copy bad overwrite", "COPY", "/docs/a.txt", "/docs/c.txt", []string{"Overwrite", "X"}, http.StatusBadRequest},
		{"copy depth one", "COPY", "/docs/dir", "/docs/dir2", []string{"Depth", "1"}, http.StatusBadRequest},
		{"copy depth zero", "COPY", "/docs/dir", "/docs/dir2", []string{"Depth", "0"}, http.StatusCreated},
		{"move creates", "MOVE", "/docs/a.txt", "/docs/c.txt", nil, http.StatusCreated},
		{"move replaces", "MOVE", "/docs/a.txt", "/docs/b.txt", nil, http.StatusNoContent},
		{"move depth zero", "MOVE", "/docs/dir", "/docs/dir2", []string{"Depth", "0"}, http.StatusBadRequest},
		{"move collection", "MOVE", "/docs/dir", "/docs/dir2", nil, http.StatusCreated},
		{"move no overwrite", "MOVE", "/docs/a.txt", "/docs/b.txt", []string{"Overwrite", "F"}, http.StatusPreconditionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, testConfig(), registry.ShareConfig{Name: "docs"}, registry.ShareConfig{Name: "other"})
			put(t, h, "/docs/a.txt", "alpha")
			put(t, h, "/docs/b.txt", "beta")
			mkcol(t, h, "/docs/dir")
			put(t, h, "/docs/dir/x.txt", "x")

			dest := tt.dest
			if strings.HasPrefix(dest, "/") {
				dest = "http://example.com" + dest
			}
			headers := append([]string{"Destination", dest}, tt.headers...)
			rec := do(h, tt.method, tt.source, "", headers...)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestMoveMovesContent(t *testing.T) {
	h := newTestHandler(t, testConfig())
	put(t, h, "/docs/a.txt", "alpha")

	rec := do(h, "MOVE", "/docs/a.txt", "", "Destination", "/docs/b.txt")
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/docs/a.txt", "").Code)
	assert.Equal(t, "alpha", do(h, http.MethodGet, "/docs/b.txt", "").Body.String())
}

func TestCopyDepthZeroSkipsMembers(t *testing.T) {
	h := newTestHandler(t, testConfig())
	mkcol(t, h, "/docs/dir")
	put(t, h, "/docs/dir/x.txt", "x")

	rec := do(h, "COPY", "/docs/dir", "", "Destination", "/docs/dir2", "Depth", "0")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/docs/dir2/x.txt", "").Code)

	rec = do(h, "COPY", "/docs/dir", "", "Destination", "/docs/dir3")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "x", do(h, http.MethodGet, "/docs/dir3/x.txt", "").Body.String())
}

func TestMoveReleasesLocks(t *testing.T) {
	h := newTestHandler(t, testConfig())
	put(t, h, "/docs/a.txt", "alpha")
	token := lockResource(t, h, "/docs/a.txt")

	// The second group holds for the unlocked destination.
	rec := do(h, "MOVE", "/docs/a.txt", "", "Destination", "/docs/b.txt", "If", "(<"+token+">) (Not <DAV:no-lock>)")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	_, found := h.locks.Lookup(token)
	assert.False(t, found)
}

// ============================================================================
// LOCK / UNLOCK and the If gate
// ============================================================================

func TestLockUnmappedCreatesFile(t *testing.T) {
	h := newTestHandler(t, testConfig())

	rec := do(h, "LOCK", "/docs/new.txt", exclusiveLock, "Timeout", "Second-600")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, "<D:lockdiscovery>")
	assert.Contains(t, body, "<D:exclusive/>")
	assert.Contains(t, body, "<D:timeout>Second-600</D:timeout>")
	assert.Contains(t, body, "mailto:alice@example.com")

	get := do(h, http.MethodGet, "/docs/new.txt", "")
	assert.Equal(t, http.StatusOK, get.Code)
	assert.Empty(t, get.Body.String())
}

func TestLockGate(t *testing.T) {
	h := newTestHandler(t, testConfig())
	put(t, h, "/docs/a.txt", "alpha")
	token := lockResource(t, h, "/docs/a.txt")

	rec := do(h, http.MethodPut, "/docs/a.txt", "beta")
	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Contains(t, rec.Body.String(), token)

	rec = do(h, http.MethodPut, "/docs/a.txt", "beta", "If", "(<opaquelocktoken:wrong>)")
	assert.Equal(t, http.StatusLocked, rec.Code)

	rec = do(h, http.MethodPut, "/docs/a.txt", "beta", "If", `(<opaquelocktoken:wrong> ["nope"])`)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = do(h, http.MethodPut, "/docs/a.txt", "beta", "If", "(<"+token+">)")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(h, http.MethodDelete, "/docs/a.txt", "")
	assert.Equal(t, http.StatusLocked, rec.Code)

	rec = do(h, "UNLOCK", "/docs/a.txt", "", "Lock-Token", "<"+token+">")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, http.StatusNoContent, do(h, http.MethodDelete, "/docs/a.txt", "").Code)
}

func TestLockConflict(t *testing.T) {
	h := newTestHandler(t, testConfig())
	put(t, h, "/docs/a.txt", "alpha")
	lockResource(t, h, "/docs/a.txt")

	rec := do(h, "LOCK", "/docs/a.txt", sharedLock)
	assert.Equal(t, http.StatusLocked, rec.Code)
}

func TestLockDoesNotCoverMembers(t *testing.T) {
	h := newTestHandler(t, testConfig())
	mkcol(t, h, "/docs/dir")
	lockResource(t, h, "/docs/dir")

	assert.Equal(t, http.StatusCreated, do(h, http.MethodPut, "/docs/dir/a.txt", "x").Code)
	assert.Equal(t, http.StatusLocked, do(h, http.MethodDelete, "/docs/dir", "").Code)
}

func TestSharedLocks(t *testing.T) {
	h := newTestHandler(t, testConfig())
	put(t, h, "/docs/a.txt", "alpha")

	first := do(h, "LOCK", "/docs/a.txt", sharedLock)
	require.Equal(t, http.StatusOK, first.Code)
	second := do(h, "LOCK", "/docs/a.txt", sharedLock)
	require.Equal(t, http.StatusOK, second.Code)
	assert.NotEqual(t, first.Header().Get("Lock-Token"), second.Header().Get("Lock-Token"))

	rec := do(h, "PROPFIND", "/docs/a.txt", `<D:propfind xmlns:D="DAV:"><D:prop><D:lockdiscovery/></D:prop></D:propfind>`, "Depth", "0")
	assert.Equal(t, 2, strings.Count(rec.Body.String(), "<D:activelock>"))
}

func TestLockRefresh(t *testing.T) {
	h := newTestHandler(t, testConfig())
	put(t, h, "/docs/a.txt", "alpha")
	token := lockResource(t, h, "/docs/a.txt", "Timeout", "Second-60")

	rec := do(h, "LOCK", "/docs/a.txt", "", "If", "(<"+token+">)", "Timeout", "Second-3600")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Second-3600")

	rec = do(h, "LOCK", "/docs/a.txt", "", "If", "(<opaquelocktoken:unknown>)")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = do(h, "LOCK", "/docs/a.txt", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLockTimeoutCapped(t *testing.T) {
	config := testConfig()
	config.MaxLockTimeout = 2 * time.Hour
	h := newTestHandler(t, config)

	rec := do(h, "LOCK", "/docs/a.txt", exclusiveLock, "Timeout", "Infinite")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "Second-7200")
}

func TestLockBadRequests(t *testing.T) {
	h := newTestHandler(t, testConfig())

	assert.Equal(t, http.StatusBadRequest, do(h, "LOCK", "/docs/a.txt", "<not-xml").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, "LOCK", "/docs/a.txt", `<D:propfind xmlns:D="DAV:"/>`).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, "LOCK", "/docs/a.txt", exclusiveLock, "Depth", "1").Code)
}

func TestUnlockErrors(t *testing.T) {
	h := newTestHandler(t, testConfig())
	put(t, h, "/docs/a.txt", "alpha")
	put(t, h, "/docs/b.txt", "beta")
	token := lockResource(t, h, "/docs/a.txt")

	assert.Equal(t, http.StatusBadRequest, do(h, "UNLOCK", "/docs/a.txt", "").Code)
	assert.Equal(t, http.StatusConflict, do(h, "UNLOCK", "/docs/a.txt", "", "Lock-Token", "<opaquelocktoken:nope>").Code)
	assert.Equal(t, http.StatusConflict, do(h, "UNLOCK", "/docs/b.txt", "", "Lock-Token", "<"+token+">").Code)
}

func TestIfHeaderETag(t *testing.T) {
	h := newTestHandler(t, testConfig())
	rec := do(h, http.MethodPut, "/docs/a.txt", "alpha")
	tag := rec.Header().Get("ETag")

	rec = do(h, http.MethodPut, "/docs/a.txt", "beta", "If", `(["wrong"])`)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = do(h, http.MethodPut, "/docs/a.txt", "beta", "If", "(["+tag+"])")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(h, http.MethodPut, "/docs/a.txt", "gamma", "If", "(<unterminated")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

// ============================================================================
// Properties
// ============================================================================

func TestPropfindDepth(t *testing.T) {
	h := newTestHandler(t, testConfig())
	mkcol(t, h, "/docs/dir")
	put(t, h, "/docs/dir/a.txt", "alpha")
	put(t, h, "/docs/top.txt", "top")

	rec := do(h, "PROPFIND", "/docs/", "", "Depth", "0")
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "<D:response>"))
	assert.Contains(t, rec.Body.String(), "<D:href>/docs/</D:href>")

	rec = do(h, "PROPFIND", "/docs/", "", "Depth", "1")
	assert.Equal(t, 3, strings.Count(rec.Body.String(), "<D:response>"))
	assert.Contains(t, rec.Body.String(), "<D:href>/docs/dir/</D:href>")
	assert.NotContains(t, rec.Body.String(), "/docs/dir/a.txt")

	rec = do(h, "PROPFIND", "/docs/", "")
	assert.Equal(t, 4, strings.Count(rec.Body.String(), "<D:response>"))
	assert.Contains(t, rec.Body.String(), "<D:href>/docs/dir/a.txt</D:href>")

	assert.Equal(t, http.StatusBadRequest, do(h, "PROPFIND", "/docs/", "", "Depth", "2").Code)
	assert.Equal(t, http.StatusNotFound, do(h, "PROPFIND", "/docs/missing", "").Code)
}

func TestPropfindBodies(t *testing.T) {
	h := newTestHandler(t, testConfig())
	put(t, h, "/docs/a.txt", "alpha")

	rec := do(h, "PROPFIND", "/docs/a.txt", `<D:propfind xmlns:D="DAV:"><D:prop><D:getcontentlength/><D:nosuch/></D:prop></D:propfind>`, "Depth", "0")
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<D:getcontentlength>5</D:getcontentlength>")
	assert.Contains(t, body, "<D:nosuch/>")
	assert.Contains(t, body, "HTTP/1.1 404 Not Found")

	rec = do(h, "PROPFIND", "/docs/a.txt", `<D:propfind xmlns:D="DAV:"><D:propname/></D:propfind>`, "Depth", "0")
	assert.Contains(t, rec.Body.String(), "<D:getcontentlength/>")
	assert.NotContains(t, rec.Body.String(), "404")

	rec = do(h, "PROPFIND", "/docs/a.txt", `<D:propfind xmlns:D="DAV:"><D:allprop/></D:propfind>`, "Depth", "0")
	assert.Contains(t, rec.Body.String(), "<D:getetag>")
	assert.Contains(t, rec.Body.String(), "<D:resourcetype/>")

	assert.Equal(t, http.StatusBadRequest, do(h, "PROPFIND", "/docs/a.txt", "<broken").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, "PROPFIND", "/docs/a.txt", `<D:lockinfo xmlns:D="DAV:"/>`).Code)
}

func TestProppatchRoundTrip(t *testing.T) {
	h := newTestHandler(t, testConfig())
	put(t, h, "/docs/a.txt", "alpha")

	patch := `<D:propertyupdate xmlns:D="DAV:" xmlns:Z="http://example.com/ns">
  <D:set><D:prop><Z:author>Alice</Z:author><D:getetag>"x"</D:getetag></D:prop></D:set>
  <D:remove><D:prop><Z:missing/></D:prop></D:remove>
</D:propertyupdate>`
	rec := do(h, "PROPPATCH", "/docs/a.txt", patch)
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, "HTTP/1.1 200 OK")
	assert.Contains(t, body, "HTTP/1.1 403 Forbidden")

	rec = do(h, "PROPFIND", "/docs/a.txt", `<D:propfind xmlns:D="DAV:" xmlns:Z="http://example.com/ns"><D:prop><Z:author/></D:prop></D:propfind>`, "Depth", "0")
	assert.Contains(t, rec.Body.String(), ">Alice</ns0:author>")

	remove := `<D:propertyupdate xmlns:D="DAV:" xmlns:Z="http://example.com/ns"><D:remove><D:prop><Z:author/></D:prop></D:remove></D:propertyupdate>`
	require.Equal(t, http.StatusMultiStatus, do(h, "PROPPATCH", "/docs/a.txt", remove).Code)

	rec = do(h, "PROPFIND", "/docs/a.txt", `<D:propfind xmlns:D="DAV:" xmlns:Z="http://example.com/ns"><D:prop><Z:author/></D:prop></D:propfind>`, "Depth", "0")
	assert.Contains(t, rec.Body.String(), "HTTP/1.1 404 Not Found")
}

func TestProppatchErrors(t *testing.T) {
	h := newTestHandler(t, testConfig())
	put(t, h, "/docs/a.txt", "alpha")

	assert.Equal(t, http.StatusNotFound, do(h, "PROPPATCH", "/docs/missing", `<D:propertyupdate xmlns:D="DAV:"/>`).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, "PROPPATCH", "/docs/a.txt", "<oops").Code)

	lockResource(t, h, "/docs/a.txt")
	assert.Equal(t, http.StatusLocked, do(h, "PROPPATCH", "/docs/a.txt", `<D:propertyupdate xmlns:D="DAV:"/>`).Code)
}
