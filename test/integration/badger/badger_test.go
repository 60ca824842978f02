//go:build integration

package badger_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/dittodav/pkg/adapter/webdav"
	"github.com/marmos91/dittodav/pkg/config"
	"github.com/marmos91/dittodav/pkg/registry"
)

const lockBody = `<?xml version="1.0" encoding="utf-8"?>
<D:lockinfo xmlns:D="DAV:">
  <D:lockscope><D:exclusive/></D:lockscope>
  <D:locktype><D:write/></D:locktype>
  <D:owner>integration</D:owner>
</D:lockinfo>`

const proppatchBody = `<?xml version="1.0" encoding="utf-8"?>
<D:propertyupdate xmlns:D="DAV:" xmlns:Z="urn:example">
  <D:set><D:prop><Z:color>blue</Z:color></D:prop></D:set>
</D:propertyupdate>`

// badgerConfig keeps resources and locks in one on-disk Badger database and
// file content on the local filesystem.
func badgerConfig(dir string) *config.Config {
	cfg := &config.Config{
		Locks: config.LocksConfig{Store: "badger", MetadataStore: "meta"},
		Metadata: config.MetadataConfig{Stores: map[string]config.MetadataStoreConfig{
			"meta": {Type: "badger", Badger: map[string]any{"db_path": filepath.Join(dir, "metadata.db")}},
		}},
		Content: config.ContentConfig{Stores: map[string]config.ContentStoreConfig{
			"files": {Type: "filesystem", Filesystem: map[string]any{"path": filepath.Join(dir, "content")}},
		}},
		Shares: []config.ShareConfig{{Name: "docs", MetadataStore: "meta", ContentStore: "files"}},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func start(t *testing.T, cfg *config.Config) (*registry.Registry, http.Handler) {
	t.Helper()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Invalid config: %v", err)
	}
	reg, err := config.InitializeRegistry(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("InitializeRegistry failed: %v", err)
	}
	return reg, webdav.NewHandler(reg, cfg.Adapters.WebDAV, nil, nil)
}

func do(h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestBadgerStack_Integration runs the WebDAV handler over a Badger-backed
// registry and checks that resources, dead properties and locks survive a
// restart.
//
// Run with: go test -tags=integration ./test/integration/badger/...
func TestBadgerStack_Integration(t *testing.T) {
	cfg := badgerConfig(t.TempDir())

	// ========================================================================
	// First run: create content, set a property, take a lock
	// ========================================================================

	reg, h := start(t, cfg)

	if rec := do(h, "MKCOL", "/docs/reports", ""); rec.Code != http.StatusCreated {
		t.Fatalf("MKCOL: expected 201, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPut, "/docs/reports/q1.txt", "first quarter"); rec.Code != http.StatusCreated {
		t.Fatalf("PUT: expected 201, got %d", rec.Code)
	}
	if rec := do(h, "PROPPATCH", "/docs/reports/q1.txt", proppatchBody); rec.Code != http.StatusMultiStatus {
		t.Fatalf("PROPPATCH: expected 207, got %d", rec.Code)
	}

	rec := do(h, "LOCK", "/docs/reports/q1.txt", lockBody, "Timeout", "Second-3600")
	if rec.Code != http.StatusOK {
		t.Fatalf("LOCK: expected 200, got %d", rec.Code)
	}
	token := strings.Trim(rec.Header().Get("Lock-Token"), "<>")
	if token == "" {
		t.Fatal("LOCK: missing Lock-Token header")
	}

	if err := reg.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// ========================================================================
	// Second run: everything is restored from disk
	// ========================================================================

	reg, h = start(t, cfg)
	defer func() { _ = reg.Close() }()

	if reg.Locks().Count() != 1 {
		t.Fatalf("Expected 1 restored lock, got %d", reg.Locks().Count())
	}

	rec = do(h, http.MethodGet, "/docs/reports/q1.txt", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET: expected 200, got %d", rec.Code)
	}
	if body, _ := io.ReadAll(rec.Body); string(body) != "first quarter" {
		t.Errorf("GET: unexpected body %q", body)
	}

	rec = do(h, "PROPFIND", "/docs/reports/q1.txt", "", "Depth", "0")
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("PROPFIND: expected 207, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), ">blue<") {
		t.Errorf("PROPFIND: dead property not restored:\n%s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), token) {
		t.Errorf("PROPFIND: lockdiscovery does not report the restored lock:\n%s", rec.Body.String())
	}

	// The restored lock still guards the resource
	if rec := do(h, http.MethodPut, "/docs/reports/q1.txt", "overwritten"); rec.Code != http.StatusLocked {
		t.Fatalf("PUT without token: expected 423, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPut, "/docs/reports/q1.txt", "second quarter", "If", "(<"+token+">)"); rec.Code != http.StatusNoContent {
		t.Fatalf("PUT with token: expected 204, got %d", rec.Code)
	}

	if rec := do(h, "UNLOCK", "/docs/reports/q1.txt", "", "Lock-Token", "<"+token+">"); rec.Code != http.StatusNoContent {
		t.Fatalf("UNLOCK: expected 204, got %d", rec.Code)
	}
	if rec := do(h, http.MethodDelete, "/docs/reports", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE: expected 204, got %d", rec.Code)
	}
}
