package rpcserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	gstore "github.com/kikokikok/aeterna-sub000/internal/store"
	"github.com/kikokikok/aeterna-sub000/pkg/approval"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := gstore.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate("../../migrations"); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	approvals := approval.NewService(db, nil, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	return NewServer(Config{}, logger, db, nil, reg, Engines{Approvals: approvals})
}

func TestHealthzReturnsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestReadyzOKWithoutRedisConfigured(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	// No redis client was wired, so readyz only checks the store and
	// should still report ok.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
}

func TestCreateApprovalRequiresTenantHeader(t *testing.T) {
	s := newTestServer(t)
	body := `{"kind":"knowledge","target":"node-1","title":"add fact","risk":"low","requestor":"user-1","mode":"single","timeout_hours":24}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", rec.Code, rec.Body.String())
	}
}

func TestCreateAndGetApprovalRoundTrip(t *testing.T) {
	s := newTestServer(t)
	body := `{"kind":"knowledge","target":"node-1","title":"add fact","risk":"low","requestor":"user-1","mode":"single","timeout_hours":24}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/", bytes.NewBufferString(body))
	req.Header.Set("X-Tenant-Id", "acme")
	req.Header.Set("X-Principal-Id", "user-1")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}

	var created approval.Request
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected created request to have an id")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/approvals/"+created.ID, nil)
	getReq.Header.Set("X-Tenant-Id", "acme")
	getRec := httptest.NewRecorder()
	s.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200, body=%s", getRec.Code, getRec.Body.String())
	}
}

func TestGraphRoutesUnavailableWhenEngineNotConfigured(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/graph/stats", nil)
	req.Header.Set("X-Tenant-Id", "acme")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503, body=%s", rec.Code, rec.Body.String())
	}
}
