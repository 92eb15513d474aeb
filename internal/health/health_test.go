package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestHealthzAlwaysOK(t *testing.T) {
	h := NewHandler()
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("status = %q, want ok", resp.Status)
	}
}

func TestReadyzAllChecksPass(t *testing.T) {
	h := NewHandler()
	h.AddCheck("stt", func(context.Context) error { return nil })
	h.AddCheck("mailbox", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, want 200", rec.Code)
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if len(resp.Checks) != 2 {
		t.Fatalf("got %d checks, want 2", len(resp.Checks))
	}
	for name, cr := range resp.Checks {
		if cr.Status != "ok" {
			t.Fatalf("check %q = %+v, want ok", name, cr)
		}
	}
}

func TestReadyzFailingCheck(t *testing.T) {
	h := NewHandler()
	h.AddCheck("stt", func(context.Context) error { return nil })
	h.AddCheck("database", func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", rec.Code)
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if resp.Status != "fail" {
		t.Fatalf("status = %q, want fail", resp.Status)
	}
	if resp.Checks["database"].Error != "connection refused" {
		t.Fatalf("database check = %+v, want the error surfaced", resp.Checks["database"])
	}
	if resp.Checks["stt"].Status != "ok" {
		t.Fatalf("stt check = %+v, want ok despite the other failure", resp.Checks["stt"])
	}
}

func TestFileWritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inbox.jsonl")
	if err := FileWritable(path)(context.Background()); err != nil {
		t.Fatalf("FileWritable() error for creatable path: %v", err)
	}

	bad := filepath.Join(t.TempDir(), "missing", "inbox.jsonl")
	if err := FileWritable(bad)(context.Background()); err == nil {
		t.Fatal("FileWritable() = nil for path in missing directory, want error")
	}
}

func TestHTTPReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound) // still reachable
	}))
	defer srv.Close()

	if err := HTTPReachable(srv.Client(), srv.URL)(context.Background()); err != nil {
		t.Fatalf("HTTPReachable() error for live server: %v", err)
	}

	srv.Close()
	if err := HTTPReachable(srv.Client(), srv.URL)(context.Background()); err == nil {
		t.Fatal("HTTPReachable() = nil for closed server, want error")
	}
}
