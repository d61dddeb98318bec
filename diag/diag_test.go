package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"televoodoo/metrics"
)

type fakeStatus struct {
	status SessionStatus
}

func (f fakeStatus) SessionStatus() SessionStatus { return f.status }

func TestHealthReportsConnectedState(t *testing.T) {
	m := metrics.New()
	srv := New(m, fakeStatus{status: SessionStatus{Connected: true, Transport: "tcp"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Connected || resp.Status != "ok" {
		t.Fatalf("unexpected health response: %+v", resp)
	}
}

func TestSessionEndpointReflectsStatus(t *testing.T) {
	m := metrics.New()
	now := time.Now()
	srv := New(m, fakeStatus{status: SessionStatus{Connected: true, Transport: "ble", Name: "voodoo42", LastSeen: now}})

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	var resp SessionStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Transport != "ble" || resp.Name != "voodoo42" {
		t.Fatalf("unexpected session response: %+v", resp)
	}
}

func TestMetricsEndpointExposesRegisteredMetrics(t *testing.T) {
	m := metrics.New()
	m.SessionsTotal.Inc()
	srv := New(m, fakeStatus{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "televoodoo_sessions_total 1") {
		t.Fatalf("expected televoodoo_sessions_total in output, got: %s", rec.Body.String())
	}
}
