package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestMockServiceContention(t *testing.T) {
	h := newMux(contention{rateLimitEvery: 2, unprocessableEvery: 3})

	if rec := post(t, h, "/evidence/tdx-quote", `{}`); rec.Code != http.StatusOK {
		t.Fatalf("request 1 status = %d, want 200", rec.Code)
	}
	if rec := post(t, h, "/evidence/tdx-quote", `{}`); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("request 2 status = %d, want 429", rec.Code)
	}
	rec := post(t, h, "/verify/workloads", `{}`)
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "manifest") {
		t.Fatalf("request 3 = %d %s, want 422 manifest", rec.Code, rec.Body.String())
	}
}

func TestMockServiceRejectsBadInput(t *testing.T) {
	h := newMux(contention{})
	if rec := post(t, h, "/verify/tdx-quote", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if rec := post(t, h, "/unknown", `{}`); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verify/tdx-quote", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}
