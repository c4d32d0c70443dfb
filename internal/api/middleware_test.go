package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func noContent(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }

func TestRequestIDMiddleware(t *testing.T) {
	var seen any
	h := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context().Value(requestIDKey)
	}))

	t.Run("generates", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		id := rr.Header().Get("X-Request-ID")
		if id == "" || seen != id {
			t.Fatalf("header %q, context %v", id, seen)
		}
	})

	t.Run("keeps caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Request-ID", "trace-1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if got := rr.Header().Get("X-Request-ID"); got != "trace-1" {
			t.Fatalf("X-Request-ID = %q", got)
		}
	})
}

func TestCORSMiddleware(t *testing.T) {
	h := corsMiddleware(http.HandlerFunc(noContent))

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
		req.Header.Set("Origin", "http://localhost:6274")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rr.Code)
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:6274" {
			t.Errorf("allow-origin = %q", got)
		}
	})

	t.Run("no origin no headers", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/mcp", nil))
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("allow-origin = %q", got)
		}
	})
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	securityHeaders(noContent)(rr, httptest.NewRequest(http.MethodGet, "/authorize", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing CSP")
	}
}
