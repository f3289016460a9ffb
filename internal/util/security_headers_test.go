package util

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveWithSecurityHeaders(t *testing.T, req *http.Request, next http.HandlerFunc) http.Header {
	t.Helper()
	rec := httptest.NewRecorder()
	WithSecurityHeaders(next).ServeHTTP(rec, req)
	return rec.Header()
}

func TestSecurityHeadersOnAPIResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	got := serveWithSecurityHeaders(t, req, func(w http.ResponseWriter, _ *http.Request) {
		writeTestJSON(w)
	})
	for name, want := range apiSecurityHeaders {
		if got.Get(name) != want {
			t.Fatalf("%s = %q, want %q", name, got.Get(name), want)
		}
	}
	if hsts := got.Get("Strict-Transport-Security"); hsts != "" {
		t.Fatalf("plain http request got HSTS %q", hsts)
	}
}

func TestSecurityHeadersLetStreamsOverrideCaching(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/ingestions/stream", nil)
	got := serveWithSecurityHeaders(t, req, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	})
	if got.Get("Cache-Control") != "no-cache" {
		t.Fatalf("stream Cache-Control = %q, want no-cache", got.Get("Cache-Control"))
	}
	if got.Get("X-Frame-Options") != "DENY" {
		t.Fatalf("stream lost X-Frame-Options")
	}
}

func TestSecurityHeadersHSTSOverHTTPS(t *testing.T) {
	direct := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	direct.TLS = &tls.ConnectionState{}
	proxied := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	proxied.Header.Set("X-Forwarded-Proto", " HTTPS ")

	for name, req := range map[string]*http.Request{"direct tls": direct, "forwarded": proxied} {
		got := serveWithSecurityHeaders(t, req, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		if got.Get("Strict-Transport-Security") != "max-age=31536000; includeSubDomains" {
			t.Fatalf("%s: HSTS = %q", name, got.Get("Strict-Transport-Security"))
		}
	}
}

func writeTestJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"items":[],"count":0}`))
}
