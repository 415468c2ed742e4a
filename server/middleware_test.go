package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pediadose/pediadose-api/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRealIPMiddleware(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.RemoteAddr
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	RealIPMiddleware(inner).ServeHTTP(httptest.NewRecorder(), req)

	if seen != "203.0.113.7" {
		t.Errorf("expected the first forwarded IP, got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	RealIPMiddleware(inner).ServeHTTP(httptest.NewRecorder(), req)

	if seen != "192.0.2.1:1234" {
		t.Errorf("expected the original remote addr without a header, got %q", seen)
	}
}

func TestRequestSizeMiddlewareBodyLimit(t *testing.T) {
	cfg := &config.Config{MaxRequestBody: 64, MaxHeaderSize: 4096}
	handler := RequestSizeMiddleware(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 128)))
	req.Header.Set("Content-Length", "128")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for an oversized body, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for a small body, got %d", w.Code)
	}
}

func TestRequestSizeMiddlewareHeaderLimit(t *testing.T) {
	cfg := &config.Config{MaxRequestBody: 4096, MaxHeaderSize: 32}
	handler := RequestSizeMiddleware(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Big", strings.Repeat("v", 128))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusRequestHeaderFieldsTooLarge {
		t.Errorf("expected 431 for oversized headers, got %d", w.Code)
	}
}

func TestGetTokenCost(t *testing.T) {
	tests := []struct {
		path string
		cost int64
	}{
		{"/health", 5},
		{"/metrics", 0},
		{"/v1/dose/evaluate", 20},
		{"/v1/dose/events", 10},
		{"/somewhere/else", 20},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := getTokenCost(req); got != tt.cost {
			t.Errorf("cost for %s: expected %d, got %d", tt.path, tt.cost, got)
		}
	}
}

func TestRateLimitHandlerExhaustion(t *testing.T) {
	handler := RateLimitHandler(okHandler())

	// Each request costs 20 tokens against a 1000 token bucket, so the 51st
	// request from the same IP must be rejected.
	var lastCode int
	for i := 0; i < 51; i++ {
		req := httptest.NewRequest(http.MethodGet, "/somewhere/else", nil)
		req.RemoteAddr = "198.51.100.23:4567"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		lastCode = w.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Errorf("expected 429 after exhausting the bucket, got %d", lastCode)
	}

	// A different client keeps its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/somewhere/else", nil)
	req.RemoteAddr = "198.51.100.99:4567"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected a fresh client to pass, got %d", w.Code)
	}
}
