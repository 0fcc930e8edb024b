package server

import (
	"context"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/modfetch/modfetch/internal/httpcache"
)

func newTestMirror(t *testing.T) (*fiber.App, *httpcache.Cache, *url.URL) {
	t.Helper()
	cache := httpcache.New(t.TempDir())
	upstream, err := url.Parse("https://deno.land")
	if err != nil {
		t.Fatalf("parse upstream: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := NewMirror(MirrorOptions{
		Logger:   logger,
		Cache:    cache,
		Upstream: upstream,
	})
	if err != nil {
		t.Fatalf("NewMirror failed: %v", err)
	}
	return app, cache, upstream
}

func mustPut(t *testing.T, cache *httpcache.Cache, raw string, headers httpcache.Headers, body []byte) {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	if err := cache.Set(context.Background(), u, headers, body); err != nil {
		t.Fatalf("cache set %q: %v", raw, err)
	}
}

func TestMirrorRequiresOptions(t *testing.T) {
	if _, err := NewMirror(MirrorOptions{}); err == nil {
		t.Fatalf("expected error for missing options")
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if _, err := NewMirror(MirrorOptions{Logger: logger}); err == nil {
		t.Fatalf("expected error for missing cache")
	}
}

func TestMirrorServesCachedContent(t *testing.T) {
	app, cache, _ := newTestMirror(t)
	mustPut(t, cache, "https://deno.land/std/http/mod.ts",
		httpcache.Headers{"content-type": "application/typescript"},
		[]byte("export {};"))

	req := httptest.NewRequest("GET", "http://mirror.local/std/http/mod.ts", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/typescript" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if resp.Header.Get("X-Modfetch-Cache-Hit") != "true" {
		t.Fatalf("expected cache hit header")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "export {};" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestMirrorReturns404ForMiss(t *testing.T) {
	app, _, _ := newTestMirror(t)

	req := httptest.NewRequest("GET", "http://mirror.local/not/cached.ts", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "not_cached") {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestMirrorReplaysRedirectRecords(t *testing.T) {
	app, cache, _ := newTestMirror(t)
	mustPut(t, cache, "https://deno.land/std",
		httpcache.Headers{"location": "/std/mod.ts"}, nil)

	req := httptest.NewRequest("GET", "http://mirror.local/std", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/std/mod.ts" {
		t.Fatalf("unexpected location %q", loc)
	}
}

func TestMirrorDistinguishesQueryStrings(t *testing.T) {
	app, cache, _ := newTestMirror(t)
	mustPut(t, cache, "https://deno.land/mod.ts?v=1",
		httpcache.Headers{"content-type": "application/typescript"},
		[]byte("// v1"))

	req := httptest.NewRequest("GET", "http://mirror.local/mod.ts?v=1", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for cached query variant, got %d", resp.StatusCode)
	}

	req2 := httptest.NewRequest("GET", "http://mirror.local/mod.ts?v=2", nil)
	resp2, err := app.Test(req2)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp2.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown query variant, got %d", resp2.StatusCode)
	}
}

func TestListenAddr(t *testing.T) {
	if got := ListenAddr(8045); got != ":8045" {
		t.Fatalf("unexpected listen addr %q", got)
	}
}
