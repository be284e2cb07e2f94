package server

import (
	"bytes"
	"container/list"
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func reqFromIP(ip, path string) *http.Request {
	r := httptest.NewRequest("GET", path, nil)
	r.RemoteAddr = ip + ":12345"
	return r
}

func limited(t *testing.T, rps float64, burst, maxClients int, exempt ...string) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mw, _ := RateLimit(ctx, RateLimitOptions{RPS: rps, Burst: burst, MaxClients: maxClients, Exempt: exempt})
	return mw(okHandler())
}

func statusFrom(h http.Handler, ip string) int {
	return statusAt(h, ip, "/api/deck")
}

func statusAt(h http.Handler, ip, path string) int {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, reqFromIP(ip, path))
	return w.Code
}

func TestRateLimitPerClient(t *testing.T) {
	h := limited(t, 0.001, 2, 10)

	for i := 0; i < 2; i++ {
		if got := statusFrom(h, "1.1.1.1"); got != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, got)
		}
	}
	if got := statusFrom(h, "1.1.1.1"); got != http.StatusTooManyRequests {
		t.Errorf("over burst: expected 429, got %d", got)
	}
	if got := statusFrom(h, "2.2.2.2"); got != http.StatusOK {
		t.Errorf("other client: expected 200, got %d", got)
	}
}

func TestRateLimitEvictsLeastRecent(t *testing.T) {
	h := limited(t, 0.001, 1, 2)

	if got := statusFrom(h, "10.0.0.1"); got != http.StatusOK {
		t.Fatalf("first: expected 200, got %d", got)
	}
	if got := statusFrom(h, "10.0.0.1"); got != http.StatusTooManyRequests {
		t.Fatalf("burst spent: expected 429, got %d", got)
	}

	// Two newer clients push 10.0.0.1 out; it comes back with a full bucket.
	statusFrom(h, "10.0.0.2")
	statusFrom(h, "10.0.0.3")
	if got := statusFrom(h, "10.0.0.1"); got != http.StatusOK {
		t.Errorf("evicted client: expected 200, got %d", got)
	}
}

func TestRateLimitExemptPaths(t *testing.T) {
	h := limited(t, 0.001, 1, 10, "/api/zoom", "/api/present-scale")

	if got := statusFrom(h, "1.1.1.1"); got != http.StatusOK {
		t.Fatalf("first: expected 200, got %d", got)
	}
	for i := 0; i < 20; i++ {
		for _, path := range []string{"/api/zoom", "/api/present-scale"} {
			if got := statusAt(h, "1.1.1.1", path); got != http.StatusOK {
				t.Fatalf("%s request %d: expected 200, got %d", path, i, got)
			}
		}
	}
	if got := statusFrom(h, "1.1.1.1"); got != http.StatusTooManyRequests {
		t.Errorf("limited path: expected 429, got %d", got)
	}
}

func TestRateLimitSweepsIdleClients(t *testing.T) {
	l := &rateLimiter{
		opts:    RateLimitOptions{RPS: 1, Burst: 1, MaxClients: 10},
		clients: make(map[string]*list.Element),
		lru:     list.New(),
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.allow("10.0.0.1", start)
	l.allow("10.0.0.2", start.Add(8*time.Minute))
	l.allow("10.0.0.3", start.Add(12*time.Minute))

	l.sweep(start.Add(20 * time.Minute))
	if got := l.tracked(); got != 1 {
		t.Fatalf("tracked after sweep = %d, want 1", got)
	}
	if _, ok := l.clients["10.0.0.3"]; !ok {
		t.Error("recent client was dropped")
	}
}

func TestRateLimitConcurrentClients(t *testing.T) {
	h := limited(t, 1000, 1000, 50)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ip := fmt.Sprintf("10.1.%d.%d", id/256, id%256)
			for j := 0; j < 10; j++ {
				if got := statusFrom(h, ip); got != http.StatusOK {
					t.Errorf("IP %s: expected 200, got %d", ip, got)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestRateLimitCleanupStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, done := RateLimit(ctx, RateLimitOptions{RPS: 1, Burst: 1, MaxClients: 1})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup goroutine did not exit")
	}
}

func TestClientAddrTrustsOnlyLocalProxies(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "127.0.0.1:5000"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientAddr(r); got != "203.0.113.9" {
		t.Errorf("behind local proxy: got %q", got)
	}

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "203.0.113.10")
	if got := clientAddr(r); got != "203.0.113.10" {
		t.Errorf("X-Real-IP behind local proxy: got %q", got)
	}

	r.RemoteAddr = "198.51.100.7:5000"
	if got := clientAddr(r); got != "198.51.100.7" {
		t.Errorf("public peer: got %q, forwarded header must be ignored", got)
	}
}

func TestSecurityHeadersAllowSameOriginFrames(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeadersMiddleware()(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if got := w.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	csp := w.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "frame-ancestors 'self'") {
		t.Errorf("CSP missing frame-ancestors 'self': %s", csp)
	}
}

func TestRequestLogMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	defer log.SetFlags(log.Flags())
	log.SetFlags(0)

	h := RequestLogMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("hi"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/undo", nil))

	if got := buf.String(); !strings.HasPrefix(got, "[HTTP] POST /api/undo 418 2B ") {
		t.Errorf("log line = %q", got)
	}
}
