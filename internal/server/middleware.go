package server

import (
	"container/list"
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// SecurityHeadersMiddleware adds security headers to all responses.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			// Slides are arbitrary author markup rendered in srcdoc frames, so
			// inline script and style must run. Only this origin may frame us.
			w.Header().Set("Content-Security-Policy",
				"default-src 'self'; "+
					"script-src 'self' 'unsafe-inline' https:; "+
					"style-src 'self' 'unsafe-inline' https:; "+
					"img-src 'self' data: https:; "+
					"font-src 'self' data: https:; "+
					"connect-src 'self'; "+
					"frame-src 'self' about: data:; "+
					"frame-ancestors 'self'")

			next.ServeHTTP(w, r)
		})
	}
}

const (
	// evictionLogInterval is the minimum time between eviction log lines.
	evictionLogInterval = 30 * time.Second
	// clientIdle is how long a silent client keeps its bucket.
	clientIdle    = 10 * time.Minute
	sweepInterval = 5 * time.Minute
)

// RateLimitOptions configures RateLimit.
type RateLimitOptions struct {
	RPS   float64
	Burst int
	// MaxClients bounds the tracked clients; the least recently seen one is
	// forgotten first. Defaults to 10000.
	MaxClients int
	// Exempt lists request paths that are never limited.
	Exempt []string
}

// clientBucket is one client's token bucket and its place in the LRU list.
type clientBucket struct {
	addr     string
	bucket   *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client address. The list is
// ordered by lastSeen, most recent first.
type rateLimiter struct {
	opts   RateLimitOptions
	exempt map[string]bool

	mu      sync.Mutex
	clients map[string]*list.Element
	lru     *list.List
	evicted int
	lastLog time.Time
}

// RateLimit returns middleware that answers 429 once a client spends its
// burst. Its sweeper runs until ctx is cancelled; the returned channel is
// closed when it has stopped.
func RateLimit(ctx context.Context, opts RateLimitOptions) (func(http.Handler) http.Handler, <-chan struct{}) {
	if opts.MaxClients <= 0 {
		opts.MaxClients = 10000
	}
	l := &rateLimiter{
		opts:    opts,
		exempt:  make(map[string]bool, len(opts.Exempt)),
		clients: make(map[string]*list.Element),
		lru:     list.New(),
	}
	for _, p := range opts.Exempt {
		l.exempt[p] = true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				l.sweep(now)
			case <-ctx.Done():
				return
			}
		}
	}()
	return l.middleware, done
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.exempt[r.URL.Path] || l.allow(clientAddr(r), time.Now()) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
	})
}

func (l *rateLimiter) allow(addr string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.clients[addr]; ok {
		l.lru.MoveToFront(e)
		c := e.Value.(*clientBucket)
		c.lastSeen = now
		return c.bucket.AllowN(now, 1)
	}
	if l.lru.Len() >= l.opts.MaxClients {
		l.evictOldest(now)
	}
	c := &clientBucket{addr: addr, bucket: rate.NewLimiter(rate.Limit(l.opts.RPS), l.opts.Burst), lastSeen: now}
	l.clients[addr] = l.lru.PushFront(c)
	return c.bucket.AllowN(now, 1)
}

func (l *rateLimiter) evictOldest(now time.Time) {
	back := l.lru.Back()
	if back == nil {
		return
	}
	l.lru.Remove(back)
	delete(l.clients, back.Value.(*clientBucket).addr)
	l.evicted++
	if now.Sub(l.lastLog) >= evictionLogInterval {
		log.Printf("[RateLimit] Forgot %d least recent client(s), tracking %d", l.evicted, l.opts.MaxClients)
		l.lastLog = now
		l.evicted = 0
	}
}

// sweep drops clients idle for longer than clientIdle. Every hit moves a
// client to the front, so idle clients collect at the back.
func (l *rateLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for e := l.lru.Back(); e != nil; {
		c := e.Value.(*clientBucket)
		if now.Sub(c.lastSeen) <= clientIdle {
			return
		}
		prev := e.Prev()
		l.lru.Remove(e)
		delete(l.clients, c.addr)
		e = prev
	}
}

func (l *rateLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lru.Len()
}

// clientAddr identifies the client behind r. Forwarding headers count only
// when the direct peer is a loopback or private address.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil {
		return host
	}
	if peer.IsLoopback() || peer.IsPrivate() {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	return peer.String()
}

// RequestLogMiddleware logs one line per request in the server's bracketed
// style. The websocket upgrade is logged by the session itself.
func RequestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("[HTTP] %s %s %d %dB %s", r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start).Round(time.Microsecond))
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
