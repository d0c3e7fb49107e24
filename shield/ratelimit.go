package shield

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/masukame/siteconfig"
)

const rateWindow = time.Minute

type bucket struct {
	mu       sync.Mutex
	count    int
	resetAt  time.Time
	lastPost time.Time
}

// RateLimiter limits each client IP to MaxRequests per minute on the
// guarded path prefixes, and spaces its POSTs at least ThrottleDelay apart.
type RateLimiter struct {
	max      int
	throttle time.Duration
	prefixes []string
	buckets  sync.Map // ip -> *bucket
	now      func() time.Time
}

// NewRateLimiter builds a limiter from the rate_limit config section.
// Only paths under prefixes are counted; with no prefixes every path is.
func NewRateLimiter(cfg siteconfig.RateLimitConfig, prefixes ...string) *RateLimiter {
	return &RateLimiter{
		max:      cfg.MaxRequests,
		throttle: cfg.ThrottleDelay,
		prefixes: prefixes,
		now:      time.Now,
	}
}

// StartGC drops expired buckets every interval until ctx is done.
func (rl *RateLimiter) StartGC(ctx context.Context, interval time.Duration) {
	tick := time.NewTicker(interval)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				rl.gc()
			}
		}
	}()
}

func (rl *RateLimiter) gc() {
	now := rl.now()
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		expired := now.After(b.resetAt) && now.Sub(b.lastPost) > rl.throttle
		b.mu.Unlock()
		if expired {
			rl.buckets.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) guarded(path string) bool {
	if len(rl.prefixes) == 0 {
		return true
	}
	for _, p := range rl.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// allow records one request from ip and reports whether it may proceed,
// with the wait to suggest when it may not.
func (rl *RateLimiter) allow(ip string, post bool) (bool, time.Duration) {
	if rl.max <= 0 {
		return true, 0
	}
	now := rl.now()
	v, _ := rl.buckets.LoadOrStore(ip, &bucket{resetAt: now.Add(rateWindow)})
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	if now.After(b.resetAt) {
		b.count = 0
		b.resetAt = now.Add(rateWindow)
	}
	if post && rl.throttle > 0 && !b.lastPost.IsZero() {
		if wait := rl.throttle - now.Sub(b.lastPost); wait > 0 {
			return false, wait
		}
	}
	b.count++
	if b.count > rl.max {
		return false, b.resetAt.Sub(now)
	}
	if post {
		b.lastPost = now
	}
	return true, 0
}

// Middleware answers 429 with a JSON body on /api/ paths, and redirects
// back with an error flash elsewhere.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.guarded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		ip := ExtractIP(r)
		ok, wait := rl.allow(ip, r.Method == http.MethodPost)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		slog.Warn("ratelimit: request blocked", "ip", ip, "path", r.URL.Path)
		secs := int(wait.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))

		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}

		SetFlash(w, FlashError, "Too many requests. Please wait a moment and try again.")
		referer := r.Header.Get("Referer")
		if referer == "" {
			referer = "/"
		}
		http.Redirect(w, r, referer, http.StatusSeeOther)
	})
}

// ExtractIP returns the first X-Forwarded-For hop, or the RemoteAddr host.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
