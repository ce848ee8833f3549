package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type bucket struct {
	count int
	until time.Time
}

// fixedWindow counts requests per client in fixed windows.
type fixedWindow struct {
	mu      sync.Mutex
	limit   int
	per     time.Duration
	now     func() time.Time
	buckets map[string]*bucket
	sweep   time.Time
}

func newFixedWindow(limit int, per time.Duration, now func() time.Time) *fixedWindow {
	if now == nil {
		now = time.Now
	}
	return &fixedWindow{limit: limit, per: per, now: now, buckets: make(map[string]*bucket)}
}

// allow reports whether key may proceed and, if not, how long until it may.
func (f *fixedWindow) allow(key string) (bool, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	if now.After(f.sweep) {
		for k, b := range f.buckets {
			if now.After(b.until) {
				delete(f.buckets, k)
			}
		}
		f.sweep = now.Add(f.per)
	}
	b, ok := f.buckets[key]
	if !ok || now.After(b.until) {
		b = &bucket{until: now.Add(f.per)}
		f.buckets[key] = b
	}
	if b.count >= f.limit {
		return false, b.until.Sub(now)
	}
	b.count++
	return true, 0
}

// RateLimit rejects clients that exceed limit requests per window with 429.
// A non-positive limit disables limiting.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	return rateLimit(newFixedWindow(limit, per, nil))
}

func rateLimit(f *fixedWindow) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if f.limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := f.allow(clientIPForRateLimit(r))
			if !ok {
				secs := int(wait.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
