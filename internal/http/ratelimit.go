package http

import (
	"net/http"
	"sync"
	"time"
)

// rateLimiter is a fixed-window per-client limiter. Windows are one minute
// long; stale windows are pruned opportunistically.
type rateLimiter struct {
	mu        sync.Mutex
	perMinute int
	windows   map[string]*window
}

type window struct {
	start time.Time
	count int
}

func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{
		perMinute: perMinute,
		windows:   make(map[string]*window),
	}
}

func (l *rateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= time.Minute {
		l.windows[key] = &window{start: now, count: 1}
		l.prune(now)
		return true
	}
	if w.count >= l.perMinute {
		return false
	}
	w.count++
	return true
}

// prune drops expired windows. Called with the lock held.
func (l *rateLimiter) prune(now time.Time) {
	if len(l.windows) < 1024 {
		return
	}
	for key, w := range l.windows {
		if now.Sub(w.start) >= time.Minute {
			delete(l.windows, key)
		}
	}
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Message: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
