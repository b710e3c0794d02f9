package web

import (
	"net"
	"net/http"
	"time"

	"github.com/go-i2p/dbpool/lib/metrics"
	"github.com/go-i2p/dbpool/lib/ratelimit"
)

// RateLimitConfig configures per-client rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the rate of allowed requests per client address.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size per client address.
	BurstSize int
	// CleanupInterval is how often idle limiters are dropped.
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns the defaults for the status endpoints.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10.0,
		BurstSize:         30,
		CleanupInterval:   5 * time.Minute,
	}
}

// RateLimiter is HTTP middleware that limits requests per client address.
type RateLimiter struct {
	limiter  *ratelimit.KeyedLimiter
	onReject func(ip string, path string)
}

// NewRateLimiter creates a rate limiter. Non-positive fields fall back to
// DefaultRateLimitConfig.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = def.BurstSize
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	return &RateLimiter{
		limiter: ratelimit.NewKeyed(cfg.RequestsPerSecond, cfg.BurstSize, cfg.CleanupInterval),
	}
}

// SetOnReject sets a callback invoked for every rejected request.
func (rl *RateLimiter) SetOnReject(fn func(ip string, path string)) {
	rl.onReject = fn
}

// Close stops the rate limiter's cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.limiter.Close()
}

// Middleware rejects requests over the limit with 429 Too Many Requests.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		if !rl.limiter.Allow(ip) {
			metrics.RateLimitRejections.Inc()
			if rl.onReject != nil {
				rl.onReject(ip, r.URL.Path)
			}
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. Proxy headers are only
// honored through middleware.RealIP, which rewrites RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
