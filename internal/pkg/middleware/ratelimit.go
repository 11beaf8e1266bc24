package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/crsarena/arena-eval/internal/pkg/errors"
)

// RateLimiter provides per-client rate limiting.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
	idle     time.Duration
	lastSeen map[string]time.Time
}

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the rate limit per client.
	RequestsPerSecond float64
	// Burst is the maximum burst size.
	Burst int
	// CleanupInterval is how often to clean up stale clients.
	CleanupInterval time.Duration
	// IdleTimeout is how long a client may be silent before it is forgotten.
	IdleTimeout time.Duration
}

// DefaultRateLimiterConfig returns sensible defaults. Evaluations are
// CPU-bound over whole documents, so the budget is far lower than for
// ordinary API traffic.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 5,
		Burst:             10,
		CleanupInterval:   time.Minute,
		IdleTimeout:       5 * time.Minute,
	}
}

// NewRateLimiter creates a new rate limiter. The cleanup loop stops when ctx
// is cancelled.
func NewRateLimiter(ctx context.Context, cfg RateLimiterConfig) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}

	rl := &RateLimiter{
		clients:  make(map[string]*rate.Limiter),
		rate:     rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
		cleanup:  cfg.CleanupInterval,
		idle:     cfg.IdleTimeout,
		lastSeen: make(map[string]time.Time),
	}

	go rl.cleanupLoop(ctx)

	return rl
}

// getLimiter returns the rate limiter for a client, creating one if needed.
func (rl *RateLimiter) getLimiter(clientIP string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lastSeen[clientIP] = time.Now()

	limiter, exists := rl.clients[clientIP]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.clients[clientIP] = limiter
	}

	return limiter
}

// cleanupLoop removes stale client entries.
func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.evictIdle(now)
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := now.Add(-rl.idle)
	for ip, lastSeen := range rl.lastSeen {
		if lastSeen.Before(threshold) {
			delete(rl.clients, ip)
			delete(rl.lastSeen, ip)
		}
	}
}

// Allow checks if a request from the given IP should be allowed.
func (rl *RateLimiter) Allow(clientIP string) bool {
	return rl.getLimiter(clientIP).Allow()
}

// Middleware returns an HTTP middleware that applies rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)

		if !rl.Allow(clientIP) {
			apperrors.WriteError(w, apperrors.RateLimitedError(1))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For first (for proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP in the chain
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
