package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, cfg RateLimiterConfig) *RateLimiter {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRateLimiter(ctx, cfg)
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.RequestsPerSecond != 5 {
		t.Errorf("expected RequestsPerSecond=5, got %f", cfg.RequestsPerSecond)
	}
	if cfg.Burst != 10 {
		t.Errorf("expected Burst=10, got %d", cfg.Burst)
	}
	if cfg.CleanupInterval != time.Minute {
		t.Errorf("expected CleanupInterval=1m, got %v", cfg.CleanupInterval)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{
		RequestsPerSecond: 2,
		Burst:             2,
		CleanupInterval:   time.Minute,
	})

	clientIP := "192.168.1.100"

	// First 2 requests should be allowed (burst)
	if !rl.Allow(clientIP) {
		t.Error("expected first request to be allowed")
	}
	if !rl.Allow(clientIP) {
		t.Error("expected second request to be allowed")
	}

	// Third request should be denied (burst exhausted)
	if rl.Allow(clientIP) {
		t.Error("expected third request to be denied")
	}

	time.Sleep(600 * time.Millisecond)

	if !rl.Allow(clientIP) {
		t.Error("expected request to be allowed after waiting")
	}
}

func TestRateLimiter_MultipleClients(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{
		RequestsPerSecond: 5,
		Burst:             5,
		CleanupInterval:   time.Minute,
	})

	client1 := "192.168.1.100"
	client2 := "192.168.1.101"

	for i := 0; i < 5; i++ {
		if !rl.Allow(client1) {
			t.Errorf("client1 request %d should be allowed", i)
		}
		if !rl.Allow(client2) {
			t.Errorf("client2 request %d should be allowed", i)
		}
	}

	if rl.Allow(client1) {
		t.Error("client1 should be rate limited")
	}
	if rl.Allow(client2) {
		t.Error("client2 should be rate limited")
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{
		RequestsPerSecond: 100,
		Burst:             100,
		CleanupInterval:   time.Minute,
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(clientNum int) {
			defer wg.Done()
			clientIP := fmt.Sprintf("192.168.1.%d", clientNum)
			for j := 0; j < 10; j++ {
				rl.Allow(clientIP)
			}
		}(i)
	}
	wg.Wait()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.clients) != 10 {
		t.Errorf("expected 10 tracked clients, got %d", len(rl.clients))
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{
		RequestsPerSecond: 2,
		Burst:             2,
		CleanupInterval:   time.Minute,
	})

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/v1/evaluations", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("request %d: expected status 200, got %d", i, w.Code)
		}
	}

	req := httptest.NewRequest("POST", "/v1/evaluations", nil)
	req.RemoteAddr = "192.168.1.100:12345"
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", w.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"remote addr", "192.168.1.100:12345", "", "", "192.168.1.100"},
		{"x-forwarded-for", "10.0.0.1:12345", "203.0.113.1, 198.51.100.1", "", "203.0.113.1"},
		{"x-real-ip", "10.0.0.1:12345", "", "203.0.113.50", "203.0.113.50"},
		{"xff has priority", "10.0.0.1:12345", "203.0.113.1", "203.0.113.50", "203.0.113.1"},
		{"ipv6", "[2001:db8::1]:12345", "", "", "[2001:db8::1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			if ip := getClientIP(req); ip != tt.want {
				t.Errorf("getClientIP() = %s, want %s", ip, tt.want)
			}
		})
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := newTestLimiter(t, RateLimiterConfig{
		RequestsPerSecond: 100,
		Burst:             100,
		CleanupInterval:   time.Hour,
		IdleTimeout:       time.Minute,
	})

	rl.Allow("192.168.1.1")
	rl.Allow("192.168.1.2")

	rl.mu.Lock()
	rl.lastSeen["192.168.1.1"] = time.Now().Add(-2 * time.Minute)
	rl.mu.Unlock()

	rl.evictIdle(time.Now())

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.clients["192.168.1.1"]; ok {
		t.Error("idle client should have been evicted")
	}
	if _, ok := rl.clients["192.168.1.2"]; !ok {
		t.Error("active client should be kept")
	}
}
