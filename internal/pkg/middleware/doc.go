// Package middleware provides HTTP middleware components for the evaluation server.
//
// Available middleware:
//   - RateLimiter: Per-client rate limiting using token bucket algorithm
//   - RequestID: Tags each request with an ID (X-Request-ID) and stores it in the context
//   - Recovery: Converts handler panics into sanitized 500 responses
//   - Logging: Debug-level access log
//   - CORS: Permissive or allow-listed cross-origin headers
//
// Usage:
//
//	rl := middleware.NewRateLimiter(ctx, middleware.DefaultRateLimiterConfig())
//	handler = rl.Middleware(handler)
package middleware
