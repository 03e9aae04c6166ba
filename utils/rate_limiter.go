package utils

import (
	"net/http"

	"golang.org/x/time/rate"

	"user-registry/metrics"
)

// RateLimiter wraps the rate.Limiter for HTTP middleware usage
type RateLimiter struct {
	limiter *rate.Limiter
	errors  *ErrorHandler
}

// NewRateLimiter creates a new RateLimiter with the specified rate and burst.
// Rejections are reported to errs when it is non-nil.
func NewRateLimiter(rps int, burst int, errs *ErrorHandler) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		errors:  errs,
	}
}

// Allow checks if a request is allowed
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Limiter exposes the underlying token bucket
func (rl *RateLimiter) Limiter() *rate.Limiter {
	return rl.limiter
}

// Middleware rejects requests beyond the configured rate with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter.Allow() {
			metrics.IncrementRateLimitHits()
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			if rl.errors != nil {
				rl.errors.HandleError(RequestIDFrom(r.Context()), "rate_limit", nil, "Rate limit exceeded for request: "+r.URL.Path)
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}
