package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"payflow/internal/ratelimit"
)

// Middleware throttles API traffic per client IP before it reaches handlers.
// The transfer path performs its own per-account admission; this guard only
// protects the surface from one address flooding the service.
type Middleware struct {
	limiter   *ratelimit.Limiter
	extractIP func(*http.Request) string
	metrics   *Metrics
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits int64
	Denied    int64
}

// NewMiddleware creates rate limiting middleware backed by the shared limiter.
func NewMiddleware(limiter *ratelimit.Limiter, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{
		limiter:   limiter,
		extractIP: extractIP,
		metrics:   &Metrics{},
	}
}

// Handler wraps next with per-IP admission on the api operation.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&m.metrics.TotalHits, 1)

		actor := "ip:" + m.extractIP(r)
		decision, err := m.limiter.Admit(r.Context(), actor, ratelimit.OpAPI)
		if err != nil {
			// The store being down must not take reads with it. Transfers
			// stay protected by their own admission inside the service.
			slog.WarnContext(r.Context(), "Rate limit store unavailable, admitting request",
				"error", err,
				"actor", actor)
			next.ServeHTTP(w, r)
			return
		}

		if !decision.Allowed {
			atomic.AddInt64(&m.metrics.Denied, 1)
			retryAfter := int(time.Until(decision.ResetAt).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetMetrics returns current rate limiting metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalHits: atomic.LoadInt64(&m.metrics.TotalHits),
		Denied:    atomic.LoadInt64(&m.metrics.Denied),
	}
}
