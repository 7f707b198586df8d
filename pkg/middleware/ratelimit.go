package middleware

import (
	"net/http"
	"strings"

	"github.com/boloapp/order-service/pkg/logger"
	"github.com/boloapp/order-service/pkg/ratelimit"
)

// RateLimiter applies a global token bucket plus per-IP buckets to
// incoming requests.
type RateLimiter struct {
	global            *ratelimit.TokenBucket
	perIP             *ratelimit.IPLimiter
	logger            logger.Logger
	trustForwardedFor bool
}

// RateLimiterConfig configures the rate limiter middleware.
type RateLimiterConfig struct {
	GlobalCapacity    float64
	GlobalRefillRate  float64
	IPCapacity        float64
	IPRefillRate      float64
	TrustForwardedFor bool
}

// NewRateLimiter creates the middleware.
func NewRateLimiter(cfg *RateLimiterConfig, log logger.Logger) *RateLimiter {
	return &RateLimiter{
		global:            ratelimit.NewTokenBucket(cfg.GlobalCapacity, cfg.GlobalRefillRate),
		perIP:             ratelimit.NewIPLimiter(cfg.IPCapacity, cfg.IPRefillRate, 0),
		logger:            log,
		trustForwardedFor: cfg.TrustForwardedFor,
	}
}

// Middleware returns the mux-compatible middleware function.
func (m *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.global.Allow() {
			m.logger.Warn("global rate limit exceeded", "method", r.Method, "path", r.URL.Path)
			reject(w, "10")
			return
		}

		ip := m.clientIP(r)
		if !m.perIP.Allow(ip) {
			m.logger.Warn("ip rate limit exceeded", "method", r.Method, "path", r.URL.Path, "ip", ip)
			reject(w, "60")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Metrics returns a snapshot for the admin API.
func (m *RateLimiter) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"global_tokens_available": m.global.Available(),
		"tracked_ips":             m.perIP.Size(),
	}
}

// Stop terminates the per-IP eviction sweep.
func (m *RateLimiter) Stop() {
	m.perIP.Stop()
}

func reject(w http.ResponseWriter, retryAfter string) {
	w.Header().Set("Retry-After", retryAfter)
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte("rate limit exceeded, try again later"))
}

func (m *RateLimiter) clientIP(r *http.Request) string {
	if m.trustForwardedFor {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			return strings.TrimSpace(strings.Split(forwarded, ",")[0])
		}
	}

	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i != -1 {
		ip = ip[:i]
	}
	return ip
}
