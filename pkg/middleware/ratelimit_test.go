package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/boloapp/order-service/pkg/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(handler http.Handler, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiter_PerIPLimit(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{
		GlobalCapacity:   100,
		GlobalRefillRate: 0.0001,
		IPCapacity:       2,
		IPRefillRate:     0.0001,
	}, logger.Nop())
	defer rl.Stop()

	handler := rl.Middleware(okHandler())

	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:1234", ""))
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:1234", ""))
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "10.0.0.1:1234", ""))

	// A different client is unaffected.
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.2:1234", ""))
}

func TestRateLimiter_GlobalLimit(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{
		GlobalCapacity:   1,
		GlobalRefillRate: 0.0001,
		IPCapacity:       100,
		IPRefillRate:     0.0001,
	}, logger.Nop())
	defer rl.Stop()

	handler := rl.Middleware(okHandler())

	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:1234", ""))

	code := hit(handler, "10.0.0.2:1234", "")
	assert.Equal(t, http.StatusTooManyRequests, code, "global bucket spent regardless of ip")
}

func TestRateLimiter_ForwardedFor(t *testing.T) {
	trusted := NewRateLimiter(&RateLimiterConfig{
		GlobalCapacity:    100,
		GlobalRefillRate:  0.0001,
		IPCapacity:        1,
		IPRefillRate:      0.0001,
		TrustForwardedFor: true,
	}, logger.Nop())
	defer trusted.Stop()

	handler := trusted.Middleware(okHandler())

	// Same proxy, different clients behind it.
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.9:1234", "203.0.113.5"))
	assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.9:1234", "203.0.113.6"))
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "10.0.0.9:1234", "203.0.113.5"))
}

func TestRateLimiter_Metrics(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{
		GlobalCapacity:   10,
		GlobalRefillRate: 1,
		IPCapacity:       10,
		IPRefillRate:     1,
	}, logger.Nop())
	defer rl.Stop()

	handler := rl.Middleware(okHandler())
	hit(handler, "10.0.0.1:1234", "")

	m := rl.Metrics()
	assert.Contains(t, m, "global_tokens_available")
	assert.Equal(t, 1, m["tracked_ips"])
}
