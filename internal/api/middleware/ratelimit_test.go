package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/breatheroute/airdash/internal/api/middleware"
	"github.com/breatheroute/airdash/internal/api/models"
)

func limited(cfg middleware.RateLimitConfig) http.Handler {
	return middleware.RequestID(
		middleware.RateLimitByIP(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)
}

func hit(handler http.Handler, remoteAddr, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP_AllowsWithinLimit(t *testing.T) {
	handler := limited(middleware.PerMinute(5))

	for i := 0; i < 5; i++ {
		rec := hit(handler, "192.168.1.1:12345", "/v1/dashboard")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should be allowed", i+1)
	}
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	handler := limited(middleware.RateLimitConfig{RequestLimit: 3, WindowLength: 30 * time.Second})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:12345", "/v1/geocode").Code)
	}

	rec := hit(handler, "10.0.0.1:12345", "/v1/geocode")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestRateLimitByIP_DifferentIPsHaveSeparateLimits(t *testing.T) {
	handler := limited(middleware.PerMinute(2))

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, hit(handler, "172.16.0.1:12345", "/v1/export/hourly.csv").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "172.16.0.1:12345", "/v1/export/hourly.csv").Code)
	assert.Equal(t, http.StatusOK, hit(handler, "172.16.0.2:12345", "/v1/export/hourly.csv").Code)
}

func TestRateLimitByIP_HonoursRealIPHeader(t *testing.T) {
	handler := limited(middleware.PerMinute(1))

	first := httptest.NewRequest(http.MethodGet, "/v1/dashboard", http.NoBody)
	first.RemoteAddr = "10.1.1.1:1000"
	first.Header.Set("X-Real-IP", "198.51.100.7")
	handler.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodGet, "/v1/dashboard", http.NoBody)
	second.RemoteAddr = "10.1.1.2:1000"
	second.Header.Set("X-Real-IP", "198.51.100.7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, second)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitExceededResponse_Format(t *testing.T) {
	handler := limited(middleware.PerMinute(1))

	assert.Equal(t, http.StatusOK, hit(handler, "203.0.113.1:12345", "/v1/dashboard/fetch").Code)
	rec := hit(handler, "203.0.113.1:12345", "/v1/dashboard/fetch")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, models.ProblemTypeTooManyRequests)
	assert.Contains(t, body, "Rate limit exceeded")
	assert.Contains(t, body, "/v1/dashboard/fetch")
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 120, middleware.StandardRateLimit.RequestLimit)
	assert.Equal(t, 30, middleware.UpstreamRateLimit.RequestLimit)
	assert.Equal(t, 10, middleware.ExportRateLimit.RequestLimit)

	for _, cfg := range []middleware.RateLimitConfig{
		middleware.StandardRateLimit, middleware.UpstreamRateLimit, middleware.ExportRateLimit,
	} {
		assert.Equal(t, time.Minute, cfg.WindowLength)
	}

	assert.Equal(t, middleware.RateLimitConfig{RequestLimit: 7, WindowLength: time.Minute}, middleware.PerMinute(7))
}
