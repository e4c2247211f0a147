package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func request(handler http.Handler, method, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remote
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestLimiter_Burst(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 60, BurstSize: 3, CleanupMinutes: 1})
	defer l.Stop()
	handler := l.Handler(okHandler())

	for i := 0; i < 3; i++ {
		rr := request(handler, "POST", "/api/v1/verify", "192.168.1.100:12345")
		assert.Equal(t, http.StatusOK, rr.Code, "request %d should pass", i+1)
	}

	rr := request(handler, "POST", "/api/v1/verify", "192.168.1.100:12345")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	var response map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	errObj, ok := response["error"].(map[string]any)
	require.True(t, ok, "error should be an object")
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errObj["code"])
}

func TestLimiter_PerClient(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 60, BurstSize: 1, CleanupMinutes: 1})
	defer l.Stop()
	handler := l.Handler(okHandler())

	assert.Equal(t, http.StatusOK, request(handler, "GET", "/api/v1/results", "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, request(handler, "GET", "/api/v1/results", "10.0.0.1:2").Code)
	assert.Equal(t, http.StatusOK, request(handler, "GET", "/api/v1/results", "10.0.0.2:1").Code)
}

func TestLimiter_ExemptPaths(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 1, BurstSize: 1, CleanupMinutes: 1})
	defer l.Stop()
	handler := l.Handler(okHandler())

	for _, path := range []string{"/health", "/healthz", "/readyz", "/metrics"} {
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, request(handler, "GET", path, "10.0.0.1:1").Code, path)
		}
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	handler := Middleware(Config{Enabled: false, RequestsPerMin: 1, BurstSize: 1})(okHandler())

	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, request(handler, "POST", "/api/v1/verify", "10.0.0.1:1").Code)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 6000, BurstSize: 100, CleanupMinutes: 1})
	defer l.Stop()
	handler := l.Handler(okHandler())

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				request(handler, "GET", "/api/v1/results", "10.0.0.1:1")
			}
		}()
	}
	wg.Wait()
}

func TestLimiter_ForgetsIdleClients(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 60, BurstSize: 1, CleanupMinutes: 1})
	defer l.Stop()

	current := time.Now()
	l.now = func() time.Time { return current }

	l.Allow("stale")
	current = current.Add(30 * time.Second)
	l.Allow("fresh")
	current = current.Add(45 * time.Second)

	l.forgetIdle()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.visitors, "stale")
	assert.Contains(t, l.visitors, "fresh")
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 60, BurstSize: 1})
	l.Stop()
	l.Stop()
}
