package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowBurstThenRefill(t *testing.T) {
	rl := NewLimiter(Config{RPS: 1, Burst: 2})
	defer rl.Stop()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, rl.Allow("10.0.0.2"), "clients are independent")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"), "one token refilled after a second")
}

func TestEvictIdle(t *testing.T) {
	rl := NewLimiter(Config{RPS: 1, Burst: 1, IdleTTL: time.Minute})
	defer rl.Stop()
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(30 * time.Second)
	rl.Allow("b")
	now = now.Add(45 * time.Second)

	if n := rl.evictIdle(); n != 1 {
		t.Errorf("evictIdle() = %d, want 1", n)
	}
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestMiddlewareOnlyLimitsMutations(t *testing.T) {
	rl := NewLimiter(Config{RPS: 0.001, Burst: 1})
	defer rl.Stop()
	limited := 0
	h := rl.Middleware(func(*http.Request) string { return "ip" }, func(*http.Request) { limited++ })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	serve := func(method string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/houses", nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve(http.MethodPost))
	assert.Equal(t, http.StatusTooManyRequests, serve(http.MethodDelete))
	assert.Equal(t, http.StatusOK, serve(http.MethodGet))
	assert.Equal(t, http.StatusOK, serve(http.MethodGet))
	assert.Equal(t, 1, limited)
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}
