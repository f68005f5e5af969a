package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(cfg Config) (*Limiter, *clock) {
	l := New(cfg)
	c := &clock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l.now = c.now
	return l, c
}

func TestLimiterAllow(t *testing.T) {
	l, clk := newTestLimiter(Config{RequestsPerMinute: 60, Burst: 5})

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "keys are independent")

	clk.t = clk.t.Add(1100 * time.Millisecond)
	assert.True(t, l.Allow("10.0.0.1"), "one token refilled")
	assert.False(t, l.Allow("10.0.0.1"))

	clk.t = clk.t.Add(time.Hour)
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("10.0.0.1"))
	}
	assert.False(t, l.Allow("10.0.0.1"), "refill is capped at burst")
}

func TestLimiterDisabled(t *testing.T) {
	l := New(Config{RequestsPerMinute: 0, Burst: 1})
	assert.False(t, l.Enabled())
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("k"))
	}
}

func TestLimiterSweep(t *testing.T) {
	l, clk := newTestLimiter(Config{RequestsPerMinute: 60, Burst: 2, IdleTTL: time.Minute})
	l.Allow("a")
	clk.t = clk.t.Add(2 * time.Minute)
	l.Allow("b")

	l.Sweep()
	assert.Len(t, l.buckets, 1)
	assert.Contains(t, l.buckets, "b")
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, _ := newTestLimiter(Config{RequestsPerMinute: 60, Burst: 2})

	router := gin.New()
	router.Use(l.Middleware())
	router.POST("/v1/predict", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/predict", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		router.ServeHTTP(w, req)
		codes[i] = w.Code
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", w.Header().Get("Retry-After"))
			assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
