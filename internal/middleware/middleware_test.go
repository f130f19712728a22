package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =========================================================================
// LOGGER TESTS
// =========================================================================

func TestLogger_RecordsStatusAndBytes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

	line := buf.String()
	assert.Contains(t, line, "status=418")
	assert.Contains(t, line, "bytes=15")
	assert.Contains(t, line, "path=/brew")
	assert.Contains(t, line, "level=INFO")
}

func TestLogger_ServerErrorsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), "level=ERROR")
}

func TestLogger_KeepsFlusherReachable(t *testing.T) {
	h := Logger(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data: x\n\n"))
		assert.NoError(t, http.NewResponseController(w).Flush())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))
	assert.True(t, rec.Flushed)
}

// =========================================================================
// RATE LIMITER TESTS
// =========================================================================

func TestRateLimiter_AllowsBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(3, discardLogger())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("1.2.3.4")
		require.True(t, ok, "request %d should pass", i+1)
	}

	ok, retry := rl.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.InDelta(t, float64(20*time.Second), float64(retry), float64(time.Millisecond))

	ok, _ = rl.Allow("5.6.7.8")
	assert.True(t, ok, "other clients have their own bucket")

	now = now.Add(21 * time.Second)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok, "a token refills every 20s")
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, discardLogger())
	for i := 0; i < 100; i++ {
		ok, _ := rl.Allow("1.2.3.4")
		require.True(t, ok)
	}
}

func TestRateLimiter_SweepsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(5, discardLogger())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("1.2.3.4")
	now = now.Add(visitorTTL + time.Minute)
	rl.Allow("5.6.7.8")

	_, kept := rl.visitors["1.2.3.4"]
	assert.False(t, kept)
	assert.Len(t, rl.visitors, 1)
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, discardLogger())
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "9.9.9.9:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.True(t, strings.Contains(rec.Body.String(), "rate_limited"))
}
