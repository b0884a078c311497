package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notary/pkg/requestcontext"
)

func TestInMemorySlidingWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewInMemory()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := range 3 {
		res, err := store.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		now = now.Add(10 * time.Second)
	}

	res, err := store.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC), res.ResetAt)

	res, err = store.Allow(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "keys are independent")

	now = now.Add(31 * time.Second)
	res, err = store.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "the oldest request left the window")
}

func TestResultRetryAfter(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 30, Result{ResetAt: now.Add(30 * time.Second)}.RetryAfter(now))
	assert.Equal(t, 1, Result{ResetAt: now.Add(-time.Second)}.RetryAfter(now))
}

func TestSanitizeKeySegment(t *testing.T) {
	assert.Equal(t, "acme_admin", SanitizeKeySegment("acme:admin"))
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (Result, error) {
	return Result{}, errors.New("redis down")
}

func serve(h http.Handler, tenantID, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/contracts/0x01/audit", nil)
	ctx := requestcontext.WithClientMetadata(requestcontext.WithTenantID(req.Context(), tenantID), ip, "test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func TestLimiterMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	limiter := New(NewInMemory(), "audit", 2, time.Minute, WithMetrics(m))
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusOK, serve(h, "acme", "10.0.0.1").Code)
	rec := serve(h, "acme", "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(h, "acme", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"error":"rate_limit_exceeded"`)

	assert.Equal(t, http.StatusOK, serve(h, "globex", "10.0.0.1").Code, "tenants have separate windows")
	assert.Equal(t, float64(3), testutil.ToFloat64(m.Decisions.WithLabelValues("audit", "allowed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Decisions.WithLabelValues("audit", "rejected")))
}

func TestLimiterFailsOpen(t *testing.T) {
	h := New(failingStore{}, "audit", 1, time.Minute).Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	assert.Equal(t, http.StatusNoContent, serve(h, "acme", "10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, serve(h, "acme", "10.0.0.1").Code)
}

func TestLimiterDisabledWithoutLimit(t *testing.T) {
	h := New(failingStore{}, "audit", 0, time.Minute).Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := serve(h, "acme", "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}
