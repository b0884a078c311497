package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"notary/pkg/platform/httputil"
	"notary/pkg/requestcontext"
)

// Limiter is HTTP middleware admitting at most Limit requests per Window for
// each tenant and client IP pair. Store failures admit the request.
type Limiter struct {
	store   Store
	limit   int
	window  time.Duration
	scope   string
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// New builds a limiter for one endpoint class named by scope.
func New(store Store, scope string, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		scope:  scope,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) key(r *http.Request) string {
	ctx := r.Context()
	return l.scope + ":" + SanitizeKeySegment(requestcontext.TenantID(ctx)) + ":" + SanitizeKeySegment(requestcontext.ClientIP(ctx))
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		result, err := l.store.Allow(ctx, l.key(r), l.limit, l.window)
		if err != nil {
			l.logger.WarnContext(ctx, "rate limit check failed, admitting request",
				"request_id", requestcontext.RequestID(ctx),
				"scope", l.scope,
				"error", err,
			)
			l.metrics.IncrementDecision(l.scope, "error")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			l.metrics.IncrementDecision(l.scope, "rejected")
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter(time.Now())))
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
				Error:            "rate_limit_exceeded",
				ErrorDescription: "Too many requests. Please try again later.",
			})
			return
		}
		l.metrics.IncrementDecision(l.scope, "allowed")
		next.ServeHTTP(w, r)
	})
}
