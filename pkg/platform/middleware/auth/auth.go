package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "notary/pkg/domain-errors"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/httputil"
	"notary/pkg/platform/middleware/metadata"
	"notary/pkg/requestcontext"
)

// JWTValidator validates bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// AuditPublisher records rejected requests as security events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type options struct {
	auditor AuditPublisher
}

type Option func(*options)

func WithAuditPublisher(p AuditPublisher) Option {
	return func(o *options) {
		o.auditor = p
	}
}

// RequireAuth rejects requests without a valid bearer token. A token bound to
// a tenant may only be used against that tenant.
func RequireAuth(validator JWTValidator, logger *slog.Logger, opts ...Option) func(http.Handler) http.Handler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	record := func(ctx context.Context, event audit.AuditEvent, userID, reason string) {
		if o.auditor == nil {
			return
		}
		err := o.auditor.Emit(ctx, audit.Event{
			TenantID:  requestcontext.TenantID(ctx),
			UserID:    userID,
			Action:    string(event),
			Decision:  "denied",
			Reason:    reason,
			RequestID: requestcontext.RequestID(ctx),
			Timestamp: requestcontext.Now(ctx),

			RequestingParty: metadata.AgentLabel(requestcontext.UserAgent(ctx)),
		})
		if err != nil {
			logger.WarnContext(ctx, "failed to record security event",
				"request_id", requestcontext.RequestID(ctx),
				"action", string(event),
				"error", err,
			)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				record(ctx, audit.EventAuthFailed, "", "missing_token")
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestID,
					"error", err,
				)
				record(ctx, audit.EventAuthFailed, "", "invalid_token")
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			tenantID := requestcontext.TenantID(ctx)
			if claims.TenantID != "" && tenantID != "" && claims.TenantID != tenantID {
				logger.WarnContext(ctx, "forbidden - token tenant mismatch",
					"request_id", requestID,
					"token_tenant", claims.TenantID,
					"tenant_id", tenantID,
				)
				record(ctx, audit.EventTenantAccessBlocked, claims.UserID, "token_tenant_mismatch")
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token is not valid for this tenant"))
				return
			}

			ctx = requestcontext.WithUserID(ctx, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
