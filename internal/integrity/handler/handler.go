// Package handler serves contract integrity reports.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"notary/internal/integrity"
	dErrors "notary/pkg/domain-errors"
	"notary/pkg/platform/httputil"
	"notary/pkg/requestcontext"
)

// Verifier produces integrity reports.
type Verifier interface {
	Verify(ctx context.Context, contractID, tenantID string) (*integrity.Report, error)
}

type Handler struct {
	verifier Verifier
	logger   *slog.Logger
}

func New(verifier Verifier, logger *slog.Logger) *Handler {
	return &Handler{verifier: verifier, logger: logger}
}

// Register mounts integrity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/contracts/{id}/audit", h.HandleAudit)
}

// HandleAudit handles GET /contracts/{id}/audit. The report is scoped to the
// request tenant; contracts of other tenants are reported as not found.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	contractID := chi.URLParam(r, "id")
	tenantID := requestcontext.TenantID(ctx)
	if tenantID == "" {
		tenantID = requestcontext.DefaultTenantID
	}
	start := time.Now()

	report, err := h.verifier.Verify(ctx, contractID, tenantID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "integrity verification failed",
				"request_id", requestID,
				"contract_id", contractID,
				"tenant_id", tenantID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "integrity report produced",
		"request_id", requestID,
		"contract_id", contractID,
		"tenant_id", tenantID,
		"status", report.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, report)
}
