// Package handler exposes tenant branding and resolves the tenant of each request.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"notary/internal/tenant/models"
	"notary/pkg/platform/httputil"
	"notary/pkg/requestcontext"
)

// Service defines the tenant operations used by the handler.
type Service interface {
	Resolve(ctx context.Context, id string) (models.Resolved, error)
	List(ctx context.Context) ([]*models.Tenant, error)
}

// Handler serves tenant metadata for the current request's tenant.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts tenant endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/tenant", h.HandleCurrent)
}

// RegisterAdmin mounts operator endpoints. The caller supplies the guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/tenants", h.HandleList)
}

// CurrentResponse is the public view of a tenant. Infrastructure overrides
// are never exposed.
type CurrentResponse struct {
	ID       string          `json:"id"`
	Branding models.Branding `json:"branding"`
}

// HandleCurrent handles GET /tenant.
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := requestcontext.TenantID(ctx)

	resolved, err := h.service.Resolve(ctx, tenantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to resolve tenant",
			"request_id", requestcontext.RequestID(ctx),
			"tenant_id", tenantID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, CurrentResponse{
		ID:       tenantID,
		Branding: resolved.Branding,
	})
}

// TenantSummary is the operator view of a registry entry, including which
// infrastructure settings it overrides.
type TenantSummary struct {
	ID                   string          `json:"id"`
	Branding             models.Branding `json:"branding"`
	S3Bucket             string          `json:"s3Bucket,omitempty"`
	S3Prefix             *string         `json:"s3Prefix,omitempty"`
	ChainRegistryAddress string          `json:"chainRegistryAddress,omitempty"`
}

type ListResponse struct {
	Tenants []TenantSummary `json:"tenants"`
}

// HandleList handles GET /admin/tenants.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenants, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list tenants",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := ListResponse{Tenants: make([]TenantSummary, 0, len(tenants))}
	for _, t := range tenants {
		resp.Tenants = append(resp.Tenants, TenantSummary{
			ID:                   t.ID,
			Branding:             t.Branding,
			S3Bucket:             t.Overrides.S3Bucket,
			S3Prefix:             t.Overrides.S3Prefix,
			ChainRegistryAddress: t.Overrides.ChainRegistryAddress,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
