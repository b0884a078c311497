package tenant

import (
	"log/slog"

	"notary/internal/tenant/handler"
	"notary/internal/tenant/models"
	"notary/internal/tenant/service"
)

// Service resolves per-tenant configuration.
type Service = service.Service

// Handler wires HTTP endpoints to the tenant service.
type Handler = handler.Handler

// NewService constructs the tenant service over a registry and base settings.
func NewService(tenants service.TenantStore, base models.Base, logger *slog.Logger) *Service {
	return service.New(tenants, base, service.WithLogger(logger))
}

// NewHandler constructs the HTTP handler for tenant routes.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
