// Package service resolves effective per-tenant configuration.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"notary/internal/tenant/models"
	"notary/pkg/platform/sentinel"
)

// TenantStore is the registry lookup used by the service.
type TenantStore interface {
	FindByID(ctx context.Context, id string) (*models.Tenant, error)
	List(ctx context.Context) ([]*models.Tenant, error)
}

// Service merges registry overrides over the service-wide base settings.
type Service struct {
	tenants TenantStore
	base    models.Base
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(tenants TenantStore, base models.Base, opts ...Option) *Service {
	s := &Service{
		tenants: tenants,
		base:    base,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the effective configuration for id. Unknown tenants get
// the base settings under the default tenant's identity.
func (s *Service) Resolve(ctx context.Context, id string) (models.Resolved, error) {
	t, err := s.tenants.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Resolve(s.base, nil), nil
	}
	if err != nil {
		return models.Resolved{}, fmt.Errorf("find tenant %s: %w", id, err)
	}
	return models.Resolve(s.base, t), nil
}

// Known reports whether id is registered.
func (s *Service) Known(ctx context.Context, id string) bool {
	_, err := s.tenants.FindByID(ctx, id)
	return err == nil
}

// List returns every registered tenant.
func (s *Service) List(ctx context.Context) ([]*models.Tenant, error) {
	return s.tenants.List(ctx)
}
