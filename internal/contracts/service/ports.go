package service

import (
	"context"

	"notary/internal/chain"
	"notary/internal/contracts/models"
	tenantModels "notary/internal/tenant/models"
	audit "notary/pkg/platform/audit"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// Store persists contracts and signatures.
type Store interface {
	Create(ctx context.Context, c *models.Contract) error
	GetContractWithSignatures(ctx context.Context, contractID, tenantID string) (*models.Contract, error)
	FindSignature(ctx context.Context, contractID, signerAddress string) (*models.Signature, error)
	AddSignature(ctx context.Context, sig *models.Signature) (models.Status, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Contract, int, error)
}

// Registrar writes contract and signature records to the chain registry.
type Registrar interface {
	RegisterCreate(ctx context.Context, p chain.CreateParams) (models.TxRef, error)
	RegisterSigned(ctx context.Context, p chain.SignedParams) (models.TxRef, error)
}

// TenantResolver yields the tenant's registry address.
type TenantResolver interface {
	Resolve(ctx context.Context, id string) (tenantModels.Resolved, error)
}

// AuditPublisher emits compliance events. Implementations must be fail-closed.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TxRunner runs fn atomically. Stores and the audit outbox join the
// transaction through the context.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
