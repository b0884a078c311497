package integrity

import (
	"context"

	"notary/internal/contracts/models"
	audit "notary/pkg/platform/audit"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// ContractStore loads a contract aggregate with all of its signatures.
// tenantID == "" disables tenant scoping. Missing contracts are reported
// with sentinel.ErrNotFound.
type ContractStore interface {
	GetContractWithSignatures(ctx context.Context, contractID, tenantID string) (*models.Contract, error)
}

// Decoder resolves a transaction hash to the registry call it carried.
type Decoder interface {
	DecodeTransaction(ctx context.Context, txHash string) (*DecodedCall, error)
}

// DocumentFetcher downloads the stored document bytes for a tenant.
type DocumentFetcher interface {
	GetDocumentBytes(ctx context.Context, pointer, tenantID string) ([]byte, error)
}

// DecodedCall is a registry function call recovered from a transaction.
type DecodedCall struct {
	Name string
	Args map[string]any
}

// AuditPublisher records compliance events for produced reports.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
