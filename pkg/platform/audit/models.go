package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// Categories drive retention and routing downstream of the outbox.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: contract
	// creation, signatures and integrity verifications. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	CategorySecurity EventCategory = "security"

	// CategoryOperations is the fallback for actions without a category.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	TenantID   string
	ContractID string
	// UserID is the authenticated caller; empty for system actions.
	UserID string
	// Subject is the entity acted upon (signer address, contract id).
	Subject         string
	Action          string
	RequestingParty string
	Decision        string
	Reason          string
	RequestID       string
	ActorID         string
}

type AuditEvent string

const (
	EventContractCreated     AuditEvent = "contract_created"
	EventContractSigned      AuditEvent = "contract_signed"
	EventIntegrityVerified   AuditEvent = "contract_integrity_verified"
	EventIntegrityAttention  AuditEvent = "contract_integrity_attention"
	EventAuthFailed          AuditEvent = "auth_failed"
	EventTenantAccessBlocked AuditEvent = "tenant_access_blocked"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventContractCreated:    CategoryCompliance,
	EventContractSigned:     CategoryCompliance,
	EventIntegrityVerified:  CategoryCompliance,
	EventIntegrityAttention: CategoryCompliance,

	EventAuthFailed:          CategorySecurity,
	EventTenantAccessBlocked: CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
