package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	audit "notary/pkg/platform/audit"
	txcontext "notary/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and relayed to Kafka by the outbox
// relay; Kafka is the system of record for the audit trail.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Payload is the JSON document published for each audit event.
type Payload struct {
	ID              string `json:"id"`
	Category        string `json:"category"`
	Timestamp       string `json:"timestamp"`
	TenantID        string `json:"tenant_id,omitempty"`
	ContractID      string `json:"contract_id,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	Subject         string `json:"subject,omitempty"`
	Action          string `json:"action"`
	RequestingParty string `json:"requesting_party,omitempty"`
	Decision        string `json:"decision,omitempty"`
	Reason          string `json:"reason,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
	ActorID         string `json:"actor_id,omitempty"`
}

// Append writes an audit event to the outbox table. When ctx carries a
// transaction the row commits or rolls back with the caller's changes.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	payload := Payload{
		ID:              eventID.String(),
		Category:        string(category),
		Timestamp:       event.Timestamp.UTC().Format(time.RFC3339Nano),
		TenantID:        event.TenantID,
		ContractID:      event.ContractID,
		UserID:          event.UserID,
		Subject:         event.Subject,
		Action:          event.Action,
		RequestingParty: event.RequestingParty,
		Decision:        event.Decision,
		Reason:          event.Reason,
		RequestID:       event.RequestID,
		ActorID:         event.ActorID,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "audit"
	aggregateID := eventID.String()
	if event.ContractID != "" {
		aggregateType = "contract"
		aggregateID = event.ContractID
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = txcontext.Or(ctx, s.db).ExecContext(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}
