package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order at startup. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS contracts (
		contract_id         TEXT PRIMARY KEY,
		tenant_id           TEXT NOT NULL DEFAULT 'core',
		template_id         BIGINT NOT NULL DEFAULT 0,
		version             BIGINT NOT NULL DEFAULT 1,
		hash_pdf            TEXT NOT NULL,
		pointer             TEXT,
		signers             TEXT[] NOT NULL DEFAULT '{}',
		tx_hash             TEXT,
		status              TEXT NOT NULL DEFAULT 'created',
		required_signatures INTEGER NOT NULL DEFAULT 2,
		created_by          TEXT NOT NULL DEFAULT 'system',
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS contracts_tenant_created_idx ON contracts (tenant_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS contracts_status_idx ON contracts (status)`,
	`CREATE TABLE IF NOT EXISTS signatures (
		id             UUID PRIMARY KEY,
		contract_id    TEXT NOT NULL REFERENCES contracts (contract_id) ON DELETE CASCADE,
		signer_address TEXT NOT NULL,
		signer_name    TEXT,
		signer_email   TEXT,
		evidence_hash  TEXT NOT NULL,
		evidence       JSONB,
		tx_hash        TEXT,
		signed_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS signatures_contract_signer_uniq ON signatures (contract_id, lower(signer_address))`,
	`CREATE INDEX IF NOT EXISTS signatures_contract_idx ON signatures (contract_id, signed_at)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id             UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		payload        JSONB NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_unpublished_idx ON outbox (created_at) WHERE published_at IS NULL`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
