package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"notary/internal/contracts/models"
	"notary/pkg/hashing"
	"notary/pkg/platform/sentinel"
	txcontext "notary/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Postgres persists contracts in PostgreSQL. Writes join the transaction
// carried by ctx when there is one.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const contractColumns = `contract_id, tenant_id, template_id, version, hash_pdf, pointer, signers,
	tx_hash, status, required_signatures, created_by, created_at`

func (s *Postgres) Create(ctx context.Context, c *models.Contract) error {
	_, err := txcontext.Or(ctx, s.db).ExecContext(ctx, `
		INSERT INTO contracts (`+contractColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		c.ContractID,
		c.TenantID,
		c.TemplateID,
		c.Version,
		c.HashPDF,
		nullString(c.Pointer),
		pq.Array(c.Signers),
		c.Tx.StorageValue(),
		string(c.Status),
		c.RequiredSignatures,
		c.CreatedBy,
		c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("contract %s: %w", c.ContractID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

func (s *Postgres) GetContractWithSignatures(ctx context.Context, contractID, tenantID string) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE contract_id = $1`
	args := []any{contractID}
	if tenantID != "" {
		query += ` AND tenant_id = $2`
		args = append(args, tenantID)
	}

	c, err := scanContract(txcontext.Or(ctx, s.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select contract: %w", err)
	}

	sigs, err := s.signatures(ctx, contractID)
	if err != nil {
		return nil, err
	}
	c.Signatures = sigs
	return c, nil
}

func (s *Postgres) FindSignature(ctx context.Context, contractID, signerAddress string) (*models.Signature, error) {
	row := txcontext.Or(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, contract_id, signer_address, signer_name, signer_email, evidence_hash, evidence, tx_hash, signed_at
		FROM signatures
		WHERE contract_id = $1 AND lower(signer_address) = lower($2)
	`, contractID, signerAddress)
	sig, err := scanSignature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select signature: %w", err)
	}
	return sig, nil
}

// AddSignature inserts sig and recomputes the contract status. The contract
// row is locked for the duration so concurrent signers serialise.
func (s *Postgres) AddSignature(ctx context.Context, sig *models.Signature) (models.Status, error) {
	if _, ok := txcontext.From(ctx); !ok {
		var status models.Status
		err := s.inTx(ctx, func(ctx context.Context) error {
			var err error
			status, err = s.AddSignature(ctx, sig)
			return err
		})
		return status, err
	}
	exec := txcontext.Or(ctx, s.db)

	var (
		status   string
		required int
	)
	err := exec.QueryRowContext(ctx,
		`SELECT status, required_signatures FROM contracts WHERE contract_id = $1 FOR UPDATE`,
		sig.ContractID,
	).Scan(&status, &required)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock contract: %w", err)
	}
	if models.Status(status) == models.StatusFullySigned {
		return "", fmt.Errorf("contract %s: %w", sig.ContractID, sentinel.ErrInvalidState)
	}

	evidence, err := evidenceColumn(sig.Evidence)
	if err != nil {
		return "", err
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO signatures (id, contract_id, signer_address, signer_name, signer_email, evidence_hash, evidence, tx_hash, signed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		sig.ID,
		sig.ContractID,
		sig.SignerAddress,
		nullString(sig.SignerName),
		nullString(sig.SignerEmail),
		sig.EvidenceHash,
		evidence,
		sig.Tx.StorageValue(),
		sig.SignedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("signer %s: %w", sig.SignerAddress, sentinel.ErrConflict)
		}
		return "", fmt.Errorf("insert signature: %w", err)
	}

	var count int
	if err := exec.QueryRowContext(ctx,
		`SELECT count(*) FROM signatures WHERE contract_id = $1`, sig.ContractID,
	).Scan(&count); err != nil {
		return "", fmt.Errorf("count signatures: %w", err)
	}
	next := models.StatusFor(count, required)
	if _, err := exec.ExecContext(ctx,
		`UPDATE contracts SET status = $2 WHERE contract_id = $1`, sig.ContractID, string(next),
	); err != nil {
		return "", fmt.Errorf("update contract status: %w", err)
	}
	return next, nil
}

func (s *Postgres) List(ctx context.Context, filter models.ListFilter) ([]*models.Contract, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.TenantID != "" {
		args = append(args, filter.TenantID)
		where = append(where, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	exec := txcontext.Or(ctx, s.db)
	var total int
	if err := exec.QueryRowContext(ctx, `SELECT count(*) FROM contracts`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contracts: %w", err)
	}

	query := `SELECT ` + contractColumns + ` FROM contracts` + clause + ` ORDER BY created_at DESC, contract_id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var out []*models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate contracts: %w", err)
	}

	for _, c := range out {
		sigs, err := s.signatures(ctx, c.ContractID)
		if err != nil {
			return nil, 0, err
		}
		c.Signatures = sigs
	}
	return out, total, nil
}

func (s *Postgres) signatures(ctx context.Context, contractID string) ([]models.Signature, error) {
	rows, err := txcontext.Or(ctx, s.db).QueryContext(ctx, `
		SELECT id, contract_id, signer_address, signer_name, signer_email, evidence_hash, evidence, tx_hash, signed_at
		FROM signatures
		WHERE contract_id = $1
		ORDER BY signed_at, id
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("select signatures: %w", err)
	}
	defer rows.Close()

	var out []models.Signature
	for rows.Next() {
		sig, err := scanSignature(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		out = append(out, *sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signatures: %w", err)
	}
	return out, nil
}

func (s *Postgres) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContract(row scanner) (*models.Contract, error) {
	var (
		c       models.Contract
		pointer sql.NullString
		txHash  sql.NullString
		status  string
		signers []string
	)
	if err := row.Scan(
		&c.ContractID,
		&c.TenantID,
		&c.TemplateID,
		&c.Version,
		&c.HashPDF,
		&pointer,
		pq.Array(&signers),
		&txHash,
		&status,
		&c.RequiredSignatures,
		&c.CreatedBy,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	c.Pointer = pointer.String
	c.Signers = signers
	c.Tx = models.ParseTxRef(nullablePtr(txHash))
	c.Status = models.Status(status)
	return &c, nil
}

func scanSignature(row scanner) (*models.Signature, error) {
	var (
		sig      models.Signature
		name     sql.NullString
		email    sql.NullString
		evidence []byte
		txHash   sql.NullString
	)
	if err := row.Scan(
		&sig.ID,
		&sig.ContractID,
		&sig.SignerAddress,
		&name,
		&email,
		&sig.EvidenceHash,
		&evidence,
		&txHash,
		&sig.SignedAt,
	); err != nil {
		return nil, err
	}
	sig.SignerName = name.String
	sig.SignerEmail = email.String
	sig.Tx = models.ParseTxRef(nullablePtr(txHash))
	if evidence != nil {
		decoded, err := hashing.DecodeJSON(evidence)
		if err != nil {
			return nil, err
		}
		sig.Evidence = decoded
	}
	return &sig, nil
}

func evidenceColumn(evidence any) (any, error) {
	if evidence == nil {
		return nil, nil
	}
	if raw, ok := evidence.(json.RawMessage); ok {
		return string(raw), nil
	}
	raw, err := hashing.CanonicalJSON(evidence)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullablePtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
