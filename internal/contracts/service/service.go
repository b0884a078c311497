// Package service implements the contract lifecycle: creation, signing and
// retrieval. Every write is registered on-chain first and then persisted
// together with its compliance audit event.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"notary/internal/chain"
	"notary/internal/contracts/metrics"
	"notary/internal/contracts/models"
	dErrors "notary/pkg/domain-errors"
	"notary/pkg/hashing"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/middleware/metadata"
	"notary/pkg/platform/sentinel"
	"notary/pkg/requestcontext"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// Service orchestrates contract creation and signing.
type Service struct {
	store     Store
	registrar Registrar
	tenants   TenantResolver
	auditor   AuditPublisher
	tx        TxRunner
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func New(store Store, registrar Registrar, tenants TenantResolver, opts ...Option) *Service {
	s := &Service{
		store:     store,
		registrar: registrar,
		tenants:   tenants,
		tx:        passthroughTx{},
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// CreateRequest describes a contract to register.
type CreateRequest struct {
	ContractID         string
	TemplateID         int64
	Version            int64
	HashPDF            string
	Pointer            string
	Signers            []string
	RequiredSignatures int
}

// SignRequest describes a signature to record.
type SignRequest struct {
	SignerAddress string
	HashEvidence  string
	SignerName    string
	SignerEmail   string
	Evidence      json.RawMessage
}

// SignResult is the outcome of a successful Sign.
type SignResult struct {
	Contract  *models.Contract
	Signature *models.Signature
	Status    models.Status
}

// ListResult is one page of contracts.
type ListResult struct {
	Contracts  []*models.Contract
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// ContractIDFor returns given unchanged when it is already 0x-prefixed,
// otherwise the bytes32 digest of given (or of a fresh UUID when empty).
func ContractIDFor(given string) string {
	given = strings.TrimSpace(given)
	if strings.HasPrefix(given, "0x") {
		return given
	}
	if given == "" {
		given = uuid.NewString()
	}
	return hashing.IDToBytes32(given)
}

// Create registers a contract on-chain and persists it with status created.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Contract, error) {
	if !hashing.IsBytes32(req.HashPDF) {
		return nil, dErrors.New(dErrors.CodeValidation, "hashPdfHex must be a valid bytes32 hex string (0x + 64 hex characters)")
	}
	tenantID := tenantOf(ctx)
	contractID := ContractIDFor(req.ContractID)
	if !hashing.IsBytes32(contractID) {
		return nil, dErrors.New(dErrors.CodeValidation, "contractId must be a bytes32 hex string when 0x-prefixed")
	}
	required := req.RequiredSignatures
	if required <= 0 {
		required = models.DefaultRequiredSignatures
	}

	if _, err := s.store.GetContractWithSignatures(ctx, contractID, ""); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "contract already exists")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for existing contract")
	}

	resolved, err := s.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve tenant")
	}

	start := time.Now()
	txRef, err := s.registrar.RegisterCreate(ctx, chain.CreateParams{
		Registry:   resolved.ChainRegistryAddress,
		ContractID: contractID,
		TemplateID: req.TemplateID,
		Version:    req.Version,
		HashPDF:    req.HashPDF,
		Pointer:    req.Pointer,
		Signers:    req.Signers,
	})
	s.metrics.ObserveRegistration("create", time.Since(start))
	if err != nil {
		return nil, registrationError(err)
	}

	createdBy := requestcontext.UserID(ctx)
	if createdBy == "" {
		createdBy = "system"
	}
	contract := &models.Contract{
		ContractID:         contractID,
		TenantID:           tenantID,
		TemplateID:         req.TemplateID,
		Version:            req.Version,
		HashPDF:            req.HashPDF,
		Pointer:            req.Pointer,
		Signers:            req.Signers,
		Tx:                 txRef,
		Status:             models.StatusCreated,
		RequiredSignatures: required,
		CreatedAt:          requestcontext.Now(ctx).UTC(),
		CreatedBy:          createdBy,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, contract); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventContractCreated, contract.ContractID, contract.Tx.Kind().String())
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "contract already exists")
		}
		s.logger.ErrorContext(ctx, "failed to persist contract",
			"request_id", requestcontext.RequestID(ctx),
			"contract_id", contractID,
			"tx", txRef.String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist contract")
	}

	s.metrics.IncrementCreated(txRef.Kind().String())
	s.logger.InfoContext(ctx, "contract created",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", tenantID,
		"contract_id", contractID,
		"chain", txRef.Kind().String(),
	)
	return contract, nil
}

// Sign registers a signature on-chain and persists it, recomputing the
// contract status in the same unit of work.
func (s *Service) Sign(ctx context.Context, contractID string, req SignRequest) (*SignResult, error) {
	if !hashing.IsBytes32(req.HashEvidence) {
		return nil, dErrors.New(dErrors.CodeValidation, "hashEvidenceHex must be a valid bytes32 hex string (0x + 64 hex characters)")
	}
	tenantID := tenantOf(ctx)

	contract, err := s.store.GetContractWithSignatures(ctx, contractID, tenantID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "contract not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contract")
	}
	if contract.Status == models.StatusFullySigned {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contract is already fully signed")
	}
	if _, err := s.store.FindSignature(ctx, contractID, req.SignerAddress); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "signer has already signed this contract")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing signature")
	}

	evidence, err := hashing.DecodeJSON(req.Evidence)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "evidence must be valid JSON")
	}

	resolved, err := s.tenants.Resolve(ctx, contract.TenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve tenant")
	}

	start := time.Now()
	txRef, err := s.registrar.RegisterSigned(ctx, chain.SignedParams{
		Registry:      resolved.ChainRegistryAddress,
		ContractID:    contractID,
		SignerAddress: req.SignerAddress,
		HashEvidence:  req.HashEvidence,
	})
	s.metrics.ObserveRegistration("sign", time.Since(start))
	if err != nil {
		return nil, registrationError(err)
	}

	sig := &models.Signature{
		ID:            uuid.New(),
		ContractID:    contractID,
		SignerAddress: req.SignerAddress,
		SignerName:    req.SignerName,
		SignerEmail:   req.SignerEmail,
		EvidenceHash:  req.HashEvidence,
		Evidence:      evidence,
		Tx:            txRef,
		SignedAt:      requestcontext.Now(ctx).UTC(),
	}

	var status models.Status
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		status, err = s.store.AddSignature(ctx, sig)
		if err != nil {
			return err
		}
		return s.emit(ctx, audit.EventContractSigned, contractID, string(status))
	})
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrConflict):
		return nil, dErrors.New(dErrors.CodeConflict, "signer has already signed this contract")
	case errors.Is(err, sentinel.ErrInvalidState):
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contract is already fully signed")
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "contract not found")
	default:
		s.logger.ErrorContext(ctx, "failed to persist signature",
			"request_id", requestcontext.RequestID(ctx),
			"contract_id", contractID,
			"tx", txRef.String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist signature")
	}

	contract.Status = status
	contract.Signatures = append(contract.Signatures, *sig)
	s.metrics.IncrementSigned(string(status))
	s.logger.InfoContext(ctx, "contract signed",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", contract.TenantID,
		"contract_id", contractID,
		"status", status,
	)
	return &SignResult{Contract: contract, Signature: sig, Status: status}, nil
}

// Get returns a tenant-scoped contract with its signatures.
func (s *Service) Get(ctx context.Context, contractID string) (*models.Contract, error) {
	contract, err := s.store.GetContractWithSignatures(ctx, contractID, tenantOf(ctx))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "contract not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contract")
	}
	return contract, nil
}

// List returns a page of the tenant's contracts, newest first. Page is
// 1-based; limit defaults to 10 and is capped at 100.
func (s *Service) List(ctx context.Context, status models.Status, page, limit int) (*ListResult, error) {
	if status != "" && !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown status filter")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	limit = min(limit, maxPageLimit)

	contracts, total, err := s.store.List(ctx, models.ListFilter{
		TenantID: tenantOf(ctx),
		Status:   status,
		Offset:   (page - 1) * limit,
		Limit:    limit,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list contracts")
	}
	return &ListResult{
		Contracts:  contracts,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, contractID, decision string) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Emit(ctx, audit.Event{
		TenantID:        tenantOf(ctx),
		ContractID:      contractID,
		UserID:          requestcontext.UserID(ctx),
		Action:          string(event),
		Decision:        decision,
		RequestID:       requestcontext.RequestID(ctx),
		RequestingParty: metadata.AgentLabel(requestcontext.UserAgent(ctx)),
		Timestamp:       requestcontext.Now(ctx),
	})
}

func tenantOf(ctx context.Context) string {
	if id := requestcontext.TenantID(ctx); id != "" {
		return id
	}
	return requestcontext.DefaultTenantID
}

func registrationError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "timed out waiting for registry transaction")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "chain registry unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register on chain")
	}
}
