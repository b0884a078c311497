// Package integrity re-verifies stored contracts against their documents and
// their on-chain registry records.
//
// Engine.Verify never trusts a single source: the stored document hash is
// compared with a hash recomputed from the downloaded document and with the
// hash argument of the registry transaction, and each signature's evidence
// hash is compared with the recomputed evidence digest and its own registry
// transaction. Only a missing contract is returned as an error; every other
// irregularity becomes a check entry in the Report.
package integrity

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"notary/internal/contracts/models"
	"notary/internal/integrity/metrics"
	dErrors "notary/pkg/domain-errors"
	"notary/pkg/hashing"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/middleware/metadata"
	"notary/pkg/platform/sentinel"
	"notary/pkg/requestcontext"
)

// Registry functions and the argument each one anchors.
const (
	FunctionCreateContract = "createContract"
	FunctionMarkSigned     = "markSigned"
	ArgHashPDF             = "hashPdf"
	ArgHashEvidence        = "hashEvidence"
)

const defaultMaxConcurrency = 8

// Check labels used for metrics and spans.
const (
	checkPDFHash        = "pdf_hash"
	checkContractChain  = "contract_chain"
	checkEvidenceHash   = "evidence_hash"
	checkSignatureChain = "signature_chain"
)

const (
	msgPointerUnavailable   = "Pointer not available for this contract"
	msgPDFMismatch          = "Recomputed PDF hash does not match stored hash"
	msgNoEvidence           = "No evidence payload stored to recompute hash"
	msgEvidenceMismatch     = "Recomputed evidence hash does not match stored hash"
	msgUnspecifiedIssue     = "Integrity check reported an issue"
	msgDecoderUnavailable   = "chain decoder is not configured"
	msgDocumentsUnavailable = "document storage is not configured"
)

// callExpectation describes the registry call a stored TxRef should point to.
type callExpectation struct {
	check       string
	function    string
	arg         string
	subject     string
	noTxMsg     string
	disabledMsg string
	mismatchMsg string
}

var (
	contractCall = callExpectation{
		check:       checkContractChain,
		function:    FunctionCreateContract,
		arg:         ArgHashPDF,
		subject:     "contract creation",
		noTxMsg:     "No blockchain transaction hash stored for this contract",
		disabledMsg: "Contract recorded while blockchain integration was disabled (stubbed transaction)",
		mismatchMsg: "On-chain hash differs from stored hash",
	}
	signatureCall = callExpectation{
		check:       checkSignatureChain,
		function:    FunctionMarkSigned,
		arg:         ArgHashEvidence,
		subject:     "signature",
		noTxMsg:     "No blockchain transaction hash stored for this signature",
		disabledMsg: "Signature recorded while blockchain integration was disabled (stubbed transaction)",
		mismatchMsg: "On-chain evidence hash differs from stored hash",
	}
)

// Engine verifies contract integrity. It holds no mutable state and never
// writes to its collaborators, so a single Engine serves concurrent calls.
type Engine struct {
	store          ContractStore
	decoder        Decoder
	documents      DocumentFetcher
	rpcURL         string
	maxConcurrency int
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	auditor        AuditPublisher
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRPCURL sets the chain endpoint used to derive explorer links.
func WithRPCURL(rpcURL string) Option {
	return func(e *Engine) {
		e.rpcURL = rpcURL
	}
}

// WithMaxConcurrency bounds the number of checks run at once per Verify.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// WithAuditPublisher records every produced report as a compliance event.
// Emit failures are logged and never fail the verification.
func WithAuditPublisher(p AuditPublisher) Option {
	return func(e *Engine) {
		e.auditor = p
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// NewEngine wires the engine to its collaborators. decoder and documents may
// be nil when the corresponding integration is not configured; the affected
// checks then report an error instead of panicking.
func NewEngine(store ContractStore, decoder Decoder, documents DocumentFetcher, opts ...Option) *Engine {
	e := &Engine{
		store:          store,
		decoder:        decoder,
		documents:      documents,
		maxConcurrency: defaultMaxConcurrency,
		logger:         slog.New(slog.DiscardHandler),
		tracer:         otel.Tracer("notary/internal/integrity"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verify builds the integrity report for contractID. tenantID == "" verifies
// without tenant scoping.
func (e *Engine) Verify(ctx context.Context, contractID, tenantID string) (*Report, error) {
	ctx, span := e.tracer.Start(ctx, "integrity.Verify", trace.WithAttributes(
		attribute.String("contract.id", contractID),
		attribute.String("tenant.id", tenantID),
	))
	defer span.End()
	start := time.Now()

	contract, err := e.loadContract(ctx, contractID, tenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "contract lookup failed")
		return nil, err
	}

	documentTenant := tenantID
	if documentTenant == "" {
		documentTenant = contract.TenantID
	}

	var contractChecks ContractChecks
	signatures := make([]SignatureResult, len(contract.Signatures))

	g := new(errgroup.Group)
	g.SetLimit(e.maxConcurrency)
	g.Go(func() error {
		contractChecks.PDFHash = e.checkDocument(ctx, contract, documentTenant)
		return nil
	})
	g.Go(func() error {
		contractChecks.Blockchain = e.checkCall(ctx, contract.Tx, contract.HashPDF, contract.CreatedAt, contractCall)
		return nil
	})
	for i, sig := range contract.Signatures {
		g.Go(func() error {
			signatures[i] = e.checkSignature(ctx, sig)
			return nil
		})
	}
	// Checks never return errors; failures are recorded in their results.
	_ = g.Wait()

	report := e.assemble(ctx, contract, contractChecks, signatures)

	e.metrics.ObserveVerifyLatency(time.Since(start))
	e.metrics.IncrementReport(string(report.Status))
	span.SetAttributes(
		attribute.String("report.status", string(report.Status)),
		attribute.Int("report.total_checks", report.Summary.TotalChecks),
	)
	if report.Status == ReportAttentionNeeded {
		e.logger.WarnContext(ctx, "contract integrity needs attention",
			"request_id", requestcontext.RequestID(ctx),
			"contract_id", contract.ContractID,
			"tenant_id", contract.TenantID,
			"mismatch", report.Summary.Mismatch,
			"error", report.Summary.Error,
		)
	}
	e.record(ctx, report)
	return report, nil
}

func (e *Engine) record(ctx context.Context, report *Report) {
	if e.auditor == nil {
		return
	}
	action := audit.EventIntegrityVerified
	if report.Status == ReportAttentionNeeded {
		action = audit.EventIntegrityAttention
	}
	err := e.auditor.Emit(ctx, audit.Event{
		TenantID:   report.TenantID,
		ContractID: report.ContractID,
		UserID:     requestcontext.UserID(ctx),
		Subject:    report.ContractID,
		Action:     string(action),
		Decision:   string(report.Status),
		Reason:     strings.Join(report.Issues, "; "),
		RequestID:  requestcontext.RequestID(ctx),
		Timestamp:  report.AuditTimestamp,

		RequestingParty: metadata.AgentLabel(requestcontext.UserAgent(ctx)),
	})
	if err != nil {
		e.logger.WarnContext(ctx, "failed to record integrity audit event",
			"request_id", requestcontext.RequestID(ctx),
			"contract_id", report.ContractID,
			"error", err,
		)
	}
}

func (e *Engine) loadContract(ctx context.Context, contractID, tenantID string) (*models.Contract, error) {
	start := time.Now()
	contract, err := e.store.GetContractWithSignatures(ctx, contractID, tenantID)
	e.metrics.ObserveSourceLatency("store", time.Since(start))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("contract %s not found", contractID))
		}
		e.logger.ErrorContext(ctx, "failed to load contract for verification",
			"request_id", requestcontext.RequestID(ctx),
			"contract_id", contractID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contract")
	}
	if contract == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("contract %s not found", contractID))
	}
	return contract, nil
}

func (e *Engine) checkDocument(ctx context.Context, contract *models.Contract, tenantID string) CheckResult {
	result := CheckResult{Expected: contract.HashPDF}
	if contract.Pointer == "" {
		result.Status = CheckSkipped
		result.Message = msgPointerUnavailable
		return result
	}

	ctx, span := e.tracer.Start(ctx, "integrity.check_document")
	defer span.End()

	data, err := e.fetchDocument(ctx, contract.Pointer, tenantID)
	if err != nil {
		span.RecordError(err)
		result.Status = CheckError
		result.Message = fmt.Sprintf("Failed to download or hash contract PDF: %v", err)
		return result
	}

	computed := hashing.HashBytes(data)
	result.Actual = computed
	if hashing.Equal(computed, contract.HashPDF) {
		result.Status = CheckOK
	} else {
		result.Status = CheckMismatch
		result.Message = msgPDFMismatch
	}
	return result
}

func (e *Engine) fetchDocument(ctx context.Context, pointer, tenantID string) ([]byte, error) {
	if e.documents == nil {
		return nil, errors.New(msgDocumentsUnavailable)
	}
	start := time.Now()
	data, err := e.documents.GetDocumentBytes(ctx, pointer, tenantID)
	e.metrics.ObserveSourceLatency("document", time.Since(start))
	return data, err
}

func (e *Engine) checkSignature(ctx context.Context, sig models.Signature) SignatureResult {
	result := SignatureResult{
		SignatureID:   sig.ID.String(),
		SignerAddress: sig.SignerAddress,
		EvidenceHash:  sig.EvidenceHash,
		Checks: SignatureChecks{
			EvidenceHash: checkEvidence(sig),
			Blockchain:   e.checkCall(ctx, sig.Tx, sig.EvidenceHash, sig.SignedAt, signatureCall),
		},
	}
	if result.Checks.Blockchain.Status == CheckOK {
		result.ChainOfCustody = &SignatureCustody{
			TxHash:        result.Checks.Blockchain.TxHash,
			Timestamp:     sig.SignedAt,
			SignerAddress: sig.SignerAddress,
		}
	}
	return result
}

func checkEvidence(sig models.Signature) CheckResult {
	result := CheckResult{Expected: sig.EvidenceHash}
	if !sig.HasEvidence() {
		result.Status = CheckSkipped
		result.Message = msgNoEvidence
		return result
	}

	computed, err := hashing.HashEvidence(sig.Evidence)
	if err != nil {
		result.Status = CheckError
		result.Message = fmt.Sprintf("Failed to recompute evidence hash: %v", err)
		return result
	}

	result.Actual = computed
	if hashing.Equal(computed, sig.EvidenceHash) {
		result.Status = CheckOK
	} else {
		result.Status = CheckMismatch
		result.Message = msgEvidenceMismatch
	}
	return result
}

// checkCall verifies that ref points at the expected registry call and that
// the call anchored the expected hash.
func (e *Engine) checkCall(ctx context.Context, ref models.TxRef, expected string, recordedAt time.Time, want callExpectation) CheckResult {
	result := CheckResult{Expected: expected}
	switch ref.Kind() {
	case models.TxNone:
		result.Status = CheckSkipped
		result.Message = want.noTxMsg
		return result
	case models.TxDisabled:
		result.Status = CheckSkipped
		result.Message = want.disabledMsg
		return result
	}

	txHash, _ := ref.Hash()
	ts := recordedAt
	result.TxHash = txHash
	result.Timestamp = &ts
	result.BlockchainExplorerURL = ExplorerTxURL(e.rpcURL, txHash)

	ctx, span := e.tracer.Start(ctx, "integrity.check_chain", trace.WithAttributes(
		attribute.String("check", want.check),
		attribute.String("tx.hash", txHash),
	))
	defer span.End()

	call, err := e.decode(ctx, txHash)
	if err != nil {
		span.RecordError(err)
		result.Status = CheckError
		result.Message = fmt.Sprintf("Failed to decode blockchain transaction %s: %v", txHash, err)
		return result
	}

	if call.Name != want.function {
		result.Status = CheckMismatch
		result.Actual = call.Name
		result.Message = fmt.Sprintf("Unexpected function %q invoked for %s", call.Name, want.subject)
		return result
	}

	onChain := argString(call.Args[want.arg])
	result.Actual = onChain
	if hashing.Equal(onChain, expected) {
		result.Status = CheckOK
	} else {
		result.Status = CheckMismatch
		result.Message = want.mismatchMsg
	}
	return result
}

func (e *Engine) decode(ctx context.Context, txHash string) (*DecodedCall, error) {
	if e.decoder == nil {
		return nil, errors.New(msgDecoderUnavailable)
	}
	start := time.Now()
	call, err := e.decoder.DecodeTransaction(ctx, txHash)
	e.metrics.ObserveSourceLatency("chain", time.Since(start))
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, errors.New("decoder returned no call")
	}
	return call, nil
}

// argString renders a decoded argument the way hashes are stored.
func argString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case [32]byte:
		return "0x" + hex.EncodeToString(t[:])
	case []byte:
		return "0x" + hex.EncodeToString(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func (e *Engine) assemble(ctx context.Context, contract *models.Contract, contractChecks ContractChecks, signatures []SignatureResult) *Report {
	agg := aggregate{issues: []string{}}
	agg.register(e.metrics, checkPDFHash, contractChecks.PDFHash)
	agg.register(e.metrics, checkContractChain, contractChecks.Blockchain)
	allSignaturesVerified := true
	for _, sig := range signatures {
		agg.register(e.metrics, checkEvidenceHash, sig.Checks.EvidenceHash)
		agg.register(e.metrics, checkSignatureChain, sig.Checks.Blockchain)
		if sig.Checks.EvidenceHash.Status != CheckOK || sig.Checks.Blockchain.Status != CheckOK {
			allSignaturesVerified = false
		}
	}

	status := ReportOK
	if agg.summary.Mismatch > 0 || agg.summary.Error > 0 {
		status = ReportAttentionNeeded
	}

	return &Report{
		ContractID:     contract.ContractID,
		TenantID:       contract.TenantID,
		Status:         status,
		AuditTimestamp: requestcontext.Now(ctx).UTC(),
		ContractMetadata: ContractMetadata{
			CreatedAt:          contract.CreatedAt,
			CreatedBy:          contract.CreatedBy,
			Status:             string(contract.Status),
			RequiredSignatures: contract.RequiredSignatures,
			CurrentSignatures:  len(contract.Signatures),
		},
		Summary:    agg.summary,
		Issues:     agg.issues,
		Contract:   contractChecks,
		Signatures: signatures,
		LegalEvidence: LegalEvidence{
			PDFIntegrity:          contractChecks.PDFHash.Status == CheckOK,
			BlockchainRegistered:  contractChecks.Blockchain.Status == CheckOK,
			AllSignaturesVerified: allSignaturesVerified,
			ChainOfCustody:        custodyOf(contract),
		},
		BlockchainExplorerURL: contractChecks.Blockchain.BlockchainExplorerURL,
	}
}

func custodyOf(contract *models.Contract) ChainOfCustody {
	custody := ChainOfCustody{
		PDFUploaded:          contract.CreatedAt,
		BlockchainRegistered: registeredAt(contract.Tx, contract.CreatedAt),
		Signatures:           make([]CustodySignature, 0, len(contract.Signatures)),
	}
	for _, sig := range contract.Signatures {
		custody.Signatures = append(custody.Signatures, CustodySignature{
			SignerAddress:        sig.SignerAddress,
			SignedAt:             sig.SignedAt,
			BlockchainRegistered: registeredAt(sig.Tx, sig.SignedAt),
		})
	}
	return custody
}

func registeredAt(ref models.TxRef, at time.Time) *time.Time {
	if !ref.IsRecorded() {
		return nil
	}
	return &at
}

// aggregate tallies check outcomes in registration order.
type aggregate struct {
	summary Summary
	issues  []string
}

func (a *aggregate) register(m *metrics.Metrics, check string, result CheckResult) {
	a.summary.TotalChecks++
	switch result.Status {
	case CheckOK:
		a.summary.OK++
	case CheckMismatch:
		a.summary.Mismatch++
	case CheckError:
		a.summary.Error++
	default:
		a.summary.Skipped++
	}
	if result.Status == CheckMismatch || result.Status == CheckError {
		msg := result.Message
		if msg == "" {
			msg = msgUnspecifiedIssue
		}
		a.issues = append(a.issues, msg)
	}
	m.IncrementCheck(check, string(result.Status))
}
