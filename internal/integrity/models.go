package integrity

import "time"

// CheckStatus is the outcome of a single integrity check.
type CheckStatus string

const (
	CheckOK       CheckStatus = "ok"
	CheckMismatch CheckStatus = "mismatch"
	CheckError    CheckStatus = "error"
	CheckSkipped  CheckStatus = "skipped"
)

// ReportStatus is the overall verdict of a report.
type ReportStatus string

const (
	ReportOK              ReportStatus = "ok"
	ReportAttentionNeeded ReportStatus = "attention-needed"
)

// CheckResult is one comparison between a stored value and a recomputed or
// on-chain value.
type CheckResult struct {
	Status                CheckStatus `json:"status"`
	Expected              string      `json:"expected"`
	Actual                string      `json:"actual,omitempty"`
	Message               string      `json:"message,omitempty"`
	TxHash                string      `json:"txHash,omitempty"`
	Timestamp             *time.Time  `json:"timestamp,omitempty"`
	BlockchainExplorerURL string      `json:"blockchainExplorerUrl,omitempty"`
}

// Summary counts check outcomes. OK+Mismatch+Error+Skipped == TotalChecks.
type Summary struct {
	OK          int `json:"ok"`
	Mismatch    int `json:"mismatch"`
	Error       int `json:"error"`
	Skipped     int `json:"skipped"`
	TotalChecks int `json:"totalChecks"`
}

type ContractChecks struct {
	PDFHash    CheckResult `json:"pdfHash"`
	Blockchain CheckResult `json:"blockchain"`
}

type SignatureChecks struct {
	EvidenceHash CheckResult `json:"evidenceHash"`
	Blockchain   CheckResult `json:"blockchain"`
}

// SignatureCustody is attached to a signature whose on-chain record verified.
type SignatureCustody struct {
	TxHash        string    `json:"txHash"`
	Timestamp     time.Time `json:"timestamp"`
	SignerAddress string    `json:"signerAddress"`
}

type SignatureResult struct {
	SignatureID    string            `json:"signatureId"`
	SignerAddress  string            `json:"signerAddress"`
	EvidenceHash   string            `json:"evidenceHash"`
	Checks         SignatureChecks   `json:"checks"`
	ChainOfCustody *SignatureCustody `json:"chainOfCustody,omitempty"`
}

type ContractMetadata struct {
	CreatedAt          time.Time `json:"createdAt"`
	CreatedBy          string    `json:"createdBy"`
	Status             string    `json:"status"`
	RequiredSignatures int       `json:"requiredSignatures"`
	CurrentSignatures  int       `json:"currentSignatures"`
}

type CustodySignature struct {
	SignerAddress        string     `json:"signerAddress"`
	SignedAt             time.Time  `json:"signedAt"`
	BlockchainRegistered *time.Time `json:"blockchainRegistered,omitempty"`
}

type ChainOfCustody struct {
	PDFUploaded          time.Time          `json:"pdfUploaded"`
	BlockchainRegistered *time.Time         `json:"blockchainRegistered,omitempty"`
	Signatures           []CustodySignature `json:"signatures"`
}

type LegalEvidence struct {
	PDFIntegrity          bool           `json:"pdfIntegrity"`
	BlockchainRegistered  bool           `json:"blockchainRegistered"`
	AllSignaturesVerified bool           `json:"allSignaturesVerified"`
	ChainOfCustody        ChainOfCustody `json:"chainOfCustody"`
}

// Report is the contract integrity report returned by Engine.Verify.
type Report struct {
	ContractID            string            `json:"contractId"`
	TenantID              string            `json:"tenantId"`
	Status                ReportStatus      `json:"status"`
	AuditTimestamp        time.Time         `json:"auditTimestamp"`
	ContractMetadata      ContractMetadata  `json:"contractMetadata"`
	Summary               Summary           `json:"summary"`
	Issues                []string          `json:"issues"`
	Contract              ContractChecks    `json:"contract"`
	Signatures            []SignatureResult `json:"signatures"`
	LegalEvidence         LegalEvidence     `json:"legalEvidence"`
	BlockchainExplorerURL string            `json:"blockchainExplorerUrl,omitempty"`
}
