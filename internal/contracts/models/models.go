package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the signing progress of a contract.
type Status string

const (
	StatusCreated       Status = "created"
	StatusPartialSigned Status = "partial_signed"
	StatusFullySigned   Status = "fully_signed"
)

// DefaultRequiredSignatures applies when a contract is created without a threshold.
const DefaultRequiredSignatures = 2

// StatusFor derives the contract status from its signature count.
func StatusFor(signatures, required int) Status {
	switch {
	case signatures >= required:
		return StatusFullySigned
	case signatures > 0:
		return StatusPartialSigned
	default:
		return StatusCreated
	}
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusPartialSigned, StatusFullySigned:
		return true
	}
	return false
}

// Contract is the contract aggregate. Signatures are ordered by SignedAt.
type Contract struct {
	ContractID         string
	TenantID           string
	TemplateID         int64
	Version            int64
	HashPDF            string
	Pointer            string
	Signers            []string
	Tx                 TxRef
	Status             Status
	RequiredSignatures int
	CreatedAt          time.Time
	CreatedBy          string
	Signatures         []Signature
}

// Signature is a signing event recorded against a contract.
type Signature struct {
	ID            uuid.UUID
	ContractID    string
	SignerAddress string
	SignerName    string
	SignerEmail   string
	EvidenceHash  string
	// Evidence is the decoded evidence payload; nil when none was stored.
	Evidence any
	Tx       TxRef
	SignedAt time.Time
}

// HasEvidence reports whether an evidence payload was stored.
func (s Signature) HasEvidence() bool {
	switch v := s.Evidence.(type) {
	case nil:
		return false
	case string:
		return v != ""
	}
	return true
}

// ListFilter selects a page of contracts.
type ListFilter struct {
	TenantID string
	Status   Status
	Offset   int
	Limit    int
}
