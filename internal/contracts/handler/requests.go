package handler

import (
	"encoding/json"
	"net/mail"
	"regexp"
	"strings"

	dErrors "notary/pkg/domain-errors"
	"notary/pkg/hashing"
	platformStrings "notary/pkg/platform/strings"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

const (
	maxPointerLength = 1024
	maxSigners       = 32
	maxNameLength    = 200
)

// CreateContractRequest is the HTTP request body for POST /contracts.
type CreateContractRequest struct {
	ContractID         string   `json:"contractId,omitempty"`
	TemplateID         int64    `json:"templateId"`
	Version            int64    `json:"version"`
	HashPdfHex         string   `json:"hashPdfHex"`
	Pointer            string   `json:"pointer,omitempty"`
	Signers            []string `json:"signers,omitempty"`
	RequiredSignatures int      `json:"requiredSignatures,omitempty"`
}

func (r *CreateContractRequest) Normalize() {
	r.ContractID = strings.TrimSpace(r.ContractID)
	r.HashPdfHex = strings.TrimSpace(r.HashPdfHex)
	r.Pointer = strings.TrimSpace(r.Pointer)
	r.Signers = platformStrings.DedupeAndTrim(r.Signers)
}

// Validate implements httputil.Validatable.
func (r *CreateContractRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Pointer) > maxPointerLength {
		return dErrors.New(dErrors.CodeValidation, "pointer must be at most 1024 characters")
	}
	if len(r.Signers) > maxSigners {
		return dErrors.New(dErrors.CodeValidation, "at most 32 signers are allowed")
	}
	if r.TemplateID < 1 {
		return dErrors.New(dErrors.CodeValidation, "templateId must be at least 1")
	}
	if r.Version < 1 {
		return dErrors.New(dErrors.CodeValidation, "version must be at least 1")
	}
	if !hashing.IsBytes32(r.HashPdfHex) {
		return dErrors.New(dErrors.CodeValidation, "hashPdfHex must be a valid bytes32 hex string (0x + 64 hex characters)")
	}
	if r.RequiredSignatures < 0 {
		return dErrors.New(dErrors.CodeValidation, "requiredSignatures must not be negative")
	}
	for _, s := range r.Signers {
		if !addressPattern.MatchString(s) {
			return dErrors.New(dErrors.CodeValidation, "signers must be valid Ethereum addresses (0x + 40 hex characters)")
		}
	}
	return nil
}

// SignContractRequest is the HTTP request body for POST /contracts/{id}/sign.
type SignContractRequest struct {
	SignerAddress   string          `json:"signerAddress"`
	HashEvidenceHex string          `json:"hashEvidenceHex"`
	SignerName      string          `json:"signerName,omitempty"`
	SignerEmail     string          `json:"signerEmail,omitempty"`
	Evidence        json.RawMessage `json:"evidence,omitempty"`
}

func (r *SignContractRequest) Normalize() {
	r.SignerAddress = strings.TrimSpace(r.SignerAddress)
	r.HashEvidenceHex = strings.TrimSpace(r.HashEvidenceHex)
	r.SignerName = strings.TrimSpace(r.SignerName)
	r.SignerEmail = strings.TrimSpace(r.SignerEmail)
	if strings.TrimSpace(string(r.Evidence)) == "null" {
		r.Evidence = nil
	}
}

// Validate implements httputil.Validatable.
func (r *SignContractRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.SignerName) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "signerName must be at most 200 characters")
	}
	if !addressPattern.MatchString(r.SignerAddress) {
		return dErrors.New(dErrors.CodeValidation, "signerAddress must be a valid Ethereum address (0x + 40 hex characters)")
	}
	if !hashing.IsBytes32(r.HashEvidenceHex) {
		return dErrors.New(dErrors.CodeValidation, "hashEvidenceHex must be a valid bytes32 hex string (0x + 64 hex characters)")
	}
	if r.SignerEmail != "" {
		if _, err := mail.ParseAddress(r.SignerEmail); err != nil {
			return dErrors.New(dErrors.CodeValidation, "signerEmail must be a valid email address")
		}
	}
	return nil
}
