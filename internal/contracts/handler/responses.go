package handler

import (
	"time"

	"notary/internal/contracts/models"
	"notary/internal/contracts/service"
)

// ChainRef describes the on-chain registration of a record. TxHash is set
// only when a transaction was actually recorded.
type ChainRef struct {
	Kind   string `json:"kind"`
	TxHash string `json:"txHash,omitempty"`
}

func chainRef(ref models.TxRef) ChainRef {
	out := ChainRef{Kind: ref.Kind().String()}
	if hash, ok := ref.Hash(); ok {
		out.TxHash = hash
	}
	return out
}

// CreateContractResponse is returned by POST /contracts.
type CreateContractResponse struct {
	ContractID string        `json:"contractId"`
	Chain      ChainRef      `json:"chain"`
	Status     models.Status `json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// SignContractResponse is returned by POST /contracts/{id}/sign.
type SignContractResponse struct {
	ContractID  string        `json:"contractId"`
	SignatureID string        `json:"signatureId"`
	Chain       ChainRef      `json:"chain"`
	Status      models.Status `json:"status"`
	SignedAt    time.Time     `json:"signedAt"`
}

// SignatureResponse is the public view of a signature. Evidence payloads
// are never returned.
type SignatureResponse struct {
	ID            string    `json:"id"`
	SignerAddress string    `json:"signerAddress"`
	SignerName    string    `json:"signerName,omitempty"`
	SignerEmail   string    `json:"signerEmail,omitempty"`
	EvidenceHash  string    `json:"evidenceHash"`
	Chain         ChainRef  `json:"chain"`
	SignedAt      time.Time `json:"signedAt"`
}

// ContractResponse is the public view of a contract.
type ContractResponse struct {
	ContractID         string              `json:"contractId"`
	TemplateID         int64               `json:"templateId"`
	Version            int64               `json:"version"`
	HashPdf            string              `json:"hashPdf"`
	Pointer            string              `json:"pointer,omitempty"`
	Signers            []string            `json:"signers"`
	Status             models.Status       `json:"status"`
	RequiredSignatures int                 `json:"requiredSignatures"`
	Chain              ChainRef            `json:"chain"`
	CreatedAt          time.Time           `json:"createdAt"`
	CreatedBy          string              `json:"createdBy"`
	Signatures         []SignatureResponse `json:"signatures"`
}

// Pagination describes the page returned by GET /contracts.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// ListContractsResponse is returned by GET /contracts.
type ListContractsResponse struct {
	Data       []ContractResponse `json:"data"`
	Pagination Pagination         `json:"pagination"`
}

func fromContract(c *models.Contract) ContractResponse {
	signers := c.Signers
	if signers == nil {
		signers = []string{}
	}
	sigs := make([]SignatureResponse, 0, len(c.Signatures))
	for _, s := range c.Signatures {
		sigs = append(sigs, SignatureResponse{
			ID:            s.ID.String(),
			SignerAddress: s.SignerAddress,
			SignerName:    s.SignerName,
			SignerEmail:   s.SignerEmail,
			EvidenceHash:  s.EvidenceHash,
			Chain:         chainRef(s.Tx),
			SignedAt:      s.SignedAt,
		})
	}
	return ContractResponse{
		ContractID:         c.ContractID,
		TemplateID:         c.TemplateID,
		Version:            c.Version,
		HashPdf:            c.HashPDF,
		Pointer:            c.Pointer,
		Signers:            signers,
		Status:             c.Status,
		RequiredSignatures: c.RequiredSignatures,
		Chain:              chainRef(c.Tx),
		CreatedAt:          c.CreatedAt,
		CreatedBy:          c.CreatedBy,
		Signatures:         sigs,
	}
}

func fromList(result *service.ListResult) ListContractsResponse {
	data := make([]ContractResponse, 0, len(result.Contracts))
	for _, c := range result.Contracts {
		data = append(data, fromContract(c))
	}
	return ListContractsResponse{
		Data: data,
		Pagination: Pagination{
			Page:       result.Page,
			Limit:      result.Limit,
			Total:      result.Total,
			TotalPages: result.TotalPages,
		},
	}
}
