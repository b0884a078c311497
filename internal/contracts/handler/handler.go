// Package handler exposes the contract lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"notary/internal/contracts/models"
	"notary/internal/contracts/service"
	dErrors "notary/pkg/domain-errors"
	"notary/pkg/platform/httputil"
	"notary/pkg/requestcontext"
)

// Service defines the contract operations used by the handler.
type Service interface {
	Create(ctx context.Context, req service.CreateRequest) (*models.Contract, error)
	Sign(ctx context.Context, contractID string, req service.SignRequest) (*service.SignResult, error)
	Get(ctx context.Context, contractID string) (*models.Contract, error)
	List(ctx context.Context, status models.Status, page, limit int) (*service.ListResult, error)
}

// Handler wires contract endpoints to the contract service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts contract endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/contracts", h.HandleCreate)
	r.Get("/contracts", h.HandleList)
	r.Get("/contracts/{id}", h.HandleGet)
	r.Post("/contracts/{id}/sign", h.HandleSign)
}

// HandleCreate handles POST /contracts.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CreateContractRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	contract, err := h.service.Create(ctx, service.CreateRequest{
		ContractID:         req.ContractID,
		TemplateID:         req.TemplateID,
		Version:            req.Version,
		HashPDF:            req.HashPdfHex,
		Pointer:            req.Pointer,
		Signers:            req.Signers,
		RequiredSignatures: req.RequiredSignatures,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "contract creation failed",
			"request_id", requestID,
			"tenant_id", requestcontext.TenantID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "contract create handled",
		"request_id", requestID,
		"contract_id", contract.ContractID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, CreateContractResponse{
		ContractID: contract.ContractID,
		Chain:      chainRef(contract.Tx),
		Status:     contract.Status,
		CreatedAt:  contract.CreatedAt,
	})
}

// HandleSign handles POST /contracts/{id}/sign.
func (h *Handler) HandleSign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	contractID := chi.URLParam(r, "id")

	req, ok := httputil.DecodeAndPrepare[SignContractRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Sign(ctx, contractID, service.SignRequest{
		SignerAddress: req.SignerAddress,
		HashEvidence:  req.HashEvidenceHex,
		SignerName:    req.SignerName,
		SignerEmail:   req.SignerEmail,
		Evidence:      req.Evidence,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "contract signing failed",
			"request_id", requestID,
			"contract_id", contractID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, SignContractResponse{
		ContractID:  contractID,
		SignatureID: result.Signature.ID.String(),
		Chain:       chainRef(result.Signature.Tx),
		Status:      result.Status,
		SignedAt:    result.Signature.SignedAt,
	})
}

// HandleGet handles GET /contracts/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contractID := chi.URLParam(r, "id")

	contract, err := h.service.Get(ctx, contractID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to load contract",
				"request_id", requestcontext.RequestID(ctx),
				"contract_id", contractID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromContract(contract))
}

// HandleList handles GET /contracts?status=&page=&limit=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	page, err := intParam(query.Get("page"), "page")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := intParam(query.Get("limit"), "limit")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.List(ctx, models.Status(query.Get("status")), page, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list contracts",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromList(result))
}

// intParam parses an optional positive query parameter; absent yields 0.
func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, dErrors.New(dErrors.CodeValidation, name+" must be a positive integer")
	}
	return n, nil
}
