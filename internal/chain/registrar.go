package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"notary/internal/contracts/models"
	"notary/pkg/hashing"
)

// Backend is what the registrar needs from a chain node. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// RegistrarConfig holds the signing key and the default registry address.
type RegistrarConfig struct {
	PrivateKey      string
	RegistryAddress string
	ChainID         int64
	TxTimeout       time.Duration
}

// CreateParams describes a createContract call. Registry overrides the
// default registry address (per-tenant deployments).
type CreateParams struct {
	Registry   string
	ContractID string
	TemplateID int64
	Version    int64
	HashPDF    string
	Pointer    string
	Signers    []string
}

// SignedParams describes a markSigned call.
type SignedParams struct {
	Registry      string
	ContractID    string
	SignerAddress string
	HashEvidence  string
}

// Registrar submits registry transactions and waits for them to be mined.
// Without a signing key, or when the resolved registry is the zero address,
// calls return a disabled transaction reference without touching the network.
type Registrar struct {
	backend  Backend
	abi      abi.ABI
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	registry common.Address
	timeout  time.Duration
	metrics  *Metrics
	logger   *slog.Logger
}

type RegistrarOption func(*Registrar)

func WithRegistrarMetrics(m *Metrics) RegistrarOption {
	return func(r *Registrar) {
		r.metrics = m
	}
}

func WithRegistrarLogger(logger *slog.Logger) RegistrarOption {
	return func(r *Registrar) {
		r.logger = logger
	}
}

// NewRegistrar builds a registrar. A nil backend or an empty key yields a
// registrar that only returns disabled references.
func NewRegistrar(ctx context.Context, backend Backend, cfg RegistrarConfig, opts ...RegistrarOption) (*Registrar, error) {
	r := &Registrar{
		backend: backend,
		abi:     RegistryABI(),
		timeout: cfg.TxTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.timeout <= 0 {
		r.timeout = 2 * time.Minute
	}
	if cfg.RegistryAddress != "" {
		if !common.IsHexAddress(cfg.RegistryAddress) {
			return nil, fmt.Errorf("invalid registry address %q", cfg.RegistryAddress)
		}
		r.registry = common.HexToAddress(cfg.RegistryAddress)
	}

	keyHex := strings.TrimPrefix(cfg.PrivateKey, "0x")
	if backend == nil || keyHex == "" || strings.Trim(keyHex, "0") == "" {
		r.logger.WarnContext(ctx, "no chain signing key configured, registry writes are disabled")
		return r, nil
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse chain private key: %w", err)
	}
	r.key = key

	if cfg.ChainID > 0 {
		r.chainID = big.NewInt(cfg.ChainID)
	} else {
		id, err := backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch chain id: %w", err)
		}
		r.chainID = id
	}
	return r, nil
}

// RegisterCreate records a new contract on the registry.
func (r *Registrar) RegisterCreate(ctx context.Context, p CreateParams) (models.TxRef, error) {
	registry, ok := r.resolve(p.Registry)
	if !ok {
		r.metrics.IncrementRegistration(MethodCreateContract, "disabled")
		return models.DisabledTransaction(), nil
	}
	contractID, err := toBytes32(p.ContractID)
	if err != nil {
		return models.NoTransaction(), fmt.Errorf("contract id: %w", err)
	}
	hashPDF, err := toBytes32(p.HashPDF)
	if err != nil {
		return models.NoTransaction(), fmt.Errorf("pdf hash: %w", err)
	}
	signers := make([]common.Address, 0, len(p.Signers))
	for _, s := range p.Signers {
		if !common.IsHexAddress(s) {
			return models.NoTransaction(), fmt.Errorf("invalid signer address %q", s)
		}
		signers = append(signers, common.HexToAddress(s))
	}
	return r.transact(ctx, registry, MethodCreateContract,
		contractID, big.NewInt(p.TemplateID), big.NewInt(p.Version), hashPDF, p.Pointer, signers)
}

// RegisterSigned records a signature on the registry.
func (r *Registrar) RegisterSigned(ctx context.Context, p SignedParams) (models.TxRef, error) {
	registry, ok := r.resolve(p.Registry)
	if !ok {
		r.metrics.IncrementRegistration(MethodMarkSigned, "disabled")
		return models.DisabledTransaction(), nil
	}
	contractID, err := toBytes32(p.ContractID)
	if err != nil {
		return models.NoTransaction(), fmt.Errorf("contract id: %w", err)
	}
	hashEvidence, err := toBytes32(p.HashEvidence)
	if err != nil {
		return models.NoTransaction(), fmt.Errorf("evidence hash: %w", err)
	}
	if !common.IsHexAddress(p.SignerAddress) {
		return models.NoTransaction(), fmt.Errorf("invalid signer address %q", p.SignerAddress)
	}
	return r.transact(ctx, registry, MethodMarkSigned,
		contractID, common.HexToAddress(p.SignerAddress), hashEvidence)
}

// Enabled reports whether a call against the default registry would be submitted.
func (r *Registrar) Enabled() bool {
	_, ok := r.resolve("")
	return ok
}

func (r *Registrar) resolve(override string) (common.Address, bool) {
	if r.key == nil {
		return common.Address{}, false
	}
	addr := r.registry
	if override != "" && common.IsHexAddress(override) {
		addr = common.HexToAddress(override)
	}
	if addr == (common.Address{}) {
		return common.Address{}, false
	}
	return addr, true
}

func (r *Registrar) transact(ctx context.Context, registry common.Address, method string, args ...any) (models.TxRef, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	auth, err := bind.NewKeyedTransactorWithChainID(r.key, r.chainID)
	if err != nil {
		return models.NoTransaction(), fmt.Errorf("build transactor: %w", err)
	}
	auth.Context = ctx

	start := time.Now()
	contract := bind.NewBoundContract(registry, r.abi, r.backend, r.backend, r.backend)
	tx, err := contract.Transact(auth, method, args...)
	if err != nil {
		r.metrics.IncrementRegistration(method, "failed")
		return models.NoTransaction(), fmt.Errorf("submit %s: %w", method, err)
	}
	receipt, err := bind.WaitMined(ctx, r.backend, tx)
	r.metrics.ObserveRPC(method, time.Since(start))
	if err != nil {
		r.metrics.IncrementRegistration(method, "failed")
		return models.NoTransaction(), fmt.Errorf("wait for %s: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		r.metrics.IncrementRegistration(method, "failed")
		return models.NoTransaction(), fmt.Errorf("%s reverted in tx %s", method, receipt.TxHash.Hex())
	}

	r.metrics.IncrementRegistration(method, "recorded")
	r.logger.InfoContext(ctx, "registry transaction mined",
		"method", method,
		"tx_hash", receipt.TxHash.Hex(),
		"block", receipt.BlockNumber.Uint64(),
	)
	return models.RecordedTransaction(receipt.TxHash.Hex()), nil
}

var errNotBytes32 = errors.New("expected 0x-prefixed 32-byte hex")

func toBytes32(value string) ([32]byte, error) {
	if !hashing.IsBytes32(value) {
		return [32]byte{}, errNotBytes32
	}
	return common.HexToHash(value), nil
}
