// Package chain talks to the contract registry deployed on an EVM chain:
// it decodes registry transactions for integrity verification and submits
// new contract and signature records.
package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"notary/pkg/platform/circuit"
	"notary/pkg/platform/sentinel"
)

// ErrUndecodable is returned when a transaction is not a registry call.
var ErrUndecodable = errors.New("cannot decode against registry interface")

// TxSource fetches transactions by hash. *ethclient.Client satisfies it.
type TxSource interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
}

// DecodedTransaction is a registry call with normalised arguments:
// bytes32 as 0x-prefixed hex, addresses checksummed, integers in decimal.
type DecodedTransaction struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Decoder decodes registry transactions fetched from the chain node.
type Decoder struct {
	source  TxSource
	abi     abi.ABI
	breaker *circuit.Breaker
	metrics *Metrics
	logger  *slog.Logger
}

type DecoderOption func(*Decoder)

func WithBreaker(b *circuit.Breaker) DecoderOption {
	return func(d *Decoder) {
		d.breaker = b
	}
}

func WithDecoderMetrics(m *Metrics) DecoderOption {
	return func(d *Decoder) {
		d.metrics = m
	}
}

func WithDecoderLogger(logger *slog.Logger) DecoderOption {
	return func(d *Decoder) {
		d.logger = logger
	}
}

func NewDecoder(source TxSource, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		source:  source,
		abi:     RegistryABI(),
		breaker: circuit.New("chain-rpc"),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DecodeTransaction fetches txHash and decodes its input against the registry ABI.
// A transaction the node does not know wraps sentinel.ErrNotFound; RPC failures
// while the breaker is open wrap sentinel.ErrUnavailable.
func (d *Decoder) DecodeTransaction(ctx context.Context, txHash string) (*DecodedTransaction, error) {
	hash, err := parseTxHash(txHash)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tx, _, err := d.source.TransactionByHash(ctx, hash)
	d.metrics.ObserveRPC("transaction_by_hash", time.Since(start))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			d.recordSuccess(ctx)
			return nil, fmt.Errorf("transaction %s: %w", txHash, sentinel.ErrNotFound)
		}
		d.metrics.IncrementRPCFailure("transaction_by_hash")
		if open := d.recordFailure(ctx); open {
			return nil, fmt.Errorf("fetch transaction %s: %w: %w", txHash, sentinel.ErrUnavailable, err)
		}
		return nil, fmt.Errorf("fetch transaction %s: %w", txHash, err)
	}
	d.recordSuccess(ctx)

	return d.Decode(tx.Data())
}

// Decode decodes raw call data against the registry ABI.
func (d *Decoder) Decode(data []byte) (*DecodedTransaction, error) {
	if len(data) < 4 {
		return nil, ErrUndecodable
	}
	method, err := d.abi.MethodById(data[:4])
	if err != nil {
		return nil, ErrUndecodable
	}
	raw := make(map[string]any, len(method.Inputs))
	if err := method.Inputs.UnpackIntoMap(raw, data[4:]); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUndecodable, err.Error())
	}

	args := make(map[string]any, len(raw))
	for name, value := range raw {
		args[name] = normalizeArg(value)
	}
	return &DecodedTransaction{Name: method.RawName, Args: args}, nil
}

func (d *Decoder) recordFailure(ctx context.Context) bool {
	open, change := d.breaker.RecordFailure()
	if change.Opened {
		d.metrics.SetBreakerOpen(true)
		d.logger.WarnContext(ctx, "chain rpc circuit opened", "breaker", d.breaker.Name())
	}
	return open
}

func (d *Decoder) recordSuccess(ctx context.Context) {
	_, change := d.breaker.RecordSuccess()
	if change.Closed {
		d.metrics.SetBreakerOpen(false)
		d.logger.InfoContext(ctx, "chain rpc circuit closed", "breaker", d.breaker.Name())
	}
}

func parseTxHash(txHash string) (common.Hash, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(txHash, "0x"), "0X")
	if len(trimmed) != 64 {
		return common.Hash{}, fmt.Errorf("invalid transaction hash %q", txHash)
	}
	if _, err := hex.DecodeString(trimmed); err != nil {
		return common.Hash{}, fmt.Errorf("invalid transaction hash %q", txHash)
	}
	return common.HexToHash(trimmed), nil
}

func normalizeArg(value any) any {
	switch v := value.(type) {
	case [32]byte:
		return "0x" + hex.EncodeToString(v[:])
	case common.Address:
		return v.Hex()
	case []common.Address:
		out := make([]string, len(v))
		for i, addr := range v {
			out[i] = addr.Hex()
		}
		return out
	case *big.Int:
		if v == nil {
			return "0"
		}
		return v.String()
	case []byte:
		return "0x" + hex.EncodeToString(v)
	default:
		return v
	}
}
