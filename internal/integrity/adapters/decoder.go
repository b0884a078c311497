// Package adapters connects the integrity engine to the chain, storage and
// contract packages.
package adapters

import (
	"context"

	"notary/internal/chain"
	"notary/internal/integrity"
)

// ChainDecoder exposes a chain.TransactionDecoder as an integrity.Decoder.
type ChainDecoder struct {
	next chain.TransactionDecoder
}

func NewChainDecoder(next chain.TransactionDecoder) *ChainDecoder {
	return &ChainDecoder{next: next}
}

func (d *ChainDecoder) DecodeTransaction(ctx context.Context, txHash string) (*integrity.DecodedCall, error) {
	decoded, err := d.next.DecodeTransaction(ctx, txHash)
	if err != nil {
		return nil, err
	}
	return &integrity.DecodedCall{Name: decoded.Name, Args: decoded.Args}, nil
}

var _ integrity.Decoder = (*ChainDecoder)(nil)
