package gateway

import (
	"context"
	"fmt"
	"math/big"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/ethrpc"
)

// Marketplace ledger function signatures.
const (
	sigGetPrice       = "getPrice(uint256)"
	sigIsForSale      = "isForSale(uint256)"
	sigListNFTForSale = "listNFTForSale(uint256,uint256)"
	sigDelistNFT      = "delistNFT(uint256)"
	sigBuyNFT         = "buyNFT(uint256)"
)

// BoundMarketLedger implements MarketLedger against a deployed
// contract, bound to the connected account for mutations.
type BoundMarketLedger struct {
	client   ethrpc.Client
	contract string
	from     domain.Account
}

// NewBoundMarketLedger creates a marketplace ledger handle bound to an account.
func NewBoundMarketLedger(client ethrpc.Client, contract string, from domain.Account) *BoundMarketLedger {
	return &BoundMarketLedger{client: client, contract: contract, from: from}
}

// Compile-time interface check.
var _ MarketLedger = (*BoundMarketLedger)(nil)

// GetPrice returns the listed price in wei.
func (l *BoundMarketLedger) GetPrice(ctx context.Context, tokenID uint64) (*big.Int, error) {
	out, err := l.read(ctx, sigGetPrice, ethrpc.Uint64(tokenID))
	if err != nil {
		return nil, err
	}
	v, err := ethrpc.DecodeUint256(out)
	if err != nil {
		return nil, fmt.Errorf("decode getPrice: %w", err)
	}
	return v, nil
}

// IsForSale reports whether the token is currently listed.
func (l *BoundMarketLedger) IsForSale(ctx context.Context, tokenID uint64) (bool, error) {
	out, err := l.read(ctx, sigIsForSale, ethrpc.Uint64(tokenID))
	if err != nil {
		return false, err
	}
	v, err := ethrpc.DecodeBool(out)
	if err != nil {
		return false, fmt.Errorf("decode isForSale: %w", err)
	}
	return v, nil
}

// ListForSale submits a listing at the given wei price.
func (l *BoundMarketLedger) ListForSale(ctx context.Context, tokenID uint64, priceWei *big.Int) (string, error) {
	return l.submit(ctx, "listNFTForSale", sigListNFTForSale, nil,
		ethrpc.Uint64(tokenID), ethrpc.Uint(priceWei))
}

// Delist submits a delisting.
func (l *BoundMarketLedger) Delist(ctx context.Context, tokenID uint64) (string, error) {
	return l.submit(ctx, "delistNFT", sigDelistNFT, nil, ethrpc.Uint64(tokenID))
}

// Buy submits a purchase. priceWei travels as the transaction value:
// the contract settles the payment to the seller.
func (l *BoundMarketLedger) Buy(ctx context.Context, tokenID uint64, priceWei *big.Int) (string, error) {
	return l.submit(ctx, "buyNFT", sigBuyNFT, priceWei, ethrpc.Uint64(tokenID))
}

// submit encodes and sends a mutating transaction.
func (l *BoundMarketLedger) submit(ctx context.Context, op, sig string, valueWei *big.Int, args ...ethrpc.Arg) (string, error) {
	data, err := ethrpc.EncodeCall(sig, args...)
	if err != nil {
		return "", &SubmissionError{Op: op, Err: err}
	}

	hash, err := l.client.SendTransaction(ctx, ethrpc.TxArgs{
		From:     l.from.String(),
		To:       l.contract,
		Data:     data,
		ValueWei: valueWei,
	})
	if err != nil {
		return "", &SubmissionError{Op: op, Err: err}
	}
	return hash, nil
}

// read encodes and performs an eth_call against the contract.
func (l *BoundMarketLedger) read(ctx context.Context, sig string, args ...ethrpc.Arg) ([]byte, error) {
	data, err := ethrpc.EncodeCall(sig, args...)
	if err != nil {
		return nil, err
	}
	out, err := l.client.CallContract(ctx, l.contract, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sig, err)
	}
	return out, nil
}
