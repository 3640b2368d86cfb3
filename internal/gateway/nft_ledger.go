package gateway

import (
	"context"
	"fmt"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/ethrpc"
)

// Ownership ledger function signatures (ERC-721 Enumerable +
// URIStorage mint).
const (
	sigTotalSupply  = "totalSupply()"
	sigTokenByIndex = "tokenByIndex(uint256)"
	sigOwnerOf      = "ownerOf(uint256)"
	sigTokenURI     = "tokenURI(uint256)"
	sigSafeMint     = "safeMint(address,string)"
)

// BoundNFTLedger implements NFTLedger against a deployed contract,
// bound to the connected account for mutations.
type BoundNFTLedger struct {
	client   ethrpc.Client
	contract string
	from     domain.Account
}

// NewBoundNFTLedger creates an NFT ledger handle bound to an account.
func NewBoundNFTLedger(client ethrpc.Client, contract string, from domain.Account) *BoundNFTLedger {
	return &BoundNFTLedger{client: client, contract: contract, from: from}
}

// Compile-time interface check.
var _ NFTLedger = (*BoundNFTLedger)(nil)

// TotalSupply returns the number of minted tokens.
func (l *BoundNFTLedger) TotalSupply(ctx context.Context) (uint64, error) {
	out, err := l.read(ctx, sigTotalSupply)
	if err != nil {
		return 0, err
	}
	v, err := ethrpc.DecodeUint256(out)
	if err != nil {
		return 0, fmt.Errorf("decode totalSupply: %w", err)
	}
	return v.Uint64(), nil
}

// TokenByIndex resolves an enumeration index to a token ID.
func (l *BoundNFTLedger) TokenByIndex(ctx context.Context, index uint64) (uint64, error) {
	out, err := l.read(ctx, sigTokenByIndex, ethrpc.Uint64(index))
	if err != nil {
		return 0, err
	}
	v, err := ethrpc.DecodeUint256(out)
	if err != nil {
		return 0, fmt.Errorf("decode tokenByIndex: %w", err)
	}
	return v.Uint64(), nil
}

// OwnerOf returns the current owner of a token.
func (l *BoundNFTLedger) OwnerOf(ctx context.Context, tokenID uint64) (domain.Account, error) {
	out, err := l.read(ctx, sigOwnerOf, ethrpc.Uint64(tokenID))
	if err != nil {
		return domain.NoAccount, err
	}
	addr, err := ethrpc.DecodeAddress(out)
	if err != nil {
		return domain.NoAccount, fmt.Errorf("decode ownerOf: %w", err)
	}
	return domain.Account(addr), nil
}

// TokenURI returns the metadata pointer for a token.
func (l *BoundNFTLedger) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	out, err := l.read(ctx, sigTokenURI, ethrpc.Uint64(tokenID))
	if err != nil {
		return "", err
	}
	uri, err := ethrpc.DecodeString(out)
	if err != nil {
		return "", fmt.Errorf("decode tokenURI: %w", err)
	}
	return uri, nil
}

// SafeMint submits a mint transaction and returns its hash.
func (l *BoundNFTLedger) SafeMint(ctx context.Context, to domain.Account, cid string) (string, error) {
	data, err := ethrpc.EncodeCall(sigSafeMint, ethrpc.Addr(to.String()), ethrpc.Str(cid))
	if err != nil {
		return "", &SubmissionError{Op: "safeMint", Err: err}
	}

	hash, err := l.client.SendTransaction(ctx, ethrpc.TxArgs{
		From: l.from.String(),
		To:   l.contract,
		Data: data,
	})
	if err != nil {
		return "", &SubmissionError{Op: "safeMint", Err: err}
	}
	return hash, nil
}

// read encodes and performs an eth_call against the contract.
func (l *BoundNFTLedger) read(ctx context.Context, sig string, args ...ethrpc.Arg) ([]byte, error) {
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
