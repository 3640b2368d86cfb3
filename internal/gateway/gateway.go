// Package gateway is the typed call boundary to the two remote
// ledgers: the ownership ledger (token existence, ownership, metadata
// pointer) and the marketplace ledger (listing price, sale flag,
// settlement). Reads are pure queries against current remote state.
// Mutations return a pending-transaction hash on submission, before
// confirmation, and consume gas whether or not they later revert.
package gateway

import (
	"context"
	"math/big"

	"nft-market-client/internal/domain"
)

// NFTLedger is the ownership ledger boundary.
type NFTLedger interface {
	// TotalSupply returns the number of minted tokens.
	TotalSupply(ctx context.Context) (uint64, error)

	// TokenByIndex resolves an enumeration index to a token ID.
	TokenByIndex(ctx context.Context, index uint64) (uint64, error)

	// OwnerOf returns the current owner of a token.
	OwnerOf(ctx context.Context, tokenID uint64) (domain.Account, error)

	// TokenURI returns the metadata pointer for a token.
	TokenURI(ctx context.Context, tokenID uint64) (string, error)

	// SafeMint submits a mint for the given account and metadata CID.
	// Returns the transaction hash.
	SafeMint(ctx context.Context, to domain.Account, cid string) (string, error)
}

// MarketLedger is the marketplace ledger boundary.
type MarketLedger interface {
	// GetPrice returns the listed price in wei. Zero for tokens the
	// marketplace has never seen.
	GetPrice(ctx context.Context, tokenID uint64) (*big.Int, error)

	// IsForSale reports whether the token is currently listed.
	IsForSale(ctx context.Context, tokenID uint64) (bool, error)

	// ListForSale submits a listing at the given wei price.
	ListForSale(ctx context.Context, tokenID uint64, priceWei *big.Int) (string, error)

	// Delist submits a delisting.
	Delist(ctx context.Context, tokenID uint64) (string, error)

	// Buy submits a purchase, paying priceWei.
	Buy(ctx context.Context, tokenID uint64, priceWei *big.Int) (string, error)
}

// ReadListing reads the marketplace state for one token. The sale flag
// and price are separate contract reads; the pair is only as atomic as
// the two calls, which is acceptable because every view is rebuilt
// wholesale on the next pass anyway.
func ReadListing(ctx context.Context, m MarketLedger, tokenID uint64) (domain.Listing, error) {
	forSale, err := m.IsForSale(ctx, tokenID)
	if err != nil {
		return domain.Listing{}, err
	}
	price, err := m.GetPrice(ctx, tokenID)
	if err != nil {
		return domain.Listing{}, err
	}
	return domain.Listing{TokenID: tokenID, PriceWei: price, ForSale: forSale}, nil
}

// TxWaiter blocks until a submitted transaction reaches a terminal
// state. Returns nil on success and a *ConfirmationError when the
// transaction reverted on-chain. The caller bounds the wait through
// ctx; a submitted transaction cannot be retracted, only awaited.
type TxWaiter interface {
	Await(ctx context.Context, txHash string) error
}
