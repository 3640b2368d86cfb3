package domain

import "math/big"

// Listing is the marketplace ledger's view of one token. A token the
// marketplace has never seen is implicitly not for sale.
// Invariant: ForSale implies PriceWei > 0.
type Listing struct {
	TokenID  uint64
	PriceWei *big.Int // smallest currency unit
	ForSale  bool
}
