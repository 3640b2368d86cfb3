package domain

import "math/big"

// OwnedToken is one entry of the owned view: a token record plus its
// metadata document. Metadata is nil when the fetch failed for that
// token.
type OwnedToken struct {
	Token    TokenRecord
	Metadata *Metadata
}

// OwnedView is the derived sequence of tokens owned by the current
// account, in ledger enumeration order. Rebuilt wholesale on each
// reconciliation pass, never patched in place.
type OwnedView []OwnedToken

// SaleEntry is one entry of the sale view.
type SaleEntry struct {
	TokenID  uint64
	PriceWei *big.Int
}

// SaleView is the derived sequence of tokens currently for sale,
// regardless of owner, in ledger enumeration order.
type SaleView []SaleEntry

// Clone returns a copy safe to hand out as a snapshot.
func (v OwnedView) Clone() OwnedView {
	if v == nil {
		return nil
	}
	out := make(OwnedView, len(v))
	copy(out, v)
	return out
}

// Clone returns a copy safe to hand out as a snapshot.
func (v SaleView) Clone() SaleView {
	if v == nil {
		return nil
	}
	out := make(SaleView, len(v))
	copy(out, v)
	return out
}
