package domain

// TokenRecord is one token as the ownership ledger reports it. The
// ledger is the source of truth; the client never mutates a record
// directly, only through mint and transfer calls.
type TokenRecord struct {
	TokenID     uint64  // unique, immutable once minted
	Owner       Account // current owner per the ownership ledger
	MetadataURI string  // pointer to the metadata document
}
