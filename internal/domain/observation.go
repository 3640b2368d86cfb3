package domain

// ListingObservation is one (token, price) pair captured during a sale
// view rebuild. Corresponds to the listing_observations table in
// ClickHouse. Append-only: each pass contributes one row per listed
// token.
type ListingObservation struct {
	PassID     string // reconciliation pass identifier, uuid
	TokenID    uint64
	PriceWei   string // decimal string, wei
	ObservedAt int64  // Unix timestamp in milliseconds
}
