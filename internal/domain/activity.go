package domain

// ActivityRecord is the durable trace of one submitted mutation.
// Corresponds to the activity_log table in PostgreSQL.
type ActivityRecord struct {
	ActivityID  string     // PRIMARY KEY, uuid
	Kind        ActionKind // MINT | LIST | DELIST | BUY
	Account     Account    // submitting account
	TokenID     *uint64    // nil for mint (id is assigned on-chain)
	PriceWei    *string    // decimal string of the wei amount, nil when no price
	CID         *string    // metadata CID, mint only
	TxHash      string     // submission handle from the ledger
	Status      TxStatus   // terminal status of the transaction
	FailReason  *string    // nullable, set for FAILED records
	SubmittedAt int64      // Unix timestamp in milliseconds
	ResolvedAt  int64      // Unix timestamp in milliseconds
}
