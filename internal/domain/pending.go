package domain

import "time"

// ActionKind identifies one of the four mutating user actions. Each
// kind has its own independent transaction lifecycle slot.
type ActionKind string

const (
	ActionMint   ActionKind = "MINT"
	ActionList   ActionKind = "LIST"
	ActionDelist ActionKind = "DELIST"
	ActionBuy    ActionKind = "BUY"
)

// String returns the string representation of ActionKind.
func (k ActionKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a valid value.
func (k ActionKind) IsValid() bool {
	switch k {
	case ActionMint, ActionList, ActionDelist, ActionBuy:
		return true
	}
	return false
}

// TxStatus is the lifecycle state of a submitted transaction.
type TxStatus string

const (
	TxPending   TxStatus = "PENDING"
	TxConfirmed TxStatus = "CONFIRMED"
	TxFailed    TxStatus = "FAILED"
)

// Terminal reports whether the status is a terminal state. A failed
// transaction is never resumed; the user must re-trigger the action.
func (s TxStatus) Terminal() bool {
	return s == TxConfirmed || s == TxFailed
}

// PendingTransaction is the handle for one submitted mutation. Created
// on submission, terminal on confirmation or failure.
type PendingTransaction struct {
	Kind        ActionKind
	TxHash      string
	SubmittedAt time.Time
	Status      TxStatus
	FailReason  string // set when Status == TxFailed
}
