package gateway

import (
	"errors"
	"fmt"
)

// SubmissionError means the remote ledger rejected the call outright:
// the transaction never entered the pool and the remote state did not
// change.
type SubmissionError struct {
	Op  string // ledger operation, e.g. "safeMint"
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission rejected (%s): %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ConfirmationError means a submitted transaction reverted on-chain.
// The mutation did not happen; local views must keep their previous
// snapshots.
type ConfirmationError struct {
	TxHash string
	Reason string
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.TxHash, e.Reason)
}

// IsConfirmationError reports whether err is a ConfirmationError.
func IsConfirmationError(err error) bool {
	var ce *ConfirmationError
	return errors.As(err, &ce)
}
