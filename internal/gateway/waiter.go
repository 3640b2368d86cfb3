package gateway

import (
	"context"
	"fmt"
	"time"

	"nft-market-client/internal/ethrpc"
)

// DefaultPollInterval is how often ReceiptWaiter polls for a receipt.
const DefaultPollInterval = 2 * time.Second

// ReceiptWaiter implements TxWaiter by polling for the transaction
// receipt until it appears or ctx expires.
type ReceiptWaiter struct {
	client       ethrpc.Client
	pollInterval time.Duration
}

// NewReceiptWaiter creates a receipt-polling waiter. pollInterval <= 0
// uses DefaultPollInterval.
func NewReceiptWaiter(client ethrpc.Client, pollInterval time.Duration) *ReceiptWaiter {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &ReceiptWaiter{client: client, pollInterval: pollInterval}
}

// Compile-time interface check.
var _ TxWaiter = (*ReceiptWaiter)(nil)

// Await blocks until the transaction is mined. Returns a
// *ConfirmationError if it reverted. When ctx expires first, the
// transaction may still land later; the next reconciliation pass
// reveals the true state either way.
func (w *ReceiptWaiter) Await(ctx context.Context, txHash string) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status == ethrpc.ReceiptStatusReverted {
				return &ConfirmationError{TxHash: txHash, Reason: "reverted on-chain"}
			}
			return nil
		}
		// Receipt not available yet, or a transient read failure:
		// keep polling until ctx bounds the wait.

		select {
		case <-ctx.Done():
			return fmt.Errorf("await receipt %s: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}
