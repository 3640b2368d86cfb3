package ethrpc

import (
	"context"
	"math/big"
)

// Client defines the Ethereum JSON-RPC interface the gateway needs.
type Client interface {
	// CallContract executes a read-only contract call against latest state.
	CallContract(ctx context.Context, to string, data []byte) ([]byte, error)

	// SendTransaction submits a state-changing transaction and returns
	// its hash. Submission is attempted exactly once: a transaction that
	// reached the node must not be resubmitted.
	SendTransaction(ctx context.Context, tx TxArgs) (string, error)

	// TransactionReceipt retrieves the receipt for a transaction hash.
	// Returns nil if the transaction is not yet mined.
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)

	// BlockNumber retrieves the latest block number.
	BlockNumber(ctx context.Context) (uint64, error)

	// Accounts lists the addresses the connected node can sign for.
	Accounts(ctx context.Context) ([]string, error)
}

// TxArgs describes a transaction to submit.
type TxArgs struct {
	From     string
	To       string
	Data     []byte
	ValueWei *big.Int // nil for non-payable calls
}

// Receipt status values.
const (
	ReceiptStatusReverted = 0
	ReceiptStatusSuccess  = 1
)

// Receipt is a mined transaction's receipt.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	Status      uint64 // 1 success, 0 reverted
}

// Head is a new-block notification from the subscription stream.
type Head struct {
	Number uint64
	Hash   string
}
