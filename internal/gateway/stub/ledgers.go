// Package stub provides in-memory ownership and marketplace ledgers
// with contract-like settlement semantics, for tests that need the
// full submit/confirm/re-read cycle without a node.
package stub

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/gateway"
)

// opKind identifies a queued mutation.
type opKind int

const (
	opMint opKind = iota
	opList
	opDelist
	opBuy
)

// pendingOp is a submitted, not yet confirmed mutation.
type pendingOp struct {
	kind    opKind
	caller  domain.Account
	tokenID uint64
	price   *big.Int
	cid     string
	applied bool
}

// Chain is the shared remote state both stub ledgers mutate. Mutations
// queue on submission and apply on Await, so local code observes the
// submit-then-confirm gap exactly as against a real node.
type Chain struct {
	mu       sync.Mutex
	nextID   uint64
	order    []uint64 // enumeration order
	owners   map[uint64]domain.Account
	uris     map[uint64]string
	prices   map[uint64]*big.Int
	forSale  map[uint64]bool
	txSeq    uint64
	pending  map[string]*pendingOp
	metadata string // tokenURI prefix applied at mint

	// Failure knobs
	failNextSubmit  error
	failNextConfirm string

	// confirmGate, when set, blocks Await until the channel closes.
	confirmGate chan struct{}

	// readErr, when set, fails every read call.
	readErr error
}

// NewChain creates an empty stub chain.
func NewChain() *Chain {
	return &Chain{
		owners:   make(map[uint64]domain.Account),
		uris:     make(map[uint64]string),
		prices:   make(map[uint64]*big.Int),
		forSale:  make(map[uint64]bool),
		pending:  make(map[string]*pendingOp),
		metadata: "ipfs://",
	}
}

// SeedNextTokenID sets the ID the next mint will assign.
func (c *Chain) SeedNextTokenID(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID = id
}

// SeedToken installs an already-minted token.
func (c *Chain) SeedToken(id uint64, owner domain.Account, uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = append(c.order, id)
	c.owners[id] = owner
	c.uris[id] = uri
	if id >= c.nextID {
		c.nextID = id + 1
	}
}

// SeedListing installs an existing listing.
func (c *Chain) SeedListing(id uint64, priceWei *big.Int, forSale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[id] = new(big.Int).Set(priceWei)
	c.forSale[id] = forSale
}

// FailNextSubmission makes the next mutating call fail at submission.
func (c *Chain) FailNextSubmission(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNextSubmit = err
}

// FailNextConfirmation makes the next awaited transaction revert.
func (c *Chain) FailNextConfirmation(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNextConfirm = reason
}

// HoldConfirmations blocks every Await until the returned release
// function is called.
func (c *Chain) HoldConfirmations() (release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gate := make(chan struct{})
	c.confirmGate = gate
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.confirmGate == gate {
			c.confirmGate = nil
		}
		close(gate)
	}
}

// SetReadError makes every read call fail with err (nil restores reads).
func (c *Chain) SetReadError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

// Bind returns ledger handles bound to an account, the way a wallet
// connection yields signing-capable handles.
func (c *Chain) Bind(account domain.Account) *Ledgers {
	return &Ledgers{chain: c, account: account}
}

// submit queues a mutation and returns its transaction hash.
func (c *Chain) submit(op *pendingOp) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failNextSubmit != nil {
		err := c.failNextSubmit
		c.failNextSubmit = nil
		return "", &gateway.SubmissionError{Op: "stub", Err: err}
	}

	c.txSeq++
	hash := fmt.Sprintf("0xstub%04d", c.txSeq)
	c.pending[hash] = op
	return hash, nil
}

// apply settles a confirmed mutation against chain state. Returns a
// revert reason for contract-rule violations.
func (c *Chain) apply(op *pendingOp) string {
	switch op.kind {
	case opMint:
		id := c.nextID
		c.nextID++
		c.order = append(c.order, id)
		c.owners[id] = op.caller
		c.uris[id] = c.metadata + op.cid

	case opList:
		owner, ok := c.owners[op.tokenID]
		if !ok {
			return "token does not exist"
		}
		if !owner.Equal(op.caller) {
			return "caller is not the owner"
		}
		if op.price == nil || op.price.Sign() <= 0 {
			return "price must be positive"
		}
		c.prices[op.tokenID] = new(big.Int).Set(op.price)
		c.forSale[op.tokenID] = true

	case opDelist:
		if !c.forSale[op.tokenID] {
			return "token is not for sale"
		}
		c.forSale[op.tokenID] = false

	case opBuy:
		if !c.forSale[op.tokenID] {
			return "token is not for sale"
		}
		listed := c.prices[op.tokenID]
		if op.price == nil || op.price.Cmp(listed) != 0 {
			return "payment does not match price"
		}
		c.owners[op.tokenID] = op.caller
		c.forSale[op.tokenID] = false
	}
	return ""
}

// Ledgers implements gateway.NFTLedger, gateway.MarketLedger and
// gateway.TxWaiter for one bound account.
type Ledgers struct {
	chain   *Chain
	account domain.Account
}

var (
	_ gateway.NFTLedger    = (*Ledgers)(nil)
	_ gateway.MarketLedger = (*Ledgers)(nil)
	_ gateway.TxWaiter     = (*Ledgers)(nil)
)

func (l *Ledgers) TotalSupply(_ context.Context) (uint64, error) {
	l.chain.mu.Lock()
	defer l.chain.mu.Unlock()
	if l.chain.readErr != nil {
		return 0, l.chain.readErr
	}
	return uint64(len(l.chain.order)), nil
}

func (l *Ledgers) TokenByIndex(_ context.Context, index uint64) (uint64, error) {
	l.chain.mu.Lock()
	defer l.chain.mu.Unlock()
	if l.chain.readErr != nil {
		return 0, l.chain.readErr
	}
	if index >= uint64(len(l.chain.order)) {
		return 0, fmt.Errorf("index %d out of bounds", index)
	}
	return l.chain.order[index], nil
}

func (l *Ledgers) OwnerOf(_ context.Context, tokenID uint64) (domain.Account, error) {
	l.chain.mu.Lock()
	defer l.chain.mu.Unlock()
	if l.chain.readErr != nil {
		return domain.NoAccount, l.chain.readErr
	}
	owner, ok := l.chain.owners[tokenID]
	if !ok {
		return domain.NoAccount, fmt.Errorf("token %d does not exist", tokenID)
	}
	return owner, nil
}

func (l *Ledgers) TokenURI(_ context.Context, tokenID uint64) (string, error) {
	l.chain.mu.Lock()
	defer l.chain.mu.Unlock()
	if l.chain.readErr != nil {
		return "", l.chain.readErr
	}
	uri, ok := l.chain.uris[tokenID]
	if !ok {
		return "", fmt.Errorf("token %d does not exist", tokenID)
	}
	return uri, nil
}

func (l *Ledgers) SafeMint(_ context.Context, to domain.Account, cid string) (string, error) {
	return l.chain.submit(&pendingOp{kind: opMint, caller: to, cid: cid})
}

func (l *Ledgers) GetPrice(_ context.Context, tokenID uint64) (*big.Int, error) {
	l.chain.mu.Lock()
	defer l.chain.mu.Unlock()
	if l.chain.readErr != nil {
		return nil, l.chain.readErr
	}
	price, ok := l.chain.prices[tokenID]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(price), nil
}

func (l *Ledgers) IsForSale(_ context.Context, tokenID uint64) (bool, error) {
	l.chain.mu.Lock()
	defer l.chain.mu.Unlock()
	if l.chain.readErr != nil {
		return false, l.chain.readErr
	}
	return l.chain.forSale[tokenID], nil
}

func (l *Ledgers) ListForSale(_ context.Context, tokenID uint64, priceWei *big.Int) (string, error) {
	return l.chain.submit(&pendingOp{kind: opList, caller: l.account, tokenID: tokenID, price: priceWei})
}

func (l *Ledgers) Delist(_ context.Context, tokenID uint64) (string, error) {
	return l.chain.submit(&pendingOp{kind: opDelist, caller: l.account, tokenID: tokenID})
}

func (l *Ledgers) Buy(_ context.Context, tokenID uint64, priceWei *big.Int) (string, error) {
	return l.chain.submit(&pendingOp{kind: opBuy, caller: l.account, tokenID: tokenID, price: priceWei})
}

// Await settles the queued mutation, honoring the confirmation gate
// and failure knobs.
func (l *Ledgers) Await(ctx context.Context, txHash string) error {
	l.chain.mu.Lock()
	gate := l.chain.confirmGate
	l.chain.mu.Unlock()

	if gate != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-gate:
		}
	}

	l.chain.mu.Lock()
	defer l.chain.mu.Unlock()

	op, ok := l.chain.pending[txHash]
	if !ok {
		return fmt.Errorf("unknown transaction %s", txHash)
	}
	if op.applied {
		return nil
	}

	if l.chain.failNextConfirm != "" {
		reason := l.chain.failNextConfirm
		l.chain.failNextConfirm = ""
		delete(l.chain.pending, txHash)
		return &gateway.ConfirmationError{TxHash: txHash, Reason: reason}
	}

	if reason := l.chain.apply(op); reason != "" {
		delete(l.chain.pending, txHash)
		return &gateway.ConfirmationError{TxHash: txHash, Reason: reason}
	}
	op.applied = true
	return nil
}
