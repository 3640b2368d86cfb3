// Package lifecycle drives the four mutating actions through their
// submit-then-confirm cycle. Each action kind owns one slot: while a
// transaction of that kind is in flight, another submission of the
// same kind is rejected rather than queued.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/gateway"
	"nft-market-client/internal/metadata"
	"nft-market-client/internal/observability"
	"nft-market-client/internal/session"
	"nft-market-client/internal/storage"
	"nft-market-client/internal/wei"
)

// DefaultConfirmTimeout bounds the wait for a confirmation. The
// transaction itself cannot be retracted once submitted; on timeout
// the slot resolves FAILED locally while the chain settles on its own.
const DefaultConfirmTimeout = 3 * time.Minute

// ErrActionInFlight is returned when a slot of the requested kind is
// already occupied by a pending transaction.
var ErrActionInFlight = errors.New("action of this kind already in flight")

// ValidationError reports a locally rejected input. No transaction was
// submitted and no gas was spent.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Refresher re-derives the views after a confirmed mutation.
type Refresher interface {
	RebuildAll(ctx context.Context) error
}

// Manager owns the per-kind transaction slots and runs each mutation
// to a terminal state: validate, submit, await, refresh.
type Manager struct {
	session        *session.Session
	refresher      Refresher
	activity       storage.ActivityLogStore
	logger         *log.Logger
	confirmTimeout time.Duration

	mu    sync.Mutex
	slots map[domain.ActionKind]*domain.PendingTransaction
}

// Options holds configuration for creating a Manager.
type Options struct {
	Session   *session.Session
	Refresher Refresher

	// Activity, when set, receives one terminal record per submitted
	// transaction.
	Activity storage.ActivityLogStore

	Logger         *log.Logger
	ConfirmTimeout time.Duration
}

// New creates a Manager with all slots idle.
func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[lifecycle] ", log.LstdFlags)
	}
	timeout := opts.ConfirmTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &Manager{
		session:        opts.Session,
		refresher:      opts.Refresher,
		activity:       opts.Activity,
		logger:         logger,
		confirmTimeout: timeout,
		slots:          make(map[domain.ActionKind]*domain.PendingTransaction),
	}
}

// Slot returns a snapshot of the most recent transaction of the given
// kind, or nil if the kind has never been submitted.
func (m *Manager) Slot(kind domain.ActionKind) *domain.PendingTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.slots[kind]
	if !ok {
		return nil
	}
	cp := *tx
	return &cp
}

// Mint validates the metadata CID and submits a mint for the
// connected account.
func (m *Manager) Mint(ctx context.Context, cid string) (*domain.PendingTransaction, error) {
	if err := metadata.ValidateCID(cid); err != nil {
		return nil, &ValidationError{Field: "cid", Msg: err.Error()}
	}

	handles, err := m.session.Handles()
	if err != nil {
		return nil, err
	}
	account := m.session.Account()

	return m.run(ctx, domain.ActionMint, activityInput{cid: &cid}, func(ctx context.Context) (string, error) {
		return handles.NFT.SafeMint(ctx, account, cid)
	})
}

// List validates the decimal ether price and submits a listing.
func (m *Manager) List(ctx context.Context, tokenID uint64, price string) (*domain.PendingTransaction, error) {
	priceWei, err := parsePositivePrice(price)
	if err != nil {
		return nil, err
	}

	handles, err := m.session.Handles()
	if err != nil {
		return nil, err
	}

	in := activityInput{tokenID: &tokenID, priceWei: priceWei}
	return m.run(ctx, domain.ActionList, in, func(ctx context.Context) (string, error) {
		return handles.Market.ListForSale(ctx, tokenID, priceWei)
	})
}

// Delist submits a delisting.
func (m *Manager) Delist(ctx context.Context, tokenID uint64) (*domain.PendingTransaction, error) {
	handles, err := m.session.Handles()
	if err != nil {
		return nil, err
	}

	in := activityInput{tokenID: &tokenID}
	return m.run(ctx, domain.ActionDelist, in, func(ctx context.Context) (string, error) {
		return handles.Market.Delist(ctx, tokenID)
	})
}

// Buy submits a purchase, paying exactly the given decimal ether
// price. The payment must match the listed price or the transaction
// reverts on-chain.
func (m *Manager) Buy(ctx context.Context, tokenID uint64, price string) (*domain.PendingTransaction, error) {
	priceWei, err := parsePositivePrice(price)
	if err != nil {
		return nil, err
	}

	handles, err := m.session.Handles()
	if err != nil {
		return nil, err
	}

	in := activityInput{tokenID: &tokenID, priceWei: priceWei}
	return m.run(ctx, domain.ActionBuy, in, func(ctx context.Context) (string, error) {
		return handles.Market.Buy(ctx, tokenID, priceWei)
	})
}

// activityInput carries the action parameters into the durable record.
type activityInput struct {
	tokenID  *uint64
	priceWei *big.Int
	cid      *string
}

// run drives one mutation through its slot: acquire, submit, await,
// resolve. Submission happens exactly once; a failed transaction is
// surfaced, never resubmitted.
func (m *Manager) run(ctx context.Context, kind domain.ActionKind, in activityInput, submit func(context.Context) (string, error)) (*domain.PendingTransaction, error) {
	m.mu.Lock()
	if tx, ok := m.slots[kind]; ok && !tx.Status.Terminal() {
		m.mu.Unlock()
		return nil, ErrActionInFlight
	}
	placeholder := &domain.PendingTransaction{
		Kind:        kind,
		SubmittedAt: time.Now(),
		Status:      domain.TxPending,
	}
	m.slots[kind] = placeholder
	m.mu.Unlock()

	handles, err := m.session.Handles()
	if err != nil {
		m.release(kind)
		return nil, err
	}

	hash, err := submit(ctx)
	if err != nil {
		m.release(kind)
		observability.RecordFailed(kind.String(), "submit")
		m.logger.Printf("%s submission failed: %v", kind, err)
		return nil, fmt.Errorf("submit %s: %w", kind, err)
	}

	m.mu.Lock()
	placeholder.TxHash = hash
	m.mu.Unlock()
	observability.RecordSubmission(kind.String())
	m.logger.Printf("%s submitted: %s", kind, hash)

	awaitCtx, cancel := context.WithTimeout(ctx, m.confirmTimeout)
	defer cancel()

	awaitErr := handles.Waiter.Await(awaitCtx, hash)
	resolvedAt := time.Now()

	m.mu.Lock()
	if awaitErr != nil {
		placeholder.Status = domain.TxFailed
		placeholder.FailReason = awaitErr.Error()
	} else {
		placeholder.Status = domain.TxConfirmed
	}
	result := *placeholder
	m.mu.Unlock()

	m.recordActivity(ctx, &result, in, resolvedAt)

	if awaitErr != nil {
		stage := "confirm"
		if !gateway.IsConfirmationError(awaitErr) {
			stage = "timeout"
		}
		observability.RecordFailed(kind.String(), stage)
		m.logger.Printf("%s failed: %v", kind, awaitErr)
		return &result, fmt.Errorf("confirm %s: %w", kind, awaitErr)
	}

	observability.RecordConfirmed(kind.String(), resolvedAt.Sub(result.SubmittedAt).Seconds())
	m.logger.Printf("%s confirmed: %s", kind, hash)

	if m.refresher != nil {
		if err := m.refresher.RebuildAll(ctx); err != nil {
			m.logger.Printf("view refresh after %s failed: %v", kind, err)
		}
	}
	return &result, nil
}

// release empties a slot after a failure that never produced a
// transaction hash.
func (m *Manager) release(kind domain.ActionKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, kind)
}

// recordActivity appends the terminal record to the activity log.
// Storage failures are logged, never surfaced: the transaction already
// settled on-chain.
func (m *Manager) recordActivity(ctx context.Context, tx *domain.PendingTransaction, in activityInput, resolvedAt time.Time) {
	if m.activity == nil {
		return
	}

	rec := &domain.ActivityRecord{
		ActivityID:  uuid.New().String(),
		Kind:        tx.Kind,
		Account:     m.session.Account().Normalized(),
		TokenID:     in.tokenID,
		TxHash:      tx.TxHash,
		Status:      tx.Status,
		SubmittedAt: tx.SubmittedAt.UnixMilli(),
		ResolvedAt:  resolvedAt.UnixMilli(),
	}
	if in.priceWei != nil {
		s := in.priceWei.String()
		rec.PriceWei = &s
	}
	if in.cid != nil {
		rec.CID = in.cid
	}
	if tx.FailReason != "" {
		reason := tx.FailReason
		rec.FailReason = &reason
	}

	if err := m.activity.Insert(ctx, rec); err != nil {
		m.logger.Printf("recording %s activity failed: %v", tx.Kind, err)
	}
}

// parsePositivePrice converts a decimal ether string to wei, rejecting
// non-positive amounts before any network call.
func parsePositivePrice(price string) (*big.Int, error) {
	priceWei, err := wei.ParseEther(price)
	if err != nil {
		return nil, &ValidationError{Field: "price", Msg: err.Error()}
	}
	if priceWei.Sign() <= 0 {
		return nil, &ValidationError{Field: "price", Msg: "must be positive"}
	}
	return priceWei, nil
}
