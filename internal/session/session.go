// Package session holds the per-client connection state: the
// authorized account and the ledger handles bound to it. Nothing else
// in the client may reach a ledger except through a connected session.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/gateway"
	"nft-market-client/internal/observability"
)

// State is the session lifecycle state.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
)

// ErrNotConnected is returned when an operation requires a connected
// session. It is a precondition failure: no network call was made.
var ErrNotConnected = errors.New("no connected account")

// ErrConnecting is returned when a connect is already in progress.
var ErrConnecting = errors.New("connect already in progress")

// Wallet is the external wallet-authorization boundary. A successful
// request yields the account the user approved.
type Wallet interface {
	RequestAccount(ctx context.Context) (domain.Account, error)
}

// Handles are the ledger handles bound to one account's signing
// capability.
type Handles struct {
	NFT    gateway.NFTLedger
	Market gateway.MarketLedger
	Waiter gateway.TxWaiter
}

// BindFunc builds account-bound ledger handles after authorization.
type BindFunc func(account domain.Account) (Handles, error)

// Session is the per-client connection state machine:
// disconnected -> connecting -> connected, back to disconnected on
// Disconnect. Change listeners fire after every transition into or out
// of connected, so derived views can rebuild or clear.
type Session struct {
	wallet Wallet
	bind   BindFunc

	mu       sync.RWMutex
	state    State
	account  domain.Account
	handles  Handles
	onChange []func()
}

// New creates a disconnected session.
func New(wallet Wallet, bind BindFunc) *Session {
	return &Session{
		wallet: wallet,
		bind:   bind,
		state:  StateDisconnected,
	}
}

// OnChange registers a listener invoked after connect and disconnect
// transitions. Listeners run outside the session lock.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Connect authorizes through the wallet and binds ledger handles to
// the approved account.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateConnecting:
		s.mu.Unlock()
		return ErrConnecting
	case StateConnected:
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	account, err := s.wallet.RequestAccount(ctx)
	if err != nil {
		s.setDisconnected()
		return fmt.Errorf("wallet authorization: %w", err)
	}
	if account.IsZero() {
		s.setDisconnected()
		return fmt.Errorf("wallet authorization: %w", ErrNotConnected)
	}

	handles, err := s.bind(account)
	if err != nil {
		s.setDisconnected()
		return fmt.Errorf("bind ledger handles: %w", err)
	}

	s.mu.Lock()
	s.state = StateConnected
	s.account = account
	s.handles = handles
	listeners := append([]func(){}, s.onChange...)
	s.mu.Unlock()

	observability.RecordConnect()
	for _, fn := range listeners {
		fn()
	}
	return nil
}

// Disconnect invalidates the account and handles. Stale per-account
// data must never survive into the next session, so listeners (view
// holders) run even if the session was already disconnected by another
// path.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.state = StateDisconnected
	s.account = domain.NoAccount
	s.handles = Handles{}
	listeners := append([]func(){}, s.onChange...)
	s.mu.Unlock()

	observability.RecordDisconnect()
	for _, fn := range listeners {
		fn()
	}
}

// setDisconnected resets state without firing listeners; used for
// failed connects, where nothing was ever bound.
func (s *Session) setDisconnected() {
	s.mu.Lock()
	s.state = StateDisconnected
	s.account = domain.NoAccount
	s.handles = Handles{}
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Account returns the connected account, or NoAccount.
func (s *Session) Account() domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// Handles returns the bound ledger handles. Returns ErrNotConnected
// while disconnected or connecting, so mutating paths fail fast before
// any network call.
func (s *Session) Handles() (Handles, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateConnected {
		return Handles{}, ErrNotConnected
	}
	return s.handles, nil
}
