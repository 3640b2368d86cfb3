package session

import (
	"context"
	"errors"
	"testing"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/gateway/stub"
)

// stubWallet approves a fixed account, or fails.
type stubWallet struct {
	account domain.Account
	err     error
}

func (w *stubWallet) RequestAccount(_ context.Context) (domain.Account, error) {
	return w.account, w.err
}

func chainBind(chain *stub.Chain) BindFunc {
	return func(account domain.Account) (Handles, error) {
		ledgers := chain.Bind(account)
		return Handles{NFT: ledgers, Market: ledgers, Waiter: ledgers}, nil
	}
}

func TestSession_Connect(t *testing.T) {
	chain := stub.NewChain()
	s := New(&stubWallet{account: "0xAbC"}, chainBind(chain))

	if s.State() != StateDisconnected {
		t.Fatalf("initial state = %s", s.State())
	}
	if _, err := s.Handles(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Handles while disconnected: %v", err)
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if s.State() != StateConnected {
		t.Errorf("state = %s", s.State())
	}
	if !s.Account().Equal("0xabc") {
		t.Errorf("account = %s", s.Account())
	}

	handles, err := s.Handles()
	if err != nil {
		t.Fatalf("Handles: %v", err)
	}
	if handles.NFT == nil || handles.Market == nil || handles.Waiter == nil {
		t.Error("incomplete handles after connect")
	}
}

func TestSession_ConnectDenied(t *testing.T) {
	s := New(&stubWallet{err: errors.New("user rejected")}, chainBind(stub.NewChain()))

	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if s.State() != StateDisconnected {
		t.Errorf("state after denied connect = %s", s.State())
	}
	if !s.Account().IsZero() {
		t.Errorf("account leaked: %s", s.Account())
	}
}

func TestSession_Disconnect(t *testing.T) {
	s := New(&stubWallet{account: "0xabc"}, chainBind(stub.NewChain()))

	var changes int
	s.OnChange(func() { changes++ })

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if changes != 1 {
		t.Errorf("changes after connect = %d", changes)
	}

	s.Disconnect()

	if changes != 2 {
		t.Errorf("changes after disconnect = %d", changes)
	}
	if s.State() != StateDisconnected {
		t.Errorf("state = %s", s.State())
	}
	if _, err := s.Handles(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Handles after disconnect: %v", err)
	}
}

func TestSession_ConnectIdempotent(t *testing.T) {
	s := New(&stubWallet{account: "0xabc"}, chainBind(stub.NewChain()))

	var changes int
	s.OnChange(func() { changes++ })

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if changes != 1 {
		t.Errorf("second connect fired listeners: changes = %d", changes)
	}
}
