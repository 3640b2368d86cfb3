package memory

import (
	"context"
	"errors"
	"testing"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/storage"
)

func TestActivityLogStore_InsertAndGet(t *testing.T) {
	store := NewActivityLogStore()
	ctx := context.Background()

	price := "1500000000000000000"
	rec := &domain.ActivityRecord{
		ActivityID:  "act1",
		Kind:        domain.ActionList,
		Account:     "0xalice",
		TokenID:     uintPtr(7),
		PriceWei:    &price,
		TxHash:      "0xabc",
		Status:      domain.TxConfirmed,
		SubmittedAt: 1000,
		ResolvedAt:  2000,
	}

	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "act1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Kind != domain.ActionList || *got.PriceWei != price {
		t.Errorf("record mismatch: %+v", got)
	}
}

func TestActivityLogStore_DuplicateKey(t *testing.T) {
	store := NewActivityLogStore()
	ctx := context.Background()

	rec := &domain.ActivityRecord{
		ActivityID: "act1",
		Kind:       domain.ActionMint,
		Account:    "0xalice",
		Status:     domain.TxConfirmed,
	}

	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, rec)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestActivityLogStore_InvalidInput(t *testing.T) {
	store := NewActivityLogStore()
	ctx := context.Background()

	cases := []*domain.ActivityRecord{
		nil,
		{ActivityID: "", Kind: domain.ActionMint},
		{ActivityID: "act1", Kind: domain.ActionKind("TRANSFER")},
	}
	for _, rec := range cases {
		if err := store.Insert(ctx, rec); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("Insert(%+v) = %v, want ErrInvalidInput", rec, err)
		}
	}
}

func TestActivityLogStore_NotFound(t *testing.T) {
	store := NewActivityLogStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestActivityLogStore_GetByAccount(t *testing.T) {
	store := NewActivityLogStore()
	ctx := context.Background()

	records := []*domain.ActivityRecord{
		{ActivityID: "act2", Kind: domain.ActionList, Account: "0xalice", SubmittedAt: 2000, Status: domain.TxConfirmed},
		{ActivityID: "act1", Kind: domain.ActionMint, Account: "0xalice", SubmittedAt: 1000, Status: domain.TxConfirmed},
		{ActivityID: "act3", Kind: domain.ActionBuy, Account: "0xbob", SubmittedAt: 1500, Status: domain.TxFailed},
	}
	for _, rec := range records {
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert %s failed: %v", rec.ActivityID, err)
		}
	}

	// Account matching ignores case.
	got, err := store.GetByAccount(ctx, "0xAlice")
	if err != nil {
		t.Fatalf("GetByAccount failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].ActivityID != "act1" || got[1].ActivityID != "act2" {
		t.Errorf("wrong order: %s, %s", got[0].ActivityID, got[1].ActivityID)
	}
}

func TestActivityLogStore_GetByKind(t *testing.T) {
	store := NewActivityLogStore()
	ctx := context.Background()

	records := []*domain.ActivityRecord{
		{ActivityID: "act1", Kind: domain.ActionMint, Account: "0xalice", SubmittedAt: 1000, Status: domain.TxConfirmed},
		{ActivityID: "act2", Kind: domain.ActionBuy, Account: "0xbob", SubmittedAt: 2000, Status: domain.TxConfirmed},
	}
	for _, rec := range records {
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByKind(ctx, domain.ActionBuy)
	if err != nil {
		t.Fatalf("GetByKind failed: %v", err)
	}
	if len(got) != 1 || got[0].ActivityID != "act2" {
		t.Errorf("GetByKind result: %+v", got)
	}
}

func uintPtr(v uint64) *uint64 {
	return &v
}
