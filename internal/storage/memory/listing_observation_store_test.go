package memory

import (
	"context"
	"errors"
	"testing"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/storage"
)

func TestListingObservationStore_InsertBulkAndGet(t *testing.T) {
	store := NewListingObservationStore()
	ctx := context.Background()

	obs := []*domain.ListingObservation{
		{PassID: "pass1", TokenID: 1, PriceWei: "100", ObservedAt: 1000},
		{PassID: "pass1", TokenID: 2, PriceWei: "250", ObservedAt: 1000},
	}
	if err := store.InsertBulk(ctx, obs); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByPassID(ctx, "pass1")
	if err != nil {
		t.Fatalf("GetByPassID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d observations, want 2", len(got))
	}
	if got[0].TokenID != 1 || got[1].TokenID != 2 {
		t.Errorf("wrong order: %d, %d", got[0].TokenID, got[1].TokenID)
	}
}

func TestListingObservationStore_DuplicateFailsBatch(t *testing.T) {
	store := NewListingObservationStore()
	ctx := context.Background()

	first := []*domain.ListingObservation{
		{PassID: "pass1", TokenID: 1, PriceWei: "100", ObservedAt: 1000},
	}
	if err := store.InsertBulk(ctx, first); err != nil {
		t.Fatalf("first InsertBulk failed: %v", err)
	}

	second := []*domain.ListingObservation{
		{PassID: "pass1", TokenID: 2, PriceWei: "200", ObservedAt: 2000},
		{PassID: "pass1", TokenID: 1, PriceWei: "150", ObservedAt: 2000}, // duplicate
	}
	if err := store.InsertBulk(ctx, second); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// The whole batch must have been rejected.
	got, err := store.GetByPassID(ctx, "pass1")
	if err != nil {
		t.Fatalf("GetByPassID failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("partial batch applied: %d observations", len(got))
	}
}

func TestListingObservationStore_GetByTokenID(t *testing.T) {
	store := NewListingObservationStore()
	ctx := context.Background()

	obs := []*domain.ListingObservation{
		{PassID: "pass2", TokenID: 7, PriceWei: "300", ObservedAt: 2000},
		{PassID: "pass1", TokenID: 7, PriceWei: "100", ObservedAt: 1000},
		{PassID: "pass1", TokenID: 8, PriceWei: "500", ObservedAt: 1000},
	}
	if err := store.InsertBulk(ctx, obs); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTokenID(ctx, 7)
	if err != nil {
		t.Fatalf("GetByTokenID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d observations, want 2", len(got))
	}
	if got[0].PriceWei != "100" || got[1].PriceWei != "300" {
		t.Errorf("wrong order: %s, %s", got[0].PriceWei, got[1].PriceWei)
	}
}

func TestListingObservationStore_EmptyBatch(t *testing.T) {
	store := NewListingObservationStore()

	if err := store.InsertBulk(context.Background(), nil); err != nil {
		t.Errorf("empty batch: %v", err)
	}
}
