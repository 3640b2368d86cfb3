package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/storage"
)

func TestListingObservationStore_InsertBulkAndGetByPassID(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewListingObservationStore(conn)

	obs := []*domain.ListingObservation{
		{PassID: "pass-1", TokenID: 2, PriceWei: "2000000000000000000", ObservedAt: 1000},
		{PassID: "pass-1", TokenID: 1, PriceWei: "500000000000000000", ObservedAt: 1000},
	}
	require.NoError(t, store.InsertBulk(ctx, obs))

	got, err := store.GetByPassID(ctx, "pass-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].TokenID)
	assert.Equal(t, uint64(2), got[1].TokenID)
	assert.Equal(t, "500000000000000000", got[0].PriceWei)
}

func TestListingObservationStore_GetByTokenID(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewListingObservationStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.ListingObservation{
		{PassID: "pass-1", TokenID: 7, PriceWei: "100", ObservedAt: 1000},
		{PassID: "pass-1", TokenID: 8, PriceWei: "900", ObservedAt: 1000},
	}))
	require.NoError(t, store.InsertBulk(ctx, []*domain.ListingObservation{
		{PassID: "pass-2", TokenID: 7, PriceWei: "300", ObservedAt: 2000},
	}))

	got, err := store.GetByTokenID(ctx, 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "100", got[0].PriceWei)
	assert.Equal(t, "300", got[1].PriceWei)
}

func TestListingObservationStore_DuplicateFailsBatch(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewListingObservationStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.ListingObservation{
		{PassID: "pass-1", TokenID: 1, PriceWei: "100", ObservedAt: 1000},
	}))

	err := store.InsertBulk(ctx, []*domain.ListingObservation{
		{PassID: "pass-1", TokenID: 1, PriceWei: "150", ObservedAt: 2000},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Intra-batch duplicate rejected before anything is sent.
	err = store.InsertBulk(ctx, []*domain.ListingObservation{
		{PassID: "pass-3", TokenID: 5, PriceWei: "100", ObservedAt: 3000},
		{PassID: "pass-3", TokenID: 5, PriceWei: "200", ObservedAt: 3000},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByPassID(ctx, "pass-3")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListingObservationStore_EmptyBatch(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewListingObservationStore(conn)
	require.NoError(t, store.InsertBulk(context.Background(), nil))
}
