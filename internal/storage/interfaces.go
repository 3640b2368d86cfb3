package storage

import (
	"context"

	"nft-market-client/internal/domain"
)

// ActivityLogStore provides access to activity_log storage: the
// durable trace of every mutation this client submitted.
type ActivityLogStore interface {
	// Insert adds a new activity record. Returns ErrDuplicateKey if
	// activity_id exists.
	Insert(ctx context.Context, rec *domain.ActivityRecord) error

	// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, activityID string) (*domain.ActivityRecord, error)

	// GetByAccount retrieves all records for an account, ordered by
	// submitted_at ASC.
	GetByAccount(ctx context.Context, account domain.Account) ([]*domain.ActivityRecord, error)

	// GetByKind retrieves all records of one action kind, ordered by
	// submitted_at ASC.
	GetByKind(ctx context.Context, kind domain.ActionKind) ([]*domain.ActivityRecord, error)
}

// ListingObservationStore provides access to listing_observations
// storage: the append-only history of what each sale-view rebuild saw.
type ListingObservationStore interface {
	// InsertBulk adds one pass's observations atomically. Fails entire
	// batch on duplicate (pass_id, token_id).
	InsertBulk(ctx context.Context, obs []*domain.ListingObservation) error

	// GetByTokenID retrieves all observations for a token, ordered by
	// observed_at ASC.
	GetByTokenID(ctx context.Context, tokenID uint64) ([]*domain.ListingObservation, error)

	// GetByPassID retrieves all observations captured by one pass.
	GetByPassID(ctx context.Context, passID string) ([]*domain.ListingObservation, error)
}
