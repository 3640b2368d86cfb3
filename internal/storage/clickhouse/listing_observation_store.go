package clickhouse

import (
	"context"
	"fmt"
	"time"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/observability"
	"nft-market-client/internal/storage"
)

// ListingObservationStore implements storage.ListingObservationStore
// using ClickHouse. Observations are append-only market history, the
// natural shape for a MergeTree table.
type ListingObservationStore struct {
	conn *Conn
}

// NewListingObservationStore creates a new ListingObservationStore.
func NewListingObservationStore(conn *Conn) *ListingObservationStore {
	return &ListingObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ListingObservationStore = (*ListingObservationStore)(nil)

// InsertBulk adds one pass's observations atomically. Fails entire
// batch on duplicate (pass_id, token_id). ClickHouse MergeTree does
// not enforce uniqueness at insert time, so duplicates are checked
// explicitly before the batch is sent.
func (s *ListingObservationStore) InsertBulk(ctx context.Context, obs []*domain.ListingObservation) error {
	if len(obs) == 0 {
		return nil
	}

	type key struct {
		passID  string
		tokenID uint64
	}
	seen := make(map[key]struct{}, len(obs))
	for _, o := range obs {
		if o == nil || o.PassID == "" {
			return storage.ErrInvalidInput
		}
		k := key{o.PassID, o.TokenID}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, o := range obs {
		exists, err := s.exists(ctx, o.PassID, o.TokenID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO listing_observations (
			pass_id, token_id, price_wei, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range obs {
		err = batch.Append(o.PassID, o.TokenID, o.PriceWei, uint64(o.ObservedAt))
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	start := time.Now()
	err = batch.Send()
	observability.RecordDBQuery("clickhouse", "insert_observations", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTokenID retrieves all observations for a token, ordered by observed_at ASC.
func (s *ListingObservationStore) GetByTokenID(ctx context.Context, tokenID uint64) ([]*domain.ListingObservation, error) {
	query := `
		SELECT pass_id, token_id, price_wei, observed_at
		FROM listing_observations
		WHERE token_id = ?
		ORDER BY observed_at ASC, pass_id ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("get observations by token id: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetByPassID retrieves all observations captured by one pass, ordered
// by token_id ASC.
func (s *ListingObservationStore) GetByPassID(ctx context.Context, passID string) ([]*domain.ListingObservation, error) {
	query := `
		SELECT pass_id, token_id, price_wei, observed_at
		FROM listing_observations
		WHERE pass_id = ?
		ORDER BY token_id ASC
	`

	rows, err := s.conn.Query(ctx, query, passID)
	if err != nil {
		return nil, fmt.Errorf("get observations by pass id: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// exists checks whether an observation with the given key is already stored.
func (s *ListingObservationStore) exists(ctx context.Context, passID string, tokenID uint64) (bool, error) {
	query := `
		SELECT count() FROM listing_observations
		WHERE pass_id = ? AND token_id = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, passID, tokenID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanObservations scans all rows into ListingObservations.
func scanObservations(rows chRows) ([]*domain.ListingObservation, error) {
	var result []*domain.ListingObservation
	for rows.Next() {
		var o domain.ListingObservation
		var observedAt uint64
		if err := rows.Scan(&o.PassID, &o.TokenID, &o.PriceWei, &observedAt); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.ObservedAt = int64(observedAt)
		result = append(result, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return result, nil
}
