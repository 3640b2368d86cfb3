package memory

import (
	"context"
	"sort"
	"sync"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/storage"
)

// obsKey identifies one observation: (pass_id, token_id).
type obsKey struct {
	passID  string
	tokenID uint64
}

// ListingObservationStore is an in-memory implementation of
// storage.ListingObservationStore.
type ListingObservationStore struct {
	mu   sync.RWMutex
	data map[obsKey]*domain.ListingObservation
}

// NewListingObservationStore creates a new in-memory listing observation store.
func NewListingObservationStore() *ListingObservationStore {
	return &ListingObservationStore{
		data: make(map[obsKey]*domain.ListingObservation),
	}
}

// InsertBulk adds one pass's observations atomically. Fails entire
// batch on any duplicate (pass_id, token_id).
func (s *ListingObservationStore) InsertBulk(_ context.Context, obs []*domain.ListingObservation) error {
	if len(obs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[obsKey]struct{}, len(obs))
	for _, o := range obs {
		if o == nil || o.PassID == "" {
			return storage.ErrInvalidInput
		}
		key := obsKey{passID: o.PassID, tokenID: o.TokenID}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, o := range obs {
		copy := *o
		s.data[obsKey{passID: o.PassID, tokenID: o.TokenID}] = &copy
	}

	return nil
}

// GetByTokenID retrieves all observations for a token, ordered by observed_at ASC.
func (s *ListingObservationStore) GetByTokenID(_ context.Context, tokenID uint64) ([]*domain.ListingObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ListingObservation
	for _, o := range s.data {
		if o.TokenID == tokenID {
			copy := *o
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})

	return result, nil
}

// GetByPassID retrieves all observations captured by one pass, ordered
// by token_id ASC.
func (s *ListingObservationStore) GetByPassID(_ context.Context, passID string) ([]*domain.ListingObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ListingObservation
	for _, o := range s.data {
		if o.PassID == passID {
			copy := *o
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TokenID < result[j].TokenID
	})

	return result, nil
}

var _ storage.ListingObservationStore = (*ListingObservationStore)(nil)
