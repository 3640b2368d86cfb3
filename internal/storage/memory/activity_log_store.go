package memory

import (
	"context"
	"sort"
	"sync"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/storage"
)

// ActivityLogStore is an in-memory implementation of storage.ActivityLogStore.
type ActivityLogStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ActivityRecord // keyed by activity_id
}

// NewActivityLogStore creates a new in-memory activity log store.
func NewActivityLogStore() *ActivityLogStore {
	return &ActivityLogStore{
		data: make(map[string]*domain.ActivityRecord),
	}
}

// Insert adds a new activity record. Returns ErrDuplicateKey if
// activity_id exists.
func (s *ActivityLogStore) Insert(_ context.Context, rec *domain.ActivityRecord) error {
	if rec == nil || rec.ActivityID == "" || !rec.Kind.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[rec.ActivityID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *rec
	s.data[rec.ActivityID] = &copy
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *ActivityLogStore) GetByID(_ context.Context, activityID string) (*domain.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.data[activityID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *rec
	return &copy, nil
}

// GetByAccount retrieves all records for an account, ordered by submitted_at ASC.
func (s *ActivityLogStore) GetByAccount(_ context.Context, account domain.Account) ([]*domain.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ActivityRecord
	for _, rec := range s.data {
		if rec.Account.Equal(account) {
			copy := *rec
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmittedAt < result[j].SubmittedAt
	})

	return result, nil
}

// GetByKind retrieves all records of one action kind, ordered by submitted_at ASC.
func (s *ActivityLogStore) GetByKind(_ context.Context, kind domain.ActionKind) ([]*domain.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ActivityRecord
	for _, rec := range s.data {
		if rec.Kind == kind {
			copy := *rec
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmittedAt < result[j].SubmittedAt
	})

	return result, nil
}

var _ storage.ActivityLogStore = (*ActivityLogStore)(nil)
