package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"nft-market-client/internal/domain"
	"nft-market-client/internal/observability"
	"nft-market-client/internal/storage"
)

// ActivityLogStore implements storage.ActivityLogStore using PostgreSQL.
type ActivityLogStore struct {
	pool *Pool
}

// NewActivityLogStore creates a new ActivityLogStore.
func NewActivityLogStore(pool *Pool) *ActivityLogStore {
	return &ActivityLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ActivityLogStore = (*ActivityLogStore)(nil)

// Insert adds a new activity record. Returns ErrDuplicateKey if
// activity_id exists.
func (s *ActivityLogStore) Insert(ctx context.Context, rec *domain.ActivityRecord) error {
	if rec == nil || rec.ActivityID == "" || !rec.Kind.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO activity_log (
			activity_id, kind, account, token_id, price_wei, cid,
			tx_hash, status, fail_reason, submitted_at, resolved_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11
		)
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		rec.ActivityID, string(rec.Kind), string(rec.Account.Normalized()),
		rec.TokenID, rec.PriceWei, rec.CID,
		rec.TxHash, string(rec.Status), rec.FailReason,
		rec.SubmittedAt, rec.ResolvedAt,
	)
	observability.RecordDBQuery("postgres", "insert_activity", time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert activity record: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *ActivityLogStore) GetByID(ctx context.Context, activityID string) (*domain.ActivityRecord, error) {
	query := `
		SELECT
			activity_id, kind, account, token_id, price_wei, cid,
			tx_hash, status, fail_reason, submitted_at, resolved_at
		FROM activity_log
		WHERE activity_id = $1
	`

	row := s.pool.QueryRow(ctx, query, activityID)
	rec, err := scanActivityRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get activity record by id: %w", err)
	}
	return rec, nil
}

// GetByAccount retrieves all records for an account, ordered by submitted_at ASC.
func (s *ActivityLogStore) GetByAccount(ctx context.Context, account domain.Account) ([]*domain.ActivityRecord, error) {
	query := `
		SELECT
			activity_id, kind, account, token_id, price_wei, cid,
			tx_hash, status, fail_reason, submitted_at, resolved_at
		FROM activity_log
		WHERE account = $1
		ORDER BY submitted_at ASC, activity_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(account.Normalized()))
	if err != nil {
		return nil, fmt.Errorf("get activity records by account: %w", err)
	}
	defer rows.Close()

	return scanActivityRecords(rows)
}

// GetByKind retrieves all records of one action kind, ordered by submitted_at ASC.
func (s *ActivityLogStore) GetByKind(ctx context.Context, kind domain.ActionKind) ([]*domain.ActivityRecord, error) {
	query := `
		SELECT
			activity_id, kind, account, token_id, price_wei, cid,
			tx_hash, status, fail_reason, submitted_at, resolved_at
		FROM activity_log
		WHERE kind = $1
		ORDER BY submitted_at ASC, activity_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("get activity records by kind: %w", err)
	}
	defer rows.Close()

	return scanActivityRecords(rows)
}

// scanActivityRecord scans a single row into an ActivityRecord.
func scanActivityRecord(row pgx.Row) (*domain.ActivityRecord, error) {
	var rec domain.ActivityRecord
	var kind, account, status string

	err := row.Scan(
		&rec.ActivityID, &kind, &account, &rec.TokenID, &rec.PriceWei, &rec.CID,
		&rec.TxHash, &status, &rec.FailReason, &rec.SubmittedAt, &rec.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Kind = domain.ActionKind(kind)
	rec.Account = domain.Account(account)
	rec.Status = domain.TxStatus(status)
	return &rec, nil
}

// scanActivityRecords scans all rows into ActivityRecords.
func scanActivityRecords(rows pgx.Rows) ([]*domain.ActivityRecord, error) {
	var result []*domain.ActivityRecord
	for rows.Next() {
		rec, err := scanActivityRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity record: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity records: %w", err)
	}
	return result, nil
}
