package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-swapbot/internal/domain"
	"solana-swapbot/internal/storage"
)

// UsageStore implements storage.UsageStore using PostgreSQL.
// Increment is a single upsert statement, so concurrent callers cannot
// lose counts: the database serializes the read-modify-write.
type UsageStore struct {
	pool *Pool
}

// NewUsageStore creates a new UsageStore.
func NewUsageStore(pool *Pool) *UsageStore {
	return &UsageStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UsageStore = (*UsageStore)(nil)

// Get retrieves the record for key; an absent row yields a zero record.
func (s *UsageStore) Get(ctx context.Context, key string) (domain.UsageRecord, error) {
	if key == "" {
		return domain.UsageRecord{}, storage.ErrInvalidInput
	}

	query := `
		SELECT requests_count, trial_completed, subscription_end
		FROM usage_records
		WHERE meter_key = $1
	`

	var rec domain.UsageRecord
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&rec.RequestsCount,
		&rec.TrialCompleted,
		&rec.SubscriptionEnd,
	)
	if err != nil {
		if isNotFoundError(err) {
			return domain.UsageRecord{}, nil
		}
		return domain.UsageRecord{}, fmt.Errorf("get usage record: %w", err)
	}
	return rec, nil
}

// Increment atomically adds one to requests_count and flips
// trial_completed at the threshold, in one statement.
func (s *UsageStore) Increment(ctx context.Context, key string, trialThreshold int64) (domain.UsageRecord, error) {
	if key == "" {
		return domain.UsageRecord{}, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO usage_records (meter_key, requests_count, trial_completed)
		VALUES ($1, 1, 1 >= $2)
		ON CONFLICT (meter_key) DO UPDATE SET
			requests_count = usage_records.requests_count + 1,
			trial_completed = usage_records.trial_completed
				OR usage_records.requests_count + 1 >= $2,
			updated_at = now()
		RETURNING requests_count, trial_completed, subscription_end
	`

	var rec domain.UsageRecord
	err := s.pool.QueryRow(ctx, query, key, trialThreshold).Scan(
		&rec.RequestsCount,
		&rec.TrialCompleted,
		&rec.SubscriptionEnd,
	)
	if err != nil {
		return domain.UsageRecord{}, fmt.Errorf("increment usage record: %w", err)
	}
	return rec, nil
}

// SetSubscriptionEnd records a subscription purchase.
func (s *UsageStore) SetSubscriptionEnd(ctx context.Context, key string, end time.Time) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO usage_records (meter_key, requests_count, trial_completed, subscription_end)
		VALUES ($1, 0, FALSE, $2)
		ON CONFLICT (meter_key) DO UPDATE SET
			subscription_end = $2,
			updated_at = now()
	`

	if _, err := s.pool.Exec(ctx, query, key, end.UTC()); err != nil {
		return fmt.Errorf("set subscription end: %w", err)
	}
	return nil
}
