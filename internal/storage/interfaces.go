package storage

import (
	"context"
	"time"

	"solana-swapbot/internal/domain"
)

// UsageStore provides durable usage_records storage keyed by meter key.
// Increment must be atomic under concurrent callers: implementations
// perform the read-modify-write in a single store-level operation, never a
// client-side read followed by a write.
type UsageStore interface {
	// Get retrieves the record for key. Absent keys yield a zero record,
	// not ErrNotFound: first use starts from zeroed fields.
	Get(ctx context.Context, key string) (domain.UsageRecord, error)

	// Increment atomically adds one to requests_count and flips
	// trial_completed when the count reaches trialThreshold for the first
	// time. Returns the post-increment record.
	Increment(ctx context.Context, key string, trialThreshold int64) (domain.UsageRecord, error)

	// SetSubscriptionEnd records a subscription purchase made out of band.
	SetSubscriptionEnd(ctx context.Context, key string, end time.Time) error
}

// SwapJournal provides append-only storage of terminal swap outcomes.
type SwapJournal interface {
	// Append records one terminal outcome.
	Append(ctx context.Context, e *domain.SwapJournalEntry) error

	// GetByUser retrieves a user's entries, newest first, up to limit.
	GetByUser(ctx context.Context, userID int64, limit int) ([]*domain.SwapJournalEntry, error)
}
