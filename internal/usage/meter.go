// Package usage implements the trial/subscription gating policy on top of
// a durable, atomically incremented usage store.
package usage

import (
	"context"
	"fmt"
	"time"

	"solana-swapbot/internal/domain"
	"solana-swapbot/internal/storage"
)

// Meter decides whether a swap attempt is admitted and records every
// attempt once it reaches a terminal state.
type Meter struct {
	store storage.UsageStore
	key   string
	now   func() time.Time
}

// Option configures Meter.
type Option func(*Meter)

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(m *Meter) {
		m.now = now
	}
}

// NewMeter creates a meter over the given store, counting under key.
func NewMeter(store storage.UsageStore, key string, opts ...Option) *Meter {
	m := &Meter{
		store: store,
		key:   key,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CheckAccess applies the gating policy:
//   - trial not completed: always allowed (trial requests are unmetered
//     beyond the completion flag flip);
//   - trial completed: allowed only with an unexpired subscription and
//     requests_count below the paid quota.
func (m *Meter) CheckAccess(ctx context.Context) (domain.AccessDecision, domain.UsageRecord, error) {
	rec, err := m.store.Get(ctx, m.key)
	if err != nil {
		return "", domain.UsageRecord{}, fmt.Errorf("read usage record: %w", err)
	}

	if !rec.TrialCompleted {
		return domain.AccessAllowed, rec, nil
	}

	if rec.SubscriptionEnd == nil {
		return domain.AccessTrialExhausted, rec, nil
	}
	if !rec.SubscriptionEnd.After(m.now()) {
		return domain.AccessSubscriptionExpired, rec, nil
	}
	if rec.RequestsCount >= domain.PaidRequests {
		return domain.AccessQuotaExceeded, rec, nil
	}
	return domain.AccessAllowed, rec, nil
}

// RecordUsage increments the counter unconditionally after a swap attempt
// completes, success or failure. The returned record reflects the
// post-increment state (the trial flag flips here when the threshold is
// crossed).
func (m *Meter) RecordUsage(ctx context.Context) (domain.UsageRecord, error) {
	rec, err := m.store.Increment(ctx, m.key, domain.TrialRequests)
	if err != nil {
		return domain.UsageRecord{}, fmt.Errorf("increment usage record: %w", err)
	}
	return rec, nil
}
