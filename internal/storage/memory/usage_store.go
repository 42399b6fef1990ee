package memory

import (
	"context"
	"sync"
	"time"

	"solana-swapbot/internal/domain"
	"solana-swapbot/internal/storage"
)

// UsageStore is an in-memory implementation of storage.UsageStore.
type UsageStore struct {
	mu   sync.Mutex
	data map[string]*domain.UsageRecord
}

// NewUsageStore creates a new in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{
		data: make(map[string]*domain.UsageRecord),
	}
}

// Compile-time interface check.
var _ storage.UsageStore = (*UsageStore)(nil)

// Get retrieves the record for key; absent keys yield a zero record.
func (s *UsageStore) Get(_ context.Context, key string) (domain.UsageRecord, error) {
	if key == "" {
		return domain.UsageRecord{}, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.data[key]
	if !exists {
		return domain.UsageRecord{}, nil
	}
	return *rec, nil
}

// Increment atomically adds one to requests_count under the store mutex.
func (s *UsageStore) Increment(_ context.Context, key string, trialThreshold int64) (domain.UsageRecord, error) {
	if key == "" {
		return domain.UsageRecord{}, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.data[key]
	if !exists {
		rec = &domain.UsageRecord{}
		s.data[key] = rec
	}

	rec.RequestsCount++
	if !rec.TrialCompleted && rec.RequestsCount >= trialThreshold {
		rec.TrialCompleted = true
	}
	return *rec, nil
}

// SetSubscriptionEnd records a subscription purchase.
func (s *UsageStore) SetSubscriptionEnd(_ context.Context, key string, end time.Time) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.data[key]
	if !exists {
		rec = &domain.UsageRecord{}
		s.data[key] = rec
	}
	endCopy := end
	rec.SubscriptionEnd = &endCopy
	return nil
}
