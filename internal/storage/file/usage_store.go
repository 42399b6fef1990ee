// Package file implements storage.UsageStore on a single JSON file, the
// durable record shape the usage meter is specified against:
//
//	{"requests_count": 14, "trial_completed": false, "subscription_end": null}
//
// All mutations are serialized through a process-wide mutex and written via
// temp-file rename, so concurrent in-process callers cannot lose
// increments and a crash mid-write cannot corrupt the record.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"solana-swapbot/internal/domain"
	"solana-swapbot/internal/storage"
)

// UsageStore persists usage records as JSON files, one per meter key,
// under a base directory.
type UsageStore struct {
	dir string
	mu  sync.Mutex
}

// NewUsageStore creates the store, creating the base directory if needed.
func NewUsageStore(dir string) (*UsageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create usage store dir: %w", err)
	}
	return &UsageStore{dir: dir}, nil
}

// Compile-time interface check.
var _ storage.UsageStore = (*UsageStore)(nil)

func (s *UsageStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get retrieves the record for key; a missing file yields a zero record.
func (s *UsageStore) Get(_ context.Context, key string) (domain.UsageRecord, error) {
	if key == "" {
		return domain.UsageRecord{}, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(key)
}

// Increment performs the read-modify-write under the store mutex and
// persists via rename before returning.
func (s *UsageStore) Increment(_ context.Context, key string, trialThreshold int64) (domain.UsageRecord, error) {
	if key == "" {
		return domain.UsageRecord{}, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(key)
	if err != nil {
		return domain.UsageRecord{}, err
	}

	rec.RequestsCount++
	if !rec.TrialCompleted && rec.RequestsCount >= trialThreshold {
		rec.TrialCompleted = true
	}

	if err := s.save(key, rec); err != nil {
		return domain.UsageRecord{}, err
	}
	return rec, nil
}

// SetSubscriptionEnd records a subscription purchase.
func (s *UsageStore) SetSubscriptionEnd(_ context.Context, key string, end time.Time) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(key)
	if err != nil {
		return err
	}
	endCopy := end
	rec.SubscriptionEnd = &endCopy
	return s.save(key, rec)
}

func (s *UsageStore) load(key string) (domain.UsageRecord, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.UsageRecord{}, nil
		}
		return domain.UsageRecord{}, fmt.Errorf("read usage record: %w", err)
	}

	var rec domain.UsageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.UsageRecord{}, fmt.Errorf("decode usage record: %w", err)
	}
	return rec, nil
}

func (s *UsageStore) save(key string, rec domain.UsageRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode usage record: %w", err)
	}

	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write usage record: %w", err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("rename usage record: %w", err)
	}
	return nil
}
