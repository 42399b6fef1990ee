package memory

import (
	"context"
	"sync"
	"time"

	"solana-swapbot/internal/domain"
	"solana-swapbot/internal/storage"
)

// SwapJournal is an in-memory implementation of storage.SwapJournal.
type SwapJournal struct {
	mu      sync.RWMutex
	entries []*domain.SwapJournalEntry
	nextID  int64
}

// NewSwapJournal creates a new in-memory swap journal.
func NewSwapJournal() *SwapJournal {
	return &SwapJournal{nextID: 1}
}

// Compile-time interface check.
var _ storage.SwapJournal = (*SwapJournal)(nil)

// Append records one terminal outcome.
func (s *SwapJournal) Append(_ context.Context, e *domain.SwapJournalEntry) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryCopy := *e
	entryCopy.ID = s.nextID
	if entryCopy.CreatedAt.IsZero() {
		entryCopy.CreatedAt = time.Now().UTC()
	}
	s.nextID++
	s.entries = append(s.entries, &entryCopy)
	return nil
}

// GetByUser retrieves a user's entries, newest first, up to limit.
func (s *SwapJournal) GetByUser(_ context.Context, userID int64, limit int) ([]*domain.SwapJournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SwapJournalEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].UserID != userID {
			continue
		}
		entryCopy := *s.entries[i]
		result = append(result, &entryCopy)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}
