package main

import (
	"context"

	"go.uber.org/zap"

	"solana-swapbot/internal/domain"
	"solana-swapbot/internal/storage"
)

// fanoutJournal writes every entry to the primary journal and mirrors it
// to the analytics store. Mirror failures are logged, never propagated.
type fanoutJournal struct {
	primary storage.SwapJournal
	mirror  storage.SwapJournal
	logger  *zap.Logger
}

func newFanoutJournal(primary, mirror storage.SwapJournal, logger *zap.Logger) *fanoutJournal {
	return &fanoutJournal{primary: primary, mirror: mirror, logger: logger}
}

func (j *fanoutJournal) Append(ctx context.Context, entry *domain.SwapJournalEntry) error {
	if err := j.mirror.Append(ctx, entry); err != nil {
		j.logger.Warn("analytics journal append failed", zap.Error(err))
	}
	return j.primary.Append(ctx, entry)
}

func (j *fanoutJournal) GetByUser(ctx context.Context, userID int64, limit int) ([]*domain.SwapJournalEntry, error) {
	return j.primary.GetByUser(ctx, userID, limit)
}
