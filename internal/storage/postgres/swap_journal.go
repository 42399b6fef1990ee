package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-swapbot/internal/domain"
	"solana-swapbot/internal/storage"
)

// SwapJournal implements storage.SwapJournal using PostgreSQL.
type SwapJournal struct {
	pool *Pool
}

// NewSwapJournal creates a new SwapJournal.
func NewSwapJournal(pool *Pool) *SwapJournal {
	return &SwapJournal{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapJournal = (*SwapJournal)(nil)

// Append records one terminal outcome.
func (s *SwapJournal) Append(ctx context.Context, e *domain.SwapJournalEntry) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO swap_journal (
			user_id, input_mint, output_mint, amount_lamports,
			status, reason, signature, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		e.UserID,
		e.InputMint,
		e.OutputMint,
		int64(e.AmountLamports),
		string(e.Status),
		e.Reason,
		e.Signature,
		e.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// GetByUser retrieves a user's entries, newest first, up to limit.
func (s *SwapJournal) GetByUser(ctx context.Context, userID int64, limit int) ([]*domain.SwapJournalEntry, error) {
	query := `
		SELECT id, user_id, input_mint, output_mint, amount_lamports,
		       status, reason, signature, duration_ms, created_at
		FROM swap_journal
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	args := []interface{}{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get journal entries: %w", err)
	}
	defer rows.Close()

	return scanJournalEntries(rows)
}

func scanJournalEntries(rows pgx.Rows) ([]*domain.SwapJournalEntry, error) {
	var entries []*domain.SwapJournalEntry
	for rows.Next() {
		var e domain.SwapJournalEntry
		var amount int64
		var status string
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.InputMint,
			&e.OutputMint,
			&amount,
			&status,
			&e.Reason,
			&e.Signature,
			&e.DurationMs,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.AmountLamports = uint64(amount)
		e.Status = domain.SwapStatus(status)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	return entries, nil
}
