package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-swapbot/internal/domain"
	"solana-swapbot/internal/storage"
)

// OutcomeStore implements storage.SwapJournal using ClickHouse, as the
// analytics mirror of the durable journal. MergeTree is append-only, which
// matches the journal contract.
type OutcomeStore struct {
	conn *Conn
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(conn *Conn) *OutcomeStore {
	return &OutcomeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SwapJournal = (*OutcomeStore)(nil)

// Append adds one terminal outcome row.
func (s *OutcomeStore) Append(ctx context.Context, e *domain.SwapJournalEntry) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO swap_outcomes (
			user_id, input_mint, output_mint, amount_lamports,
			status, reason, signature, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		e.UserID,
		e.InputMint,
		e.OutputMint,
		e.AmountLamports,
		string(e.Status),
		e.Reason,
		e.Signature,
		e.DurationMs,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert swap outcome: %w", err)
	}
	return nil
}

// GetByUser retrieves a user's outcomes, newest first, up to limit.
func (s *OutcomeStore) GetByUser(ctx context.Context, userID int64, limit int) ([]*domain.SwapJournalEntry, error) {
	query := `
		SELECT user_id, input_mint, output_mint, amount_lamports,
		       status, reason, signature, duration_ms, created_at
		FROM swap_outcomes
		WHERE user_id = ?
		ORDER BY created_at DESC
	`
	args := []interface{}{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query swap outcomes: %w", err)
	}
	defer rows.Close()

	var entries []*domain.SwapJournalEntry
	for rows.Next() {
		var e domain.SwapJournalEntry
		var status string
		if err := rows.Scan(
			&e.UserID,
			&e.InputMint,
			&e.OutputMint,
			&e.AmountLamports,
			&status,
			&e.Reason,
			&e.Signature,
			&e.DurationMs,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan swap outcome: %w", err)
		}
		e.Status = domain.SwapStatus(status)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap outcomes: %w", err)
	}
	return entries, nil
}
