package domain

import "time"

// SwapJournalEntry is one appended terminal outcome, for audit and
// analytics. Append-only; never updated.
type SwapJournalEntry struct {
	ID             int64
	UserID         int64
	InputMint      string
	OutputMint     string
	AmountLamports uint64
	Status         SwapStatus
	Reason         string
	Signature      string
	DurationMs     int64
	CreatedAt      time.Time
}
