package solana

import "encoding/json"

// Blockhash is a recent blockhash with its validity horizon.
type Blockhash struct {
	Hash                 string
	LastValidBlockHeight int64
}

// Commitment levels reported by getSignatureStatuses and the
// signatureSubscribe notification.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// SignatureStatus is the cluster's view of a submitted signature.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *int64
	ConfirmationStatus string
	Err                json.RawMessage // non-nil if the transaction failed on-chain
}

// Confirmed reports whether the signature reached at least confirmed
// commitment without an on-chain error.
func (s *SignatureStatus) Confirmed() bool {
	if s == nil || len(s.Err) > 0 && string(s.Err) != "null" {
		return false
	}
	return s.ConfirmationStatus == CommitmentConfirmed || s.ConfirmationStatus == CommitmentFinalized
}

// Failed reports whether the transaction landed but failed on-chain.
func (s *SignatureStatus) Failed() bool {
	return s != nil && len(s.Err) > 0 && string(s.Err) != "null"
}
