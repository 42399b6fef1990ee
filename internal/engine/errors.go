package engine

import (
	"errors"
	"fmt"

	"solana-swapbot/internal/domain"
)

// ErrSwapInFlight is returned when a user's previous swap has not reached
// a terminal state yet. No usage is accounted for the rejected request.
var ErrSwapInFlight = errors.New("engine: previous swap still in flight")

// ErrProviderUnavailable marks a chain or quote provider that could not
// be reached. Never treated as a passing balance check.
var ErrProviderUnavailable = errors.New("engine: provider unavailable")

// ValidationError rejects a malformed SwapRequest before any stage runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid swap request: %s %s", e.Field, e.Reason)
}

// AccessDeniedError carries the meter's decision for user-facing wording.
type AccessDeniedError struct {
	Decision domain.AccessDecision
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Decision)
}

// InsufficientFundsError reports a wallet balance below the amount plus
// the rent-exempt reserve.
type InsufficientFundsError struct {
	Balance  uint64
	Required uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: have %d lamports, need %d", e.Balance, e.Required)
}

// Shortfall returns how many lamports the wallet is missing.
func (e *InsufficientFundsError) Shortfall() uint64 {
	return e.Required - e.Balance
}
